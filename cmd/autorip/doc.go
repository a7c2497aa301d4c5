// Package main hosts the autorip CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: starting and stopping polling, forcing a scan, reading
// status and run history, and shutting the daemon down. A few commands work
// without a daemon: drive listing talks to makemkvcon directly, and status
// and history fall back to the history database.
//
// Keep this package lean: behavior lives in the internal packages and is only
// surfaced here.
package main
