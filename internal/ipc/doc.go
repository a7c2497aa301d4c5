// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// Request and response types are plain DTOs so the wire protocol does not
// depend on poller or history internals. Add new endpoints by pairing a
// service method here with a Client wrapper.
package ipc
