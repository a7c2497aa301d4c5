// Package daemon coordinates the long-running autorip process.
//
// It owns the poller, the single-instance flock, the run history store and
// the udev netlink trigger, and aggregates their state for the IPC layer.
// Disc detection, deduplication and dispatch live in the poller package; the
// daemon only starts, stops and reports on it.
package daemon
