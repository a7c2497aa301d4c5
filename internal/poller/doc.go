// Package poller implements the disc polling, dedup and dispatch loop.
//
// A Service ticks at a fixed interval. Each tick that finds the operation gate
// free runs one scan cycle: ask the inventory which drives hold discs, forget
// tracked drives whose disc is gone or changed, enrich only the discs that are
// new, mark them as handled and hand the batch to the processing pipeline.
// Ticks that arrive while a cycle or a run is in flight are dropped.
//
// Lifecycle phases (idle, scanning, processing) are published to subscribers
// registered with Subscribe. Nothing in this package is persisted; the dedup
// tracker starts empty on every process start.
package poller
