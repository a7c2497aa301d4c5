// Package notifications delivers run events to ntfy.
//
// NewService returns an ntfy-backed implementation when a topic is configured
// and a no-op otherwise, so callers never branch on whether notifications are
// enabled. Observer adapts the service to the poller's run callbacks and
// honours the per-event toggles in config.toml.
package notifications
