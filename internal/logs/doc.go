// Package logs reads the daemon log for `autorip logs`.
//
// The daemon writes one log file per process run and repoints an
// autorip.log link at the newest file. Tail follows that link: when the
// daemon restarts mid-follow, output continues from the start of the new
// file. Only complete lines are emitted.
package logs
