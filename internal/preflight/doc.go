// Package preflight provides readiness checks for the filesystem paths and
// external binaries autorip depends on.
//
// The daemon runs them once at startup and logs failures; the CLI "autorip
// status" command renders them next to the live poller state. Failures never
// block polling: a missing output directory or makemkvcon surfaces as a
// failed run or a skipped scan instead.
package preflight
