// Package inventory reports which drives hold discs and reads their title
// tables by running makemkvcon in robot mode.
//
// Detect is the cheap call the poller makes every tick. Enrich is the
// expensive per-disc scan made only for discs the poller has not seen yet.
package inventory
