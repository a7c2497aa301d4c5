// Package pipeline rips or backs up dispatched discs with makemkvcon.
//
// Each disc in a batch is processed to completion before the next one starts.
// Per-disc failures are collected and returned together so one bad disc does
// not hide the outcome of the others.
package pipeline
