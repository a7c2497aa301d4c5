// Package disc holds the disc record shared by the inventory, the polling
// loop and the processing pipeline, plus parsers for MakeMKV robot output.
//
// Drive and title parsing lives here so the adapters that shell out to
// makemkvcon stay thin and the control loop never sees raw tool output.
package disc
