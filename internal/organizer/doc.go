// Package organizer moves catalogued files into the output library and
// completes their lifecycle. The target path is derived from enriched
// metadata; the move and the completion status update happen together so a
// completed row always carries its final location.
package organizer
