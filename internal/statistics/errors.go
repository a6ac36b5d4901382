package statistics

import "errors"

var (
	// ErrInvalidArgument is returned when the processor receives no records at all.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRecordUnreadable marks a single record that could not be loaded or lacks
	// the resource data the statistics are computed from. It is recorded in the
	// report and never returned from a pass.
	ErrRecordUnreadable = errors.New("record unreadable")
)
