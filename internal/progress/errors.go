package progress

import "fmt"

// OutOfOrderError is returned when a day is completed before its predecessor.
type OutOfOrderError struct {
	Day int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("progress: day %d cannot be completed until day %d is completed", e.Day, e.Day-1)
}

// SequenceViolationError is returned when un-completing a day would leave its successor
// complete without a prerequisite.
type SequenceViolationError struct {
	Day int
}

func (e *SequenceViolationError) Error() string {
	return fmt.Sprintf("progress: day %d cannot be marked incomplete while day %d is complete", e.Day, e.Day+1)
}

// DayOutOfRangeError is returned for day numbers outside 1..TotalDays.
type DayOutOfRangeError struct {
	Day       int
	TotalDays int
}

func (e *DayOutOfRangeError) Error() string {
	return fmt.Sprintf("progress: day %d is outside the roadmap (1..%d)", e.Day, e.TotalDays)
}
