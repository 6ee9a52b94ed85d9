package progress

import (
	"slices"
	"time"

	"github.com/victornm/lms/internal/domain"
)

// Tracker applies day completion changes to an enrollment. It performs no I/O; callers
// must hold the enrollment exclusively (row lock or version check) while it runs.
type Tracker struct {
	now func() time.Time
}

// NewTracker returns a Tracker using now as its clock. A nil clock means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// MarkDayComplete adds day to the completed set. Re-marking a completed day is a no-op
// apart from the access time.
func (t *Tracker) MarkDayComplete(e *domain.Enrollment, day, totalDays int) error {
	if err := checkDay(day, totalDays); err != nil {
		return err
	}

	e.CompletedDays = Normalize(e.CompletedDays)
	if day > 1 && !e.HasCompleted(day-1) {
		return &OutOfOrderError{Day: day}
	}

	if i, found := slices.BinarySearch(e.CompletedDays, day); !found {
		e.CompletedDays = slices.Insert(e.CompletedDays, i, day)
	}

	t.touch(e, totalDays)
	return nil
}

// MarkDayIncomplete removes day from the completed set.
func (t *Tracker) MarkDayIncomplete(e *domain.Enrollment, day, totalDays int) error {
	if err := checkDay(day, totalDays); err != nil {
		return err
	}

	e.CompletedDays = Normalize(e.CompletedDays)
	if e.HasCompleted(day + 1) {
		return &SequenceViolationError{Day: day}
	}

	if i, found := slices.BinarySearch(e.CompletedDays, day); found {
		e.CompletedDays = slices.Delete(e.CompletedDays, i, i+1)
	}

	t.touch(e, totalDays)
	return nil
}

// Recalculate refreshes progress and status from the completed days without touching
// the access time.
func Recalculate(e *domain.Enrollment, totalDays int) {
	e.Progress = Percent(len(e.CompletedDays), totalDays)
	e.Status = DeriveStatus(e.Status, e.Progress)
}

func (t *Tracker) touch(e *domain.Enrollment, totalDays int) {
	Recalculate(e, totalDays)
	e.LastAccessedAt = t.now()
}

// Normalize sorts days and drops duplicates. Storage keeps days as an unordered array.
func Normalize(days []int) []int {
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}

// Prune drops days that fall outside 1..totalDays and every day after the first gap,
// so the result satisfies the sequential completion invariant.
func Prune(days []int, totalDays int) []int {
	days = Normalize(days)
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d != len(out)+1 || d > totalDays {
			break
		}
		out = append(out, d)
	}
	return out
}

func checkDay(day, totalDays int) error {
	if day < 1 || day > totalDays {
		return &DayOutOfRangeError{Day: day, TotalDays: totalDays}
	}
	return nil
}
