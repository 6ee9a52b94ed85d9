package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/progress"
)

func TestPercent(t *testing.T) {
	tests := map[string]struct {
		completed, total int
		want             int
	}{
		"17 of 26 days":               {completed: 17, total: 26, want: 65},
		"half rounds away from zero":  {completed: 1, total: 8, want: 13},
		"just below half rounds down": {completed: 1, total: 3, want: 33},
		"two thirds rounds up":        {completed: 2, total: 3, want: 67},
		"nothing completed":           {completed: 0, total: 10, want: 0},
		"everything completed":        {completed: 10, total: 10, want: 100},
		"empty roadmap":               {completed: 0, total: 0, want: 0},
		"empty roadmap with days":     {completed: 3, total: 0, want: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.Percent(tt.completed, tt.total))
		})
	}
}

func TestPercent_MatchesExactRounding(t *testing.T) {
	for total := 1; total <= 60; total++ {
		for completed := 0; completed <= total; completed++ {
			// round-half-up on non-negative integers: floor((200c + t) / 2t)
			want := (200*completed + total) / (2 * total)
			require.Equal(t, want, progress.Percent(completed, total), "completed=%d total=%d", completed, total)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := map[string]struct {
		current  domain.EnrollmentStatus
		progress int
		want     domain.EnrollmentStatus
	}{
		"full progress completes":         {current: domain.EnrollmentStarted, progress: 100, want: domain.EnrollmentCompleted},
		"partial progress starts":         {current: domain.EnrollmentEnrolled, progress: 40, want: domain.EnrollmentStarted},
		"completed falls back to started": {current: domain.EnrollmentCompleted, progress: 96, want: domain.EnrollmentStarted},
		"zero progress keeps enrolled":    {current: domain.EnrollmentEnrolled, progress: 0, want: domain.EnrollmentEnrolled},
		"zero progress keeps pending":     {current: domain.EnrollmentPending, progress: 0, want: domain.EnrollmentPending},
		"zero progress keeps started":     {current: domain.EnrollmentStarted, progress: 0, want: domain.EnrollmentStarted},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.DeriveStatus(tt.current, tt.progress))
		})
	}
}

func TestTracker_MarkDayComplete(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tr := progress.NewTracker(func() time.Time { return now })

	tests := map[string]struct {
		arrange func() *domain.Enrollment
		day     int
		total   int
		assert  func(t *testing.T, e *domain.Enrollment, err error)
	}{
		"first day on a fresh enrollment": {
			arrange: func() *domain.Enrollment {
				return &domain.Enrollment{Status: domain.EnrollmentEnrolled}
			},
			day:   1,
			total: 4,
			assert: func(t *testing.T, e *domain.Enrollment, err error) {
				require.NoError(t, err)
				assert.Equal(t, []int{1}, e.CompletedDays)
				assert.Equal(t, 25, e.Progress)
				assert.Equal(t, domain.EnrollmentStarted, e.Status)
				assert.Equal(t, now, e.LastAccessedAt)
			},
		},

		"skipping a day is out of order": {
			arrange: func() *domain.Enrollment {
				return &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1}, Progress: 10}
			},
			day:   3,
			total: 10,
			assert: func(t *testing.T, e *domain.Enrollment, err error) {
				var oe *progress.OutOfOrderError
				require.ErrorAs(t, err, &oe)
				assert.Equal(t, 3, oe.Day)
				assert.Equal(t, []int{1}, e.CompletedDays)
				assert.Equal(t, 10, e.Progress)
				assert.True(t, e.LastAccessedAt.IsZero(), "failed call must not touch the enrollment")
			},
		},

		"last day completes the course": {
			arrange: func() *domain.Enrollment {
				return &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{2, 1}}
			},
			day:   3,
			total: 3,
			assert: func(t *testing.T, e *domain.Enrollment, err error) {
				require.NoError(t, err)
				assert.Equal(t, []int{1, 2, 3}, e.CompletedDays)
				assert.Equal(t, 100, e.Progress)
				assert.Equal(t, domain.EnrollmentCompleted, e.Status)
			},
		},

		"day beyond the roadmap": {
			arrange: func() *domain.Enrollment {
				return &domain.Enrollment{Status: domain.EnrollmentEnrolled}
			},
			day:   5,
			total: 4,
			assert: func(t *testing.T, _ *domain.Enrollment, err error) {
				var re *progress.DayOutOfRangeError
				require.ErrorAs(t, err, &re)
			},
		},

		"any day on an empty roadmap": {
			arrange: func() *domain.Enrollment {
				return &domain.Enrollment{Status: domain.EnrollmentEnrolled}
			},
			day:   1,
			total: 0,
			assert: func(t *testing.T, e *domain.Enrollment, err error) {
				var re *progress.DayOutOfRangeError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, 0, e.Progress)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := tt.arrange()
			err := tr.MarkDayComplete(e, tt.day, tt.total)
			tt.assert(t, e, err)
		})
	}
}

func TestTracker_MarkDayComplete_Idempotent(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tr := progress.NewTracker(func() time.Time { return now })

	once := &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1}}
	require.NoError(t, tr.MarkDayComplete(once, 2, 5))

	twice := &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1}}
	require.NoError(t, tr.MarkDayComplete(twice, 2, 5))
	require.NoError(t, tr.MarkDayComplete(twice, 2, 5))

	assert.Equal(t, once, twice)
}

func TestTracker_MarkDayIncomplete(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tr := progress.NewTracker(func() time.Time { return now })

	t.Run("removing a middle day violates the sequence", func(t *testing.T) {
		e := &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1, 2, 3}, Progress: 30}

		err := tr.MarkDayIncomplete(e, 2, 10)

		var se *progress.SequenceViolationError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 2, se.Day)
		assert.Equal(t, []int{1, 2, 3}, e.CompletedDays)
		assert.Equal(t, 30, e.Progress)
	})

	t.Run("removing the last completed day", func(t *testing.T) {
		e := &domain.Enrollment{Status: domain.EnrollmentCompleted, CompletedDays: []int{1, 2, 3, 4}, Progress: 100}

		require.NoError(t, tr.MarkDayIncomplete(e, 4, 4))

		assert.Equal(t, []int{1, 2, 3}, e.CompletedDays)
		assert.Equal(t, 75, e.Progress)
		assert.Equal(t, domain.EnrollmentStarted, e.Status)
		assert.Equal(t, now, e.LastAccessedAt)
	})

	t.Run("removing a day that is not complete", func(t *testing.T) {
		e := &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1}}

		require.NoError(t, tr.MarkDayIncomplete(e, 2, 4))

		assert.Equal(t, []int{1}, e.CompletedDays)
		assert.Equal(t, 25, e.Progress)
	})

	t.Run("removing the only day keeps the status", func(t *testing.T) {
		e := &domain.Enrollment{Status: domain.EnrollmentStarted, CompletedDays: []int{1}}

		require.NoError(t, tr.MarkDayIncomplete(e, 1, 4))

		assert.Empty(t, e.CompletedDays)
		assert.Equal(t, 0, e.Progress)
		assert.Equal(t, domain.EnrollmentStarted, e.Status)
	})
}

func TestScenario_SeventeenOfTwentySixDays(t *testing.T) {
	tr := progress.NewTracker(nil)
	e := &domain.Enrollment{Status: domain.EnrollmentEnrolled}

	for day := 1; day <= 17; day++ {
		require.NoError(t, tr.MarkDayComplete(e, day, 26))
	}

	assert.Len(t, e.CompletedDays, 17)
	assert.Equal(t, 65, e.Progress)
	assert.Equal(t, domain.EnrollmentStarted, e.Status)
}

func TestPrune(t *testing.T) {
	tests := map[string]struct {
		days  []int
		total int
		want  []int
	}{
		"already sequential":    {days: []int{3, 1, 2}, total: 5, want: []int{1, 2, 3}},
		"gap drops the tail":    {days: []int{1, 2, 4, 5}, total: 5, want: []int{1, 2}},
		"days past the roadmap": {days: []int{1, 2, 3, 4}, total: 2, want: []int{1, 2}},
		"duplicates collapse":   {days: []int{1, 1, 2}, total: 3, want: []int{1, 2}},
		"missing first day":     {days: []int{2, 3}, total: 3, want: []int{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.Prune(tt.days, tt.total))
		})
	}
}
