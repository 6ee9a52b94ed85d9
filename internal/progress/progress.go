// Package progress derives course completion from the days a learner has finished.
//
// Percent and DeriveStatus are the only place progress is computed; storage layers and
// maintenance jobs call into this package instead of re-deriving the formula.
package progress

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/lms/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Percent returns round(100 × completed / totalDays), rounding half away from zero.
// A roadmap without days yields 0.
func Percent(completed, totalDays int) int {
	if totalDays <= 0 || completed <= 0 {
		return 0
	}
	if completed >= totalDays {
		return 100
	}

	p := decimal.NewFromInt(int64(completed)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(totalDays))).
		Round(0)

	return int(p.IntPart())
}

// DeriveStatus maps progress to an enrollment status. Partial progress never moves a
// pending or enrolled enrollment backwards; zero progress leaves the status untouched.
func DeriveStatus(current domain.EnrollmentStatus, progress int) domain.EnrollmentStatus {
	switch {
	case progress >= 100:
		return domain.EnrollmentCompleted
	case progress > 0:
		return domain.EnrollmentStarted
	default:
		return current
	}
}
