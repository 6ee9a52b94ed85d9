package analytics_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/analytics"
	"github.com/victornm/lms/internal/domain"
)

func TestComputeKPIs(t *testing.T) {
	tests := map[string]struct {
		in   analytics.KPIInput
		want [4]string
	}{
		"regular month": {
			in: analytics.KPIInput{
				RegistrationsThisMonth: 15,
				RegistrationsLastMonth: 10,
				TotalUsers:             9,
				ActiveUsers:            7,
				TotalStudents:          4,
				TotalEnrollments:       10,
				CompletionRate:         decimal.RequireFromString("33.3333"),
			},
			want: [4]string{"50", "33.33", "77.78", "2.5"},
		},

		"shrinking registrations": {
			in: analytics.KPIInput{
				RegistrationsThisMonth: 2,
				RegistrationsLastMonth: 3,
				TotalUsers:             3,
				ActiveUsers:            3,
				TotalStudents:          3,
				TotalEnrollments:       10,
			},
			want: [4]string{"-33.33", "0", "100", "3.33"},
		},

		"empty platform": {
			in:   analytics.KPIInput{},
			want: [4]string{"0", "0", "0", "0"},
		},

		"no registrations last month": {
			in: analytics.KPIInput{
				RegistrationsThisMonth: 12,
				TotalUsers:             12,
				ActiveUsers:            12,
			},
			want: [4]string{"0", "0", "100", "0"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := analytics.ComputeKPIs(tc.in)

			assert.Equal(t, tc.want, [4]string{
				got.UserGrowthRate.String(),
				got.CompletionRate.String(),
				got.UserEngagementRate.String(),
				got.AvgEnrollmentsPerStudent.String(),
			})
		})
	}
}

func TestTotalQuizPoints(t *testing.T) {
	alice, err := domain.NewID()
	require.NoError(t, err)
	bob, err := domain.NewID()
	require.NoError(t, err)

	subs := []domain.QuizSubmission{
		quiz(alice, "go-101", 1, "80"),
		quiz(alice, "go-101", 1, "100"),
		quiz(alice, "go-101", 2, "60"),
		quiz(bob, "sql-101", 1, "33.33"),
		quiz(bob, "sql-101", 1, "33.34"),
	}

	assert.Equal(t, "183.3", analytics.TotalQuizPoints(subs).String())
	assert.True(t, analytics.TotalQuizPoints(nil).IsZero())
}

func quiz(user domain.ID, courseURL string, day int, score string) domain.QuizSubmission {
	return domain.QuizSubmission{
		UserID:      user,
		CourseURL:   courseURL,
		DayNumber:   day,
		Score:       decimal.RequireFromString(score),
		IsCompleted: true,
	}
}
