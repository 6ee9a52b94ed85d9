package score

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/victornm/lms/internal/domain"
)

type dayKey struct {
	courseURL string
	day       int
}

type dayAcc struct {
	sum      decimal.Decimal
	attempts int64
	best     decimal.Decimal
}

// Aggregate returns a student's quiz score: attempts are averaged within each
// (course, day) and the per-day averages are summed. Retaking a quiz therefore never
// adds points on its own. Incomplete attempts are ignored.
//
// This is the only quiz score formula of the platform. The leaderboard, the student
// statistics and the admin dashboard all call it.
func Aggregate(submissions []domain.QuizSubmission) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range groupByDay(submissions) {
		total = total.Add(acc.average())
	}
	return total
}

// Stats summarizes a student's quiz activity.
type Stats struct {
	Attempts      int             `json:"attempts"`
	DaysAttempted int             `json:"days_attempted"`
	Score         decimal.Decimal `json:"score"`
	AverageScore  decimal.Decimal `json:"average_score"`
	BestScores    []DayScore      `json:"best_scores"`
}

type DayScore struct {
	CourseURL string          `json:"course_url"`
	DayNumber int             `json:"day_number"`
	Best      decimal.Decimal `json:"best"`
	Average   decimal.Decimal `json:"average"`
}

// Summarize computes Stats from completed submissions. Score is Aggregate; AverageScore is
// Score spread over the distinct days attempted.
func Summarize(submissions []domain.QuizSubmission) Stats {
	days := groupByDay(submissions)

	st := Stats{
		Score:        decimal.Zero,
		AverageScore: decimal.Zero,
		BestScores:   make([]DayScore, 0, len(days)),
	}

	for k, acc := range days {
		avg := acc.average()
		st.Attempts += int(acc.attempts)
		st.Score = st.Score.Add(avg)
		st.BestScores = append(st.BestScores, DayScore{
			CourseURL: k.courseURL,
			DayNumber: k.day,
			Best:      acc.best,
			Average:   avg.Round(2),
		})
	}

	st.DaysAttempted = len(days)
	if st.DaysAttempted > 0 {
		st.AverageScore = st.Score.Div(decimal.NewFromInt(int64(st.DaysAttempted))).Round(2)
	}
	st.Score = st.Score.Round(2)

	sortDayScores(st.BestScores)
	return st
}

func groupByDay(submissions []domain.QuizSubmission) map[dayKey]*dayAcc {
	days := make(map[dayKey]*dayAcc)
	for _, s := range submissions {
		if !s.IsCompleted {
			continue
		}

		k := dayKey{courseURL: s.CourseURL, day: s.DayNumber}
		acc, ok := days[k]
		if !ok {
			acc = &dayAcc{sum: decimal.Zero, best: s.Score}
			days[k] = acc
		}

		acc.sum = acc.sum.Add(s.Score)
		acc.attempts++
		if s.Score.GreaterThan(acc.best) {
			acc.best = s.Score
		}
	}
	return days
}

func (a *dayAcc) average() decimal.Decimal {
	return a.sum.Div(decimal.NewFromInt(a.attempts))
}

func sortDayScores(ds []DayScore) {
	slices.SortFunc(ds, func(a, b DayScore) int {
		if c := cmp.Compare(a.CourseURL, b.CourseURL); c != 0 {
			return c
		}
		return cmp.Compare(a.DayNumber, b.DayNumber)
	})
}
