package leaderboard

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/score"
)

// Rank orders students by total points, highest first. Students with equal totals keep
// their order in the input. Points:
//   - course points: the sum of progress over the student's enrollments, not weighted by
//     course length, so enrolling in more courses earns more points
//   - quiz points: score.Aggregate over the student's submissions
//   - total points: course points plus quiz points, rounded to one decimal
//
// enrollments and submissions are keyed by student; missing keys count as zero.
func Rank(
	students []domain.Student,
	enrollments map[domain.ID][]domain.Enrollment,
	submissions map[domain.ID][]domain.QuizSubmission,
) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(students))
	for _, st := range students {
		es := enrollments[st.ID]

		var progress int64
		for _, e := range es {
			progress += int64(e.Progress)
		}

		course := decimal.NewFromInt(progress)
		quiz := score.Aggregate(submissions[st.ID])

		entries = append(entries, domain.LeaderboardEntry{
			UserID:          st.ID,
			Handle:          st.Handle,
			Name:            st.Name,
			Avatar:          st.Avatar,
			CoursesEnrolled: len(es),
			CoursePoints:    course,
			QuizPoints:      quiz.Round(1),
			TotalPoints:     course.Add(quiz).Round(1),
		})
	}

	slices.SortStableFunc(entries, func(a, b domain.LeaderboardEntry) int {
		return b.TotalPoints.Cmp(a.TotalPoints)
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}
