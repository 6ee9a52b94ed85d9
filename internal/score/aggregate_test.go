package score_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/score"
)

func sub(course string, day int, sc string, completed bool) domain.QuizSubmission {
	return domain.QuizSubmission{
		CourseURL:   course,
		DayNumber:   day,
		Score:       decimal.RequireFromString(sc),
		IsCompleted: completed,
	}
}

func TestAggregate(t *testing.T) {
	tests := map[string]struct {
		subs []domain.QuizSubmission
		want string
	}{
		"retakes are averaged per day": {
			subs: []domain.QuizSubmission{
				sub("go-101", 1, "80", true),
				sub("go-101", 1, "100", true),
				sub("go-101", 2, "60", true),
			},
			want: "150",
		},
		"incomplete attempts are ignored": {
			subs: []domain.QuizSubmission{
				sub("go-101", 1, "90", true),
				sub("go-101", 1, "0", false),
				sub("go-101", 2, "40", false),
			},
			want: "90",
		},
		"same day number in different courses": {
			subs: []domain.QuizSubmission{
				sub("go-101", 1, "50", true),
				sub("sql-201", 1, "70", true),
			},
			want: "120",
		},
		"no submissions": {
			subs: nil,
			want: "0",
		},
		"fractional averages": {
			subs: []domain.QuizSubmission{
				sub("go-101", 1, "66.67", true),
				sub("go-101", 1, "33.33", true),
				sub("go-101", 1, "100", true),
			},
			want: "66.6666666666666667",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := score.Aggregate(tt.subs)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	subs := []domain.QuizSubmission{
		sub("go-101", 1, "80", true),
		sub("go-101", 2, "60", true),
		sub("go-101", 1, "100", true),
		sub("sql-201", 3, "45.5", true),
		sub("sql-201", 3, "12.25", true),
	}
	want := score.Aggregate(subs)

	for i := 0; i < 20; i++ {
		reversed := make([]domain.QuizSubmission, len(subs))
		for j := range subs {
			reversed[len(subs)-1-j] = subs[j]
		}
		require.True(t, want.Equal(score.Aggregate(reversed)))
		require.True(t, want.Equal(score.Aggregate(subs)))
	}
}

func TestSummarize(t *testing.T) {
	st := score.Summarize([]domain.QuizSubmission{
		sub("go-101", 2, "60", true),
		sub("go-101", 1, "80", true),
		sub("go-101", 1, "100", true),
		sub("go-101", 3, "10", false),
	})

	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, 2, st.DaysAttempted)
	assert.Equal(t, "150", st.Score.String())
	assert.Equal(t, "75", st.AverageScore.String())
	require.Len(t, st.BestScores, 2)

	assert.Equal(t, 1, st.BestScores[0].DayNumber)
	assert.Equal(t, "100", st.BestScores[0].Best.String())
	assert.Equal(t, "90", st.BestScores[0].Average.String())
	assert.Equal(t, 2, st.BestScores[1].DayNumber)
	assert.Equal(t, "60", st.BestScores[1].Best.String())
}

func TestSummarize_Empty(t *testing.T) {
	st := score.Summarize(nil)

	assert.Zero(t, st.Attempts)
	assert.True(t, st.Score.IsZero())
	assert.True(t, st.AverageScore.IsZero())
	assert.Empty(t, st.BestScores)
}

func TestGrade(t *testing.T) {
	day := domain.RoadmapDay{
		Day: 1,
		MCQs: []domain.MCQ{
			{Question: "q1", Options: []domain.MCQOption{{Text: "a", IsCorrect: true}, {Text: "b"}}},
			{Question: "q2", Options: []domain.MCQOption{{Text: "a"}, {Text: "b", IsCorrect: true}}},
			{Question: "q3", Options: []domain.MCQOption{{Text: "a"}, {Text: "b"}, {Text: "c", IsCorrect: true}}},
		},
	}

	tests := map[string]struct {
		answers   []int
		want      string
		completed bool
		wantErr   bool
	}{
		"all correct":          {answers: []int{0, 1, 2}, want: "100", completed: true},
		"two of three":         {answers: []int{0, 1, 0}, want: "66.67", completed: true},
		"one of three":         {answers: []int{0, 0, 0}, want: "33.33", completed: true},
		"skipped question":     {answers: []int{0, -1, 2}, want: "66.67", completed: false},
		"answer out of range":  {answers: []int{0, 1, 3}, wantErr: true},
		"wrong answer count":   {answers: []int{0, 1}, wantErr: true},
		"negative not skipped": {answers: []int{0, 1, -2}, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, completed, err := score.Grade(day, tt.answers)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.completed, completed)
		})
	}
}

func TestGrade_NoQuiz(t *testing.T) {
	_, _, err := score.Grade(domain.RoadmapDay{Day: 4}, []int{0})
	require.Error(t, err)
}
