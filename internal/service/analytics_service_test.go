package service

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/testutil"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAnalyticsService(repository.NewQuizRepository(db), repository.NewAttemptRepository(db))
	testutil.CreateReadyQuiz(t, db, 1, "Unattempted", "A")

	result, err := svc.Analytics(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.TotalQuizzes)
	assert.Zero(t, result.TotalAttempts)
	assert.Zero(t, result.AverageScore)
	assert.Zero(t, result.BestScore)
	assert.NotNil(t, result.ScoreOverTime)
	assert.NotNil(t, result.PerQuiz)
	assert.NotNil(t, result.MostMissed)
}

func TestAnalytics(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAnalyticsService(repository.NewQuizRepository(db), repository.NewAttemptRepository(db))
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	longTitle := "Introduction to Distributed Systems"
	net := testutil.CreateReadyQuiz(t, db, 1, "Networks", "A", "B")
	dist := testutil.CreateReadyQuiz(t, db, 1, longTitle, "C")
	testutil.CreateReadyQuiz(t, db, 2, "Someone else", "A")

	miss := func(q model.MCQ) model.QuizAttemptAnswer {
		return model.QuizAttemptAnswer{QuestionID: q.ID, SelectedOption: "D", Correct: false}
	}

	// 两周前 50%，三天前 100%，昨天 0%
	testutil.CreateAttempt(t, db, 1, net.ID, 1, 2, now.Add(-14*24*time.Hour), miss(net.MCQs[1]))
	testutil.CreateAttempt(t, db, 1, net.ID, 2, 2, now.Add(-3*24*time.Hour))
	testutil.CreateAttempt(t, db, 1, dist.ID, 0, 1, now.Add(-24*time.Hour), miss(dist.MCQs[0]))
	testutil.CreateAttempt(t, db, 1, net.ID, 0, 2, now.Add(-2*time.Hour), miss(net.MCQs[1]), miss(net.MCQs[0]))

	result, err := svc.Analytics(context.Background(), 1)
	require.NoError(t, err)

	assert.EqualValues(t, 2, result.TotalQuizzes)
	assert.Equal(t, 4, result.TotalAttempts)
	assert.Equal(t, 38, result.AverageScore) // (50+100+0+0)/4 = 37.5
	assert.Equal(t, 100, result.BestScore)
	assert.Equal(t, 3, result.QuizzesThisWeek)

	require.Len(t, result.ScoreOverTime, 4)
	assert.Equal(t, "2024-06-01", result.ScoreOverTime[0].Date)
	assert.Equal(t, 50, result.ScoreOverTime[0].Score)
	assert.Equal(t, 0, result.ScoreOverTime[3].Score)
	assert.Equal(t, "Networks", result.ScoreOverTime[3].Quiz)

	require.Len(t, result.PerQuiz, 2)
	assert.Equal(t, "Networks", result.PerQuiz[0].Title)
	assert.Equal(t, 50, result.PerQuiz[0].AvgScore)
	assert.Equal(t, "Introduction to Dist...", result.PerQuiz[1].Title)
	assert.Equal(t, 0, result.PerQuiz[1].AvgScore)

	require.Len(t, result.MostMissed, 3)
	assert.Equal(t, net.MCQs[1].Question, result.MostMissed[0].Question)
	assert.Equal(t, 2, result.MostMissed[0].Count)
	assert.Equal(t, 1, result.MostMissed[1].Count)
}

func TestSummarizeAttemptsCapsScoreOverTime(t *testing.T) {
	now := time.Now()
	attempts := make([]model.AttemptWithTitle, 25)
	for i := range attempts {
		attempts[i] = model.AttemptWithTitle{
			ID:             string(rune('a' + i)),
			QuizID:         "q",
			QuizTitle:      "Quiz",
			Score:          i % 5,
			TotalQuestions: 4,
			CreatedAt:      now.Add(-time.Duration(i) * time.Hour),
		}
	}
	result := &model.QuizAnalytics{}
	summarizeAttempts(result, attempts, now)

	require.Len(t, result.ScoreOverTime, scoreOverTimeLimit)
	// 最后一个点是最新的作答
	assert.Equal(t, model.Percent(attempts[0].Score, 4), result.ScoreOverTime[scoreOverTimeLimit-1].Score)
	assert.Equal(t, 100, result.BestScore)
}

func TestResolveMissedKeepsDeletedQuestionID(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAnalyticsService(repository.NewQuizRepository(db), repository.NewAttemptRepository(db))

	out, err := svc.resolveMissed([]model.MissCount{{QuestionID: "gone", Count: 4}})
	require.NoError(t, err)
	assert.Equal(t, []model.MissedQuestion{{Question: "gone", Count: 4}}, out)
}

func TestLeaderboard(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAnalyticsService(repository.NewQuizRepository(db), repository.NewAttemptRepository(db))

	ann := testutil.CreateUser(t, db, "Ann", "ann@aut-edu.uz")
	ben := testutil.CreateUser(t, db, "Ben", "ben@aut-edu.uz")
	quiz := testutil.CreateReadyQuiz(t, db, ann.ID, "Q", "A", "B", "C")

	testutil.CreateAttempt(t, db, ann.ID, quiz.ID, 1, 3, time.Now())
	testutil.CreateAttempt(t, db, ben.ID, quiz.ID, 2, 3, time.Now())
	testutil.CreateAttempt(t, db, ben.ID, quiz.ID, 3, 3, time.Now())

	entries, err := svc.Leaderboard(ann.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Ben", entries[0].Name)
	assert.Equal(t, 83.3, entries[0].AvgScore)
	assert.Equal(t, 100.0, entries[0].BestScore)
	assert.False(t, entries[0].IsCurrentUser)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 33.3, entries[1].AvgScore)
	assert.True(t, entries[1].IsCurrentUser)
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "short", shortTitle("short"))
	assert.Equal(t, strings.Repeat("é", 20)+"...", shortTitle(strings.Repeat("é", 21)))
	assert.Equal(t, strings.Repeat("x", 20), shortTitle(strings.Repeat("x", 20)))
}
