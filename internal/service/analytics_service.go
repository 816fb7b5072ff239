package service

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	scoreOverTimeLimit = 20
	perQuizTitleLimit  = 20
	weekWindow         = 7 * 24 * time.Hour
)

type AnalyticsService struct {
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	now         func() time.Time
}

func NewAnalyticsService(quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository) *AnalyticsService {
	return &AnalyticsService{
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		now:         time.Now,
	}
}

// Analytics 汇总用户的作答统计，三个查询并发执行
func (s *AnalyticsService) Analytics(ctx context.Context, userID uint) (*model.QuizAnalytics, error) {
	var (
		totalQuizzes int64
		attempts     []model.AttemptWithTitle
		misses       []model.MissCount
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalQuizzes, err = s.QuizRepo.CountByUser(userID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.AttemptRepo.ListByUser(userID)
		return err
	})
	g.Go(func() error {
		var err error
		misses, err = s.AttemptRepo.MissCounts(userID, repository.MostMissedLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &model.QuizAnalytics{
		TotalQuizzes:  totalQuizzes,
		TotalAttempts: len(attempts),
		ScoreOverTime: []model.ScorePoint{},
		PerQuiz:       []model.QuizAverage{},
		MostMissed:    []model.MissedQuestion{},
	}
	if len(attempts) == 0 {
		return result, nil
	}

	summarizeAttempts(result, attempts, s.now())

	mostMissed, err := s.resolveMissed(misses)
	if err != nil {
		return nil, err
	}
	result.MostMissed = mostMissed
	return result, nil
}

// summarizeAttempts attempts 需按时间倒序
func summarizeAttempts(result *model.QuizAnalytics, attempts []model.AttemptWithTitle, now time.Time) {
	var sum, best float64
	weekAgo := now.Add(-weekWindow)
	for i, a := range attempts {
		pct := model.RawPercent(a.Score, a.TotalQuestions)
		sum += pct
		if i == 0 || pct > best {
			best = pct
		}
		if !a.CreatedAt.Before(weekAgo) {
			result.QuizzesThisWeek++
		}
	}
	result.AverageScore = model.RoundHalfUp(sum / float64(len(attempts)))
	result.BestScore = model.RoundHalfUp(best)

	latest := attempts
	if len(latest) > scoreOverTimeLimit {
		latest = latest[:scoreOverTimeLimit]
	}
	points := make([]model.ScorePoint, len(latest))
	for i, a := range latest {
		points[len(latest)-1-i] = model.ScorePoint{
			Date:  a.CreatedAt.Format(util.DateFormat),
			Score: model.Percent(a.Score, a.TotalQuestions),
			Quiz:  a.QuizTitle,
		}
	}
	result.ScoreOverTime = points

	// 按最近一次作答的先后排列各测验
	type quizScores struct {
		title  string
		scores []int
	}
	order := []string{}
	byQuiz := map[string]*quizScores{}
	for _, a := range attempts {
		entry, ok := byQuiz[a.QuizID]
		if !ok {
			entry = &quizScores{title: a.QuizTitle}
			byQuiz[a.QuizID] = entry
			order = append(order, a.QuizID)
		}
		entry.scores = append(entry.scores, model.Percent(a.Score, a.TotalQuestions))
	}
	perQuiz := make([]model.QuizAverage, 0, len(order))
	for _, id := range order {
		entry := byQuiz[id]
		total := 0
		for _, v := range entry.scores {
			total += v
		}
		perQuiz = append(perQuiz, model.QuizAverage{
			Title:    shortTitle(entry.title),
			AvgScore: model.RoundHalfUp(float64(total) / float64(len(entry.scores))),
		})
	}
	result.PerQuiz = perQuiz
}

func shortTitle(title string) string {
	runes := []rune(title)
	if len(runes) > perQuizTitleLimit {
		return string(runes[:perQuizTitleLimit]) + "..."
	}
	return title
}

// resolveMissed 将题目 id 换成题干；题目已被删除时保留 id
func (s *AnalyticsService) resolveMissed(misses []model.MissCount) ([]model.MissedQuestion, error) {
	ids := make([]string, len(misses))
	for i, m := range misses {
		ids[i] = m.QuestionID
	}
	texts, err := s.QuizRepo.MCQTexts(ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.MissedQuestion, len(misses))
	for i, m := range misses {
		question := texts[m.QuestionID]
		if question == "" {
			question = m.QuestionID
		}
		out[i] = model.MissedQuestion{Question: question, Count: m.Count}
	}
	return out, nil
}

// Leaderboard 平均得分率排行，前 50 名
func (s *AnalyticsService) Leaderboard(viewerID uint) ([]model.LeaderboardEntry, error) {
	rows, err := s.AttemptRepo.Leaderboard(repository.LeaderboardLimit)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, len(rows))
	for i, r := range rows {
		r.AvgScore = roundTenth(r.AvgScore)
		r.BestScore = roundTenth(r.BestScore)
		entries[i] = model.LeaderboardEntry{
			Rank:           i + 1,
			LeaderboardRow: r,
			IsCurrentUser:  r.UserID == viewerID,
		}
	}
	return entries, nil
}

// roundTenth 消除数据库 ROUND 后浮点表示的尾差
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
