package service

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type AttemptService struct {
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
}

func NewAttemptService(quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository) *AttemptService {
	return &AttemptService{QuizRepo: quizRepo, AttemptRepo: attemptRepo}
}

// AnswerInput 客户端只提交所选选项；是否正确由服务端根据题目重新判定
type AnswerInput struct {
	QuestionID     string `json:"questionId" binding:"required"`
	SelectedOption string `json:"selectedOption"`
}

type RecordAttemptRequest struct {
	Answers []AnswerInput `json:"answers"`
}

type AttemptResult struct {
	ID             string                    `json:"id"`
	QuizID         string                    `json:"quizId"`
	Score          int                       `json:"score"`
	TotalQuestions int                       `json:"totalQuestions"`
	Percent        int                       `json:"percent"`
	Answers        []model.QuizAttemptAnswer `json:"answers"`
	CreatedAt      time.Time                 `json:"createdAt"`
}

func normalizeOption(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validOption(s string) bool {
	switch s {
	case "", "A", "B", "C", "D":
		return true
	}
	return false
}

// ScoreAnswers 按题目的 correctOption 判分，未作答的题目计为错误。
// 未知题目、重复作答或 A–D 之外的选项返回 ErrInvalidAnswer。
func ScoreAnswers(mcqs []model.MCQ, answers []AnswerInput) ([]model.QuizAttemptAnswer, int, error) {
	byID := make(map[string]model.MCQ, len(mcqs))
	for _, m := range mcqs {
		byID[m.ID] = m
	}

	seen := make(map[string]bool, len(answers))
	rows := make([]model.QuizAttemptAnswer, 0, len(answers))
	score := 0
	for _, a := range answers {
		mcq, ok := byID[a.QuestionID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown question %s", util.ErrInvalidAnswer, a.QuestionID)
		}
		if seen[a.QuestionID] {
			return nil, 0, fmt.Errorf("%w: duplicate answer for question %s", util.ErrInvalidAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = true

		selected := normalizeOption(a.SelectedOption)
		if !validOption(selected) {
			return nil, 0, fmt.Errorf("%w: option %q", util.ErrInvalidAnswer, a.SelectedOption)
		}

		correct := selected != "" && selected == normalizeOption(mcq.CorrectOption)
		if correct {
			score++
		}
		rows = append(rows, model.QuizAttemptAnswer{
			QuestionID:     a.QuestionID,
			SelectedOption: selected,
			Correct:        correct,
		})
	}
	return rows, score, nil
}

// RecordAttempt 服务端重新判分并保存作答，总题数取测验中的选择题数量
func (s *AttemptService) RecordAttempt(userID uint, quizID string, answers []AnswerInput) (*AttemptResult, error) {
	quiz, err := s.QuizRepo.FindOwned(userID, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if quiz.Status != model.QuizReady {
		return nil, util.ErrQuizNotReady
	}

	mcqs, err := s.QuizRepo.FindMCQs(quizID)
	if err != nil {
		return nil, err
	}

	rows, score, err := ScoreAnswers(mcqs, answers)
	if err != nil {
		return nil, err
	}

	attempt := &model.QuizAttempt{
		QuizID:         quizID,
		UserID:         userID,
		Score:          score,
		TotalQuestions: len(mcqs),
		Answers:        rows,
	}
	if err := s.AttemptRepo.CreateWithAnswers(attempt); err != nil {
		return nil, err
	}

	return &AttemptResult{
		ID:             attempt.ID,
		QuizID:         attempt.QuizID,
		Score:          attempt.Score,
		TotalQuestions: attempt.TotalQuestions,
		Percent:        attempt.Percent(),
		Answers:        attempt.Answers,
		CreatedAt:      attempt.CreatedAt,
	}, nil
}
