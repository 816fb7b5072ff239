package repository

import (
	"aut_portal_backend/internal/model"

	"gorm.io/gorm"
)

const (
	LeaderboardLimit = 50
	MostMissedLimit  = 10
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// CreateWithAnswers 在同一事务内写入作答记录与逐题明细
func (r *AttemptRepository) CreateWithAnswers(attempt *model.QuizAttempt) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		answers := attempt.Answers
		if err := tx.Omit("Answers").Create(attempt).Error; err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		for i := range answers {
			answers[i].AttemptID = attempt.ID
		}
		if err := tx.Create(&answers).Error; err != nil {
			return err
		}
		attempt.Answers = answers
		return nil
	})
}

// ListByUser 用户全部作答记录，新的在前
func (r *AttemptRepository) ListByUser(userID uint) ([]model.AttemptWithTitle, error) {
	var rows []model.AttemptWithTitle
	err := r.DB.Table("quiz_attempts AS a").
		Select("a.id, a.quiz_id, q.title AS quiz_title, a.score, a.total_questions, a.created_at").
		Joins("JOIN quizzes q ON q.id = a.quiz_id").
		Where("a.user_id = ?", userID).
		Order("a.created_at DESC, a.id DESC").
		Scan(&rows).Error
	return rows, err
}

// MissCounts 用户答错次数最多的题目，次数降序，相同次数按题目 id 升序
func (r *AttemptRepository) MissCounts(userID uint, limit int) ([]model.MissCount, error) {
	var rows []model.MissCount
	err := r.DB.Table("quiz_attempt_answers AS qa").
		Select("qa.question_id, COUNT(*) AS miss_count").
		Joins("JOIN quiz_attempts a ON a.id = qa.attempt_id").
		Where("a.user_id = ? AND qa.correct = ?", userID, false).
		Group("qa.question_id").
		Order("miss_count DESC, qa.question_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// Leaderboard 按平均得分率排名，只统计题目数大于 0 的作答
func (r *AttemptRepository) Leaderboard(limit int) ([]model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	err := r.DB.Table("quiz_attempts AS a").
		Select(`a.user_id, u.name, COUNT(*) AS quiz_count,
			ROUND(AVG(a.score * 100.0 / a.total_questions), 1) AS avg_score,
			MAX(ROUND(a.score * 100.0 / a.total_questions, 1)) AS best_score`).
		Joins("JOIN users u ON u.id = a.user_id AND u.deleted_at IS NULL").
		Where("a.total_questions > 0").
		Group("a.user_id, u.name").
		Order("avg_score DESC, a.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
