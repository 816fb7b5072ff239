package repository

import (
	"aut_portal_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.Where("id = ?", id).First(&quiz).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// FindOwned 按归属查询，不属于该用户时与不存在同样返回 ErrRecordNotFound
func (r *QuizRepository) FindOwned(userID uint, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.Where("id = ? AND user_id = ?", id, userID).First(&quiz).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

// FindWithItems 加载测验及全部题目，题目按 sort_order 升序
func (r *QuizRepository) FindWithItems(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Flashcards", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("MCQs", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("OpenQuestions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ?", id).
		First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) FindByShareToken(token string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.Where("share_token = ?", token).First(&quiz).Error; err != nil {
		return nil, err
	}
	return r.FindWithItems(quiz.ID)
}

// ListByUser 用户的测验列表（新的在前），附带各类题目数量
func (r *QuizRepository) ListByUser(userID uint) ([]model.QuizSummary, error) {
	var quizzes []model.Quiz
	if err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&quizzes).Error; err != nil {
		return nil, err
	}

	summaries := make([]model.QuizSummary, len(quizzes))
	if len(quizzes) == 0 {
		return summaries, nil
	}

	ids := make([]string, len(quizzes))
	for i, q := range quizzes {
		ids[i] = q.ID
	}

	flashcards, err := r.countItems(&model.Flashcard{}, ids)
	if err != nil {
		return nil, err
	}
	mcqs, err := r.countItems(&model.MCQ{}, ids)
	if err != nil {
		return nil, err
	}
	openQuestions, err := r.countItems(&model.OpenQuestion{}, ids)
	if err != nil {
		return nil, err
	}

	for i, q := range quizzes {
		summaries[i] = model.QuizSummary{
			Quiz:              q,
			FlashcardTotal:    flashcards[q.ID],
			MCQTotal:          mcqs[q.ID],
			OpenQuestionTotal: openQuestions[q.ID],
		}
	}
	return summaries, nil
}

func (r *QuizRepository) countItems(table interface{}, quizIDs []string) (map[string]int64, error) {
	var rows []struct {
		QuizID string
		Total  int64
	}
	err := r.DB.Model(table).
		Select("quiz_id, COUNT(*) AS total").
		Where("quiz_id IN ?", quizIDs).
		Group("quiz_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.QuizID] = row.Total
	}
	return counts, nil
}

func (r *QuizRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ClaimGeneration 条件更新抢占生成权，只有一个调用方能得到 true
func (r *QuizRepository) ClaimGeneration(id string, now time.Time) (bool, error) {
	res := r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status = ? AND generation_claimed_at IS NULL", id, model.QuizGenerating).
		Update("generation_claimed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteGeneration 在一个事务中写入全部题目并把状态从 GENERATING 切到 READY。
// 状态已被其他流程改变时返回 false，事务回滚。
func (r *QuizRepository) CompleteGeneration(id string, flashcards []model.Flashcard, mcqs []model.MCQ, openQuestions []model.OpenQuestion, usage datatypes.JSONMap) (bool, error) {
	completed := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Quiz{}).
			Where("id = ? AND status = ?", id, model.QuizGenerating).
			Updates(map[string]interface{}{
				"status":           model.QuizReady,
				"failure_reason":   "",
				"generation_usage": usage,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		for i := range flashcards {
			flashcards[i].QuizID = id
			flashcards[i].SortOrder = i
		}
		for i := range mcqs {
			mcqs[i].QuizID = id
			mcqs[i].SortOrder = i
		}
		for i := range openQuestions {
			openQuestions[i].QuizID = id
			openQuestions[i].SortOrder = i
		}

		if len(flashcards) > 0 {
			if err := tx.Create(&flashcards).Error; err != nil {
				return err
			}
		}
		if len(mcqs) > 0 {
			if err := tx.Create(&mcqs).Error; err != nil {
				return err
			}
		}
		if len(openQuestions) > 0 {
			if err := tx.Create(&openQuestions).Error; err != nil {
				return err
			}
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}

// FailStaleGenerations 把领取时间早于 claimedBefore 仍在 GENERATING 的测验标记为 FAILED。
// 进程异常退出时，已领取的生成流程不会再有人收尾。
func (r *QuizRepository) FailStaleGenerations(claimedBefore time.Time, reason string) (int64, error) {
	res := r.DB.Model(&model.Quiz{}).
		Where("status = ? AND generation_claimed_at IS NOT NULL AND generation_claimed_at < ?", model.QuizGenerating, claimedBefore).
		Updates(map[string]interface{}{
			"status":         model.QuizFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}

// CountByFileURL 引用同一上传文件的测验数
func (r *QuizRepository) CountByFileURL(fileURL string) (int64, error) {
	var n int64
	err := r.DB.Model(&model.Quiz{}).Where("file_url = ?", fileURL).Count(&n).Error
	return n, err
}

const maxFailureReason = 500

// MarkFailed 仅当仍处于 GENERATING 时切到 FAILED
func (r *QuizRepository) MarkFailed(id, reason string) (bool, error) {
	if runes := []rune(reason); len(runes) > maxFailureReason {
		reason = string(runes[:maxFailureReason])
	}
	res := r.DB.Model(&model.Quiz{}).
		Where("id = ? AND status = ?", id, model.QuizGenerating).
		Updates(map[string]interface{}{
			"status":         model.QuizFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

// SetShareToken 仅在尚未分享时写入令牌，并返回最终生效的令牌
func (r *QuizRepository) SetShareToken(id, token string) (string, error) {
	err := r.DB.Model(&model.Quiz{}).
		Where("id = ? AND share_token IS NULL", id).
		Update("share_token", token).Error
	if err != nil {
		return "", err
	}

	var quiz model.Quiz
	if err := r.DB.Select("id", "share_token").Where("id = ?", id).First(&quiz).Error; err != nil {
		return "", err
	}
	if quiz.ShareToken == nil {
		return "", gorm.ErrRecordNotFound
	}
	return *quiz.ShareToken, nil
}

// DeleteCascade 删除测验及其题目、作答记录与作答明细
func (r *QuizRepository) DeleteCascade(userID uint, id string) (bool, error) {
	deleted := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Quiz{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		attemptIDs := tx.Model(&model.QuizAttempt{}).Select("id").Where("quiz_id = ?", id)
		if err := tx.Where("attempt_id IN (?)", attemptIDs).Delete(&model.QuizAttemptAnswer{}).Error; err != nil {
			return err
		}
		for _, table := range []interface{}{&model.QuizAttempt{}, &model.Flashcard{}, &model.MCQ{}, &model.OpenQuestion{}} {
			if err := tx.Where("quiz_id = ?", id).Delete(table).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}

func (r *QuizRepository) FindMCQs(quizID string) ([]model.MCQ, error) {
	var mcqs []model.MCQ
	err := r.DB.Where("quiz_id = ?", quizID).Order("sort_order ASC").Find(&mcqs).Error
	return mcqs, err
}

// MCQTexts 按 id 查询题干，用于高频错题展示
func (r *QuizRepository) MCQTexts(ids []string) (map[string]string, error) {
	texts := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return texts, nil
	}
	var mcqs []model.MCQ
	if err := r.DB.Select("id", "question").Where("id IN ?", ids).Find(&mcqs).Error; err != nil {
		return nil, err
	}
	for _, m := range mcqs {
		texts[m.ID] = m.Question
	}
	return texts, nil
}
