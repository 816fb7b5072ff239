package testutil

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/pkg/database"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 返回已迁移的内存 SQLite 库。连接数限制为 1，保证所有查询落在同一个内存库上。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:          name,
		Email:         email,
		Password:      "x",
		Role:          model.Student,
		EmailVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateReadyQuiz 创建一个 READY 状态的测验，correct 为每道选择题的正确选项
func CreateReadyQuiz(t testing.TB, db *gorm.DB, userID uint, title string, correct ...string) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		UserID:   userID,
		Title:    title,
		FileName: "notes.pdf",
		FileURL:  "/uploads/quiz/notes.pdf",
		Status:   model.QuizReady,
	}
	require.NoError(t, db.Create(quiz).Error)

	for i, c := range correct {
		mcq := model.MCQ{
			QuizID:        quiz.ID,
			Question:      title + " question " + string(rune('1'+i)),
			OptionA:       "a",
			OptionB:       "b",
			OptionC:       "c",
			OptionD:       "d",
			CorrectOption: c,
			SortOrder:     i,
		}
		require.NoError(t, db.Create(&mcq).Error)
		quiz.MCQs = append(quiz.MCQs, mcq)
	}
	return quiz
}

// CreateAttempt 直接写入一条作答记录，用于统计类测试
func CreateAttempt(t testing.TB, db *gorm.DB, userID uint, quizID string, score, total int, at time.Time, answers ...model.QuizAttemptAnswer) *model.QuizAttempt {
	t.Helper()
	attempt := &model.QuizAttempt{
		QuizID:         quizID,
		UserID:         userID,
		Score:          score,
		TotalQuestions: total,
	}
	attempt.CreatedAt = at
	require.NoError(t, db.Omit("Answers").Create(attempt).Error)
	for i := range answers {
		answers[i].AttemptID = attempt.ID
		require.NoError(t, db.Create(&answers[i]).Error)
	}
	return attempt
}
