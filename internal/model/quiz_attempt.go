package model

import "math"

// QuizAttempt 一次完整作答记录，创建后不可修改
type QuizAttempt struct {
	UUIDBase
	QuizID         string              `gorm:"size:36;index;not null" json:"quizId"`
	UserID         uint                `gorm:"index;not null" json:"userId"`
	Score          int                 `gorm:"not null" json:"score"`
	TotalQuestions int                 `gorm:"not null" json:"totalQuestions"`
	Answers        []QuizAttemptAnswer `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"answers"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizAttemptAnswer 单题作答结果
type QuizAttemptAnswer struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	AttemptID      string `gorm:"size:36;index;not null" json:"-"`
	QuestionID     string `gorm:"size:36;index;not null" json:"questionId"`
	SelectedOption string `gorm:"size:1" json:"selectedOption"`
	Correct        bool   `gorm:"index" json:"correct"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}

// RawPercent 未取整的得分百分比，totalQuestions 为 0 时为 0
func RawPercent(score, totalQuestions int) float64 {
	if totalQuestions <= 0 {
		return 0
	}
	return float64(score) / float64(totalQuestions) * 100
}

// Percent 四舍五入（.5 向上）后的得分百分比
func Percent(score, totalQuestions int) int {
	return RoundHalfUp(RawPercent(score, totalQuestions))
}

func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func (a QuizAttempt) Percent() int {
	return Percent(a.Score, a.TotalQuestions)
}
