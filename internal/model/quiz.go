package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuizStatus string

const (
	QuizPending    QuizStatus = "PENDING" // 保留状态，生成流程不使用
	QuizGenerating QuizStatus = "GENERATING"
	QuizReady      QuizStatus = "READY"
	QuizFailed     QuizStatus = "FAILED"
)

// IsTerminal READY 与 FAILED 之后不再发生状态迁移
func (s QuizStatus) IsTerminal() bool {
	return s == QuizReady || s == QuizFailed
}

// Quiz 由一份上传文档生成的测验
// swagger:model Quiz
type Quiz struct {
	UUIDBase
	UserID              uint              `gorm:"index;not null" json:"userId"`
	Title               string            `gorm:"size:255;not null" json:"title"`
	FileName            string            `gorm:"size:255;not null" json:"fileName"`
	FileURL             string            `gorm:"size:512;not null" json:"fileUrl"`
	FileSize            int64             `gorm:"default:0" json:"fileSize"`
	Status              QuizStatus        `gorm:"size:20;index;not null;default:'GENERATING'" json:"status"`
	FlashcardCount      int               `gorm:"not null;default:10" json:"flashcardCount"`
	MCQCount            int               `gorm:"column:mcq_count;not null;default:10" json:"mcqCount"`
	OpenQuestionCount   int               `gorm:"not null;default:5" json:"openQuestionCount"`
	ShareToken          *string           `gorm:"size:36;uniqueIndex" json:"shareToken,omitempty"`
	GenerationClaimedAt *time.Time        `json:"-"`
	FailureReason       string            `gorm:"size:500" json:"failureReason,omitempty"`
	GenerationUsage     datatypes.JSONMap `json:"-"`

	Flashcards    []Flashcard    `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"flashcards,omitempty"`
	MCQs          []MCQ          `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"mcqs,omitempty"`
	OpenQuestions []OpenQuestion `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"openQuestions,omitempty"`
	Attempts      []QuizAttempt  `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type Flashcard struct {
	UUIDBase
	QuizID     string `gorm:"size:36;not null;uniqueIndex:idx_flashcard_order" json:"quizId"`
	Term       string `gorm:"type:text;not null" json:"term"`
	Definition string `gorm:"type:text;not null" json:"definition"`
	SortOrder  int    `gorm:"not null;uniqueIndex:idx_flashcard_order" json:"sortOrder"`
}

func (Flashcard) TableName() string {
	return "flashcards"
}

type MCQ struct {
	UUIDBase
	QuizID        string `gorm:"size:36;not null;uniqueIndex:idx_mcq_order" json:"quizId"`
	Question      string `gorm:"type:text;not null" json:"question"`
	OptionA       string `gorm:"type:text" json:"optionA"`
	OptionB       string `gorm:"type:text" json:"optionB"`
	OptionC       string `gorm:"type:text" json:"optionC"`
	OptionD       string `gorm:"type:text" json:"optionD"`
	CorrectOption string `gorm:"size:8;not null" json:"correctOption"` // A/B/C/D，按模型返回值原样存储
	SortOrder     int    `gorm:"not null;uniqueIndex:idx_mcq_order" json:"sortOrder"`
}

func (MCQ) TableName() string {
	return "mcqs"
}

// Option 返回选项字母对应的文本，字母无效时返回空串
func (m MCQ) Option(letter string) string {
	switch letter {
	case "A":
		return m.OptionA
	case "B":
		return m.OptionB
	case "C":
		return m.OptionC
	case "D":
		return m.OptionD
	}
	return ""
}

type OpenQuestion struct {
	UUIDBase
	QuizID      string `gorm:"size:36;not null;uniqueIndex:idx_open_question_order" json:"quizId"`
	Question    string `gorm:"type:text;not null" json:"question"`
	ModelAnswer string `gorm:"type:text;not null" json:"modelAnswer"`
	SortOrder   int    `gorm:"not null;uniqueIndex:idx_open_question_order" json:"sortOrder"`
}

func (OpenQuestion) TableName() string {
	return "open_questions"
}

// QuizSummary 列表页使用：测验本身加各类题目数量
type QuizSummary struct {
	Quiz
	FlashcardTotal    int64 `json:"flashcardTotal"`
	MCQTotal          int64 `json:"mcqTotal"`
	OpenQuestionTotal int64 `json:"openQuestionTotal"`
}

// SharedQuiz 分享链接只暴露的字段
type SharedQuiz struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Flashcards    []Flashcard    `json:"flashcards"`
	MCQs          []MCQ          `json:"mcqs"`
	OpenQuestions []OpenQuestion `json:"openQuestions"`
}
