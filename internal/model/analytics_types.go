package model

import "time"

// ScorePoint 成绩曲线上的一个点
type ScorePoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
	Quiz  string `json:"quiz"`
}

// QuizAverage 单个测验的平均分
type QuizAverage struct {
	Title    string `json:"title"`
	AvgScore int    `json:"avgScore"`
}

// MissedQuestion 高频错题
type MissedQuestion struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// QuizAnalytics 个人作答统计
type QuizAnalytics struct {
	TotalQuizzes    int64            `json:"totalQuizzes"`
	TotalAttempts   int              `json:"totalAttempts"`
	AverageScore    int              `json:"averageScore"`
	BestScore       int              `json:"bestScore"`
	QuizzesThisWeek int              `json:"quizzesThisWeek"`
	ScoreOverTime   []ScorePoint     `json:"scoreOverTime"`
	PerQuiz         []QuizAverage    `json:"perQuiz"`
	MostMissed      []MissedQuestion `json:"mostMissed"`
}

// LeaderboardRow 排行榜聚合查询结果
type LeaderboardRow struct {
	UserID    uint    `json:"userId"`
	Name      string  `json:"name"`
	QuizCount int     `json:"quizCount"`
	AvgScore  float64 `json:"avgScore"`
	BestScore float64 `json:"bestScore"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	LeaderboardRow
	IsCurrentUser bool `json:"isCurrentUser"`
}

// MissCount 按题目统计的错误次数
type MissCount struct {
	QuestionID string
	Count      int `gorm:"column:miss_count"`
}

// AttemptWithTitle 作答记录附带测验标题，供统计使用
type AttemptWithTitle struct {
	ID             string
	QuizID         string
	QuizTitle      string
	Score          int
	TotalQuestions int
	CreatedAt      time.Time
}
