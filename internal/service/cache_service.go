package service

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const quizStatusTTL = 10 * time.Minute

// QuizStatusView 轮询接口返回的生成状态
type QuizStatusView struct {
	ID            string           `json:"id"`
	Status        model.QuizStatus `json:"status"`
	FailureReason string           `json:"failureReason,omitempty"`
}

type cachedQuizStatus struct {
	UserID uint           `json:"userId"`
	View   QuizStatusView `json:"view"`
}

// QuizStatusCache 缓存已进入终态的测验状态，Redis 为 nil 时所有操作为空操作。
// 终态不会再变化，因此只在删除测验时失效。
type QuizStatusCache struct {
	Redis *redis.Client
}

func NewQuizStatusCache(rdb *redis.Client) *QuizStatusCache {
	return &QuizStatusCache{Redis: rdb}
}

func quizStatusKey(quizID string) string {
	return "quiz_status:" + quizID
}

// Get 返回缓存的状态及测验所属用户
func (c *QuizStatusCache) Get(ctx context.Context, quizID string) (*QuizStatusView, uint, bool) {
	if c == nil || c.Redis == nil {
		return nil, 0, false
	}
	val, err := c.Redis.Get(ctx, quizStatusKey(quizID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("Quiz status cache read failed", zap.String("quizId", quizID), zap.Error(err))
		}
		return nil, 0, false
	}
	var cached cachedQuizStatus
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, 0, false
	}
	return &cached.View, cached.UserID, true
}

// Set 只缓存 READY / FAILED，GENERATING 需要每次查库
func (c *QuizStatusCache) Set(ctx context.Context, userID uint, view QuizStatusView) {
	if c == nil || c.Redis == nil || !view.Status.IsTerminal() {
		return
	}
	data, err := json.Marshal(cachedQuizStatus{UserID: userID, View: view})
	if err != nil {
		return
	}
	if err := c.Redis.Set(ctx, quizStatusKey(view.ID), data, quizStatusTTL).Err(); err != nil {
		logger.Log.Warn("Quiz status cache write failed", zap.String("quizId", view.ID), zap.Error(err))
	}
}

func (c *QuizStatusCache) Invalidate(ctx context.Context, quizID string) {
	if c == nil || c.Redis == nil {
		return
	}
	c.Redis.Del(ctx, quizStatusKey(quizID))
}

// AIRateLimiter 按用户、按分钟窗口限制 AI 调用次数（生成 + 对话共用额度）。
// Redis 不可用时放行。
type AIRateLimiter struct {
	Redis *redis.Client

	mu    sync.RWMutex
	limit int
	now   func() time.Time
}

func NewAIRateLimiter(rdb *redis.Client, perMinute int) *AIRateLimiter {
	return &AIRateLimiter{Redis: rdb, limit: perMinute, now: time.Now}
}

func (l *AIRateLimiter) UpdateLimit(perMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = perMinute
}

func (l *AIRateLimiter) Allow(ctx context.Context, userID uint) bool {
	if l == nil || l.Redis == nil {
		return true
	}
	l.mu.RLock()
	limit := l.limit
	l.mu.RUnlock()
	if limit <= 0 {
		return true
	}

	key := fmt.Sprintf("ai_rate:%d:%d", userID, l.now().Unix()/60)
	var incr *redis.IntCmd
	_, err := l.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		return nil
	})
	if err != nil {
		logger.Log.Warn("AI rate limiter unavailable", zap.Uint("userId", userID), zap.Error(err))
		return true
	}
	return incr.Val() <= int64(limit)
}
