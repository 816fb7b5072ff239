package service

import (
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/pkg/logger"
	"aut_portal_backend/pkg/monitoring"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = time.Minute

// CleanupService 定期删除验证令牌已过期的未验证账号
type CleanupService struct {
	UserRepo *repository.UserRepository
	Interval time.Duration
	Now      func() time.Time

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewCleanupService(userRepo *repository.UserRepository, interval time.Duration, now func() time.Time) *CleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if now == nil {
		now = time.Now
	}
	return &CleanupService{
		UserRepo: userRepo,
		Interval: interval,
		Now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RunOnce 执行一次清理，出错只记录日志
func (s *CleanupService) RunOnce() int64 {
	deleted, err := s.UserRepo.DeleteExpiredUnverified(s.Now())
	if err != nil {
		logger.Log.Error("Unverified user cleanup failed", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		monitoring.CleanupDeletedUsers.Add(float64(deleted))
		logger.Log.Info("Deleted expired unverified users", zap.Int64("count", deleted))
	}
	return deleted
}

func (s *CleanupService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.RunOnce()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stop:
				return
			}
		}
	}()
	logger.Log.Info("Unverified user cleanup scheduled", zap.Duration("interval", s.Interval))
}

// Stop 停止定时任务并等待当前一轮结束；未调用 Start 时直接返回
func (s *CleanupService) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}
