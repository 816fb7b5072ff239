package middleware

import (
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserLimiter interface {
	Allow(ctx context.Context, userID uint) bool
}

// AIRateLimitMiddleware 按登录用户限制模型调用频率，需挂在 AuthMiddleware 之后
func AIRateLimitMiddleware(limiter UserLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if !limiter.Allow(c.Request.Context(), user.UserID) {
			logger.Log.Info("AI request rate limited", zap.Uint("userId", user.UserID), zap.String("path", c.FullPath()))
			util.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
