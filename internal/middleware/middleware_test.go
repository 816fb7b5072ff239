package middleware

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/util"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

type countingLimiter struct {
	limit int
	seen  map[uint]int
}

func (l *countingLimiter) Allow(ctx context.Context, userID uint) bool {
	l.seen[userID]++
	return l.seen[userID] <= l.limit
}

func newRouter(limiter UserLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r := gin.New()
	api := r.Group("/api", AuthMiddleware(cfg))
	api.GET("/me", ok)
	api.POST("/quiz/generate", AIRateLimitMiddleware(limiter), ok)
	api.GET("/admin", RoleMiddleware(model.Admin), ok)
	r.GET("/limited", AIRateLimitMiddleware(limiter), ok)
	return r
}

func tokenFor(t *testing.T, id uint, role model.UserRole, secret string, ttl time.Duration) string {
	t.Helper()
	user := &model.User{Email: "u@aut-edu.uz", Role: role}
	user.ID = id
	token, err := util.GenerateJWT(user, secret, ttl)
	require.NoError(t, err)
	return token
}

func request(r *gin.Engine, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(&countingLimiter{limit: 1, seen: map[uint]int{}})

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/me", ""))
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/me", "garbage"))
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/me", tokenFor(t, 1, model.Student, "other-secret", time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/me", tokenFor(t, 1, model.Student, testSecret, -time.Minute)))
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodGet, "/api/me", tokenFor(t, 1, model.Student, testSecret, time.Hour)))

	// 查询参数中的 token 同样有效
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodGet, "/api/me?token="+tokenFor(t, 1, model.Student, testSecret, time.Hour), ""))
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(&countingLimiter{limit: 1, seen: map[uint]int{}})
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/admin", tokenFor(t, 1, model.Student, testSecret, time.Hour)))
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodGet, "/api/admin", tokenFor(t, 2, model.Admin, testSecret, time.Hour)))
}

func TestAIRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{limit: 2, seen: map[uint]int{}}
	r := newRouter(limiter)
	alice := tokenFor(t, 1, model.Student, testSecret, time.Hour)
	bob := tokenFor(t, 2, model.Student, testSecret, time.Hour)

	assert.Equal(t, http.StatusNoContent, request(r, http.MethodPost, "/api/quiz/generate", alice))
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodPost, "/api/quiz/generate", alice))
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/api/quiz/generate", alice))
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodPost, "/api/quiz/generate", bob))

	// 未经过 AuthMiddleware 时没有用户信息
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/limited", ""))
}
