package controller

import (
	"aut_portal_backend/internal/testutil"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func checkHealth(t *testing.T, c *HealthController) (int, healthBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/health", c.HealthCheck)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var body healthBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Data, &body))
	}
	return rec.Code, body
}

func TestHealthCheck(t *testing.T) {
	db := testutil.NewDB(t)

	code, body := checkHealth(t, NewHealthController(db, nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "up", body.Components["database"])
	assert.Equal(t, "disabled", body.Components["redis"])

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	code, body = checkHealth(t, NewHealthController(db, rdb))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "down", body.Components["redis"])
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, _ := checkHealth(t, NewHealthController(db, nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
