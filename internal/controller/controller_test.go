package controller

import (
	"archive/zip"
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/middleware"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/service"
	"aut_portal_backend/internal/testutil"
	"aut_portal_backend/internal/util"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "controller-test-secret"

type stubGenerator struct {
	content *service.QuizContent
	err     error
}

func (g *stubGenerator) GenerateQuizContent(ctx context.Context, text string, counts service.QuizCounts) (*service.QuizContent, error) {
	return g.content, g.err
}

type stubChat struct {
	reply string
	err   error
}

func (c *stubChat) ChatWithMaterial(ctx context.Context, materialText, message string, history []service.AIChatMessage) (string, error) {
	return c.reply, c.err
}

type stubMailer struct {
	token string
}

func (m *stubMailer) SendVerificationEmail(to, token string) error {
	m.token = token
	return nil
}

type harness struct {
	router     *gin.Engine
	db         *gorm.DB
	cfg        *config.Config
	generator  *stubGenerator
	chat       *stubChat
	mailer     *stubMailer
	generation *service.GenerationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour},
		Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		Mail:    config.MailConfig{AllowedDomain: "@aut-edu.uz"},
		Quiz: config.QuizConfig{
			MaxUploadMB:          20,
			MaterialMaxUploadMB:  50,
			MinTextLength:        20,
			DefaultFlashcards:    10,
			DefaultMCQs:          10,
			DefaultOpenQuestions: 5,
		},
		AI: config.AIConfig{Timeout: time.Second},
	}

	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	storage := service.NewStorageService(cfg)

	h := &harness{
		db:        db,
		cfg:       cfg,
		generator: &stubGenerator{},
		chat:      &stubChat{reply: "TCP is reliable."},
		mailer:    &stubMailer{},
	}
	h.generation = service.NewGenerationService(quizRepo, storage, h.generator, cfg.Quiz, cfg.AI)
	t.Cleanup(func() { h.generation.Shutdown(context.Background()) })

	quizCtrl := NewQuizController(
		service.NewQuizService(quizRepo, storage, h.chat, nil, cfg.Quiz),
		h.generation,
		service.NewAttemptService(quizRepo, attemptRepo),
	)
	authCtrl := NewAuthController(service.NewAuthService(repository.NewUserRepository(db), h.mailer, cfg))
	analyticsCtrl := NewAnalyticsController(service.NewAnalyticsService(quizRepo, attemptRepo))
	courseCtrl := NewCourseController(service.NewCourseService(repository.NewCourseRepository(db), storage, cfg.Quiz))

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/register", authCtrl.Register)
	api.GET("/auth/verify", authCtrl.Verify)
	api.POST("/auth/login", authCtrl.Login)
	api.GET("/quiz/share/:token", quizCtrl.GetShared)
	api.GET("/courses", courseCtrl.ListCourses)
	api.GET("/courses/:id", courseCtrl.GetCourse)

	auth := r.Group("/api", middleware.AuthMiddleware(cfg))
	auth.GET("/profile", authCtrl.Profile)
	auth.POST("/quiz/upload", quizCtrl.UploadFile)
	auth.GET("/quiz", quizCtrl.ListQuizzes)
	auth.POST("/quiz", quizCtrl.CreateQuiz)
	auth.POST("/quiz/generate", quizCtrl.Generate)
	auth.GET("/quiz/:id", quizCtrl.GetQuiz)
	auth.GET("/quiz/:id/status", quizCtrl.GetStatus)
	auth.PATCH("/quiz/:id", quizCtrl.Share)
	auth.DELETE("/quiz/:id", quizCtrl.DeleteQuiz)
	auth.POST("/quiz/:id/chat", quizCtrl.Chat)
	auth.POST("/quiz/:id/attempt", quizCtrl.RecordAttempt)
	auth.GET("/quiz/:id/export", quizCtrl.Export)
	auth.GET("/analytics", analyticsCtrl.GetAnalytics)
	auth.GET("/leaderboard", analyticsCtrl.GetLeaderboard)
	auth.POST("/courses/:id/enroll", courseCtrl.Enroll)
	auth.DELETE("/courses/:id/enroll", courseCtrl.Unenroll)

	admin := r.Group("/api/admin", middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	admin.POST("/courses", courseCtrl.CreateCourse)
	admin.POST("/courses/:id/materials", courseCtrl.CreateMaterial)
	admin.DELETE("/courses/:id", courseCtrl.DeleteCourse)

	h.router = r
	return h
}

// token 为已存在的用户签发 JWT
func (h *harness) token(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.serve(t, req, token)
}

func (h *harness) upload(t *testing.T, path, token, fileName string, data []byte) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.serve(t, req, token)
}

func (h *harness) serve(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func docx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		text + `</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
