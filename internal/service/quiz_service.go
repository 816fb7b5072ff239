package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/extractor"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinItemCount = 1
	MaxItemCount = 30

	quizUploadFolder = "quiz"
)

type ChatAssistant interface {
	ChatWithMaterial(ctx context.Context, materialText, message string, history []AIChatMessage) (string, error)
}

type QuizService struct {
	Repo    *repository.QuizRepository
	Storage *StorageService
	AI      ChatAssistant
	Cache   *QuizStatusCache
	Cfg     config.QuizConfig
}

func NewQuizService(repo *repository.QuizRepository, storage *StorageService, ai ChatAssistant, cache *QuizStatusCache, cfg config.QuizConfig) *QuizService {
	return &QuizService{
		Repo:    repo,
		Storage: storage,
		AI:      ai,
		Cache:   cache,
		Cfg:     cfg,
	}
}

type CreateQuizRequest struct {
	Title             string `json:"title" binding:"required"`
	FileName          string `json:"fileName" binding:"required"`
	FileURL           string `json:"fileUrl" binding:"required"`
	FileSize          int64  `json:"fileSize"`
	FlashcardCount    *int   `json:"flashcardCount"`
	MCQCount          *int   `json:"mcqCount"`
	OpenQuestionCount *int   `json:"openQuestionCount"`
}

// ClampCount 省略时取默认值，否则限制在 [1,30]
func ClampCount(v *int, def int) int {
	n := def
	if v != nil {
		n = *v
	}
	if n < MinItemCount {
		return MinItemCount
	}
	if n > MaxItemCount {
		return MaxItemCount
	}
	return n
}

func (s *QuizService) UploadQuizFile(ctx context.Context, fh *multipart.FileHeader) (*StoredFile, error) {
	maxBytes := int64(s.Cfg.MaxUploadMB) << 20
	return s.Storage.SaveUpload(ctx, quizUploadFolder, fh, util.QuizDocumentExtensions, util.QuizDocumentMimes, maxBytes)
}

// CreateQuiz 创建处于 GENERATING 状态的测验，生成需另行触发
func (s *QuizService) CreateQuiz(userID uint, req CreateQuizRequest) (*model.Quiz, error) {
	if strings.TrimSpace(req.Title) == "" || req.FileName == "" || req.FileURL == "" {
		return nil, util.ErrMissingFields
	}
	if !s.isQuizUpload(req.FileURL) {
		return nil, util.ErrInvalidFileURL
	}
	fileSize := req.FileSize
	if fileSize < 0 {
		fileSize = 0
	}

	quiz := &model.Quiz{
		UserID:            userID,
		Title:             strings.TrimSpace(req.Title),
		FileName:          req.FileName,
		FileURL:           req.FileURL,
		FileSize:          fileSize,
		Status:            model.QuizGenerating,
		FlashcardCount:    ClampCount(req.FlashcardCount, s.Cfg.DefaultFlashcards),
		MCQCount:          ClampCount(req.MCQCount, s.Cfg.DefaultMCQs),
		OpenQuestionCount: ClampCount(req.OpenQuestionCount, s.Cfg.DefaultOpenQuestions),
	}
	if err := s.Repo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// isQuizUpload 只接受测验上传目录下的文件，防止引用课程资料等其他文件
func (s *QuizService) isQuizUpload(fileURL string) bool {
	key, ok := s.Storage.Provider.KeyFromURL(fileURL)
	if !ok {
		return false
	}
	return strings.HasPrefix(path.Clean(key), quizUploadFolder+"/")
}

func (s *QuizService) ListQuizzes(userID uint) ([]model.QuizSummary, error) {
	return s.Repo.ListByUser(userID)
}

func (s *QuizService) findOwned(userID uint, quizID string) (*model.Quiz, error) {
	quiz, err := s.Repo.FindOwned(userID, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

// GetQuiz 返回测验及按 sortOrder 排序的全部题目
func (s *QuizService) GetQuiz(userID uint, quizID string) (*model.Quiz, error) {
	if _, err := s.findOwned(userID, quizID); err != nil {
		return nil, err
	}
	quiz, err := s.Repo.FindWithItems(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

// GetStatus 前端轮询生成进度，终态会写入缓存
func (s *QuizService) GetStatus(ctx context.Context, userID uint, quizID string) (*QuizStatusView, error) {
	if view, owner, ok := s.Cache.Get(ctx, quizID); ok {
		if owner != userID {
			return nil, util.ErrQuizNotFound
		}
		return view, nil
	}

	quiz, err := s.findOwned(userID, quizID)
	if err != nil {
		return nil, err
	}
	view := QuizStatusView{ID: quiz.ID, Status: quiz.Status}
	if quiz.Status == model.QuizFailed {
		view.FailureReason = quiz.FailureReason
	}
	s.Cache.Set(ctx, userID, view)
	return &view, nil
}

// RequestShareToken 返回测验的分享令牌，首次调用时生成；并发调用得到同一个令牌
func (s *QuizService) RequestShareToken(userID uint, quizID string) (string, error) {
	quiz, err := s.findOwned(userID, quizID)
	if err != nil {
		return "", err
	}
	if quiz.ShareToken != nil {
		return *quiz.ShareToken, nil
	}
	return s.Repo.SetShareToken(quizID, uuid.NewString())
}

func (s *QuizService) GetSharedQuiz(token string) (*model.SharedQuiz, error) {
	if token == "" {
		return nil, util.ErrShareNotFound
	}
	quiz, err := s.Repo.FindByShareToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrShareNotFound
		}
		return nil, err
	}
	return &model.SharedQuiz{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Flashcards:    nonNil(quiz.Flashcards),
		MCQs:          nonNil(quiz.MCQs),
		OpenQuestions: nonNil(quiz.OpenQuestions),
	}, nil
}

// DeleteQuiz 删除测验及其全部题目和作答记录；上传文件不再被任何测验引用时尽力删除
func (s *QuizService) DeleteQuiz(ctx context.Context, userID uint, quizID string) error {
	quiz, err := s.findOwned(userID, quizID)
	if err != nil {
		return err
	}
	deleted, err := s.Repo.DeleteCascade(userID, quizID)
	if err != nil {
		return err
	}
	if !deleted {
		return util.ErrQuizNotFound
	}
	s.Cache.Invalidate(ctx, quizID)

	// 重新生成时新测验会复用同一份上传，仍被引用的文件保留
	refs, err := s.Repo.CountByFileURL(quiz.FileURL)
	if err != nil {
		logger.Log.Warn("Failed to count quiz file references", zap.String("quizId", quizID), zap.Error(err))
		return nil
	}
	if refs > 0 {
		return nil
	}
	if err := s.Storage.Delete(ctx, quiz.FileURL); err != nil {
		logger.Log.Warn("Failed to delete quiz file", zap.String("quizId", quizID), zap.String("fileUrl", quiz.FileURL), zap.Error(err))
	}
	return nil
}

// Chat 基于测验原始资料回答问题；资料无法读取时退化为用测验题目作为上下文
func (s *QuizService) Chat(ctx context.Context, userID uint, quizID, message string, history []AIChatMessage) (string, error) {
	quiz, err := s.findOwned(userID, quizID)
	if err != nil {
		return "", err
	}

	material, err := s.materialText(ctx, quiz)
	if err != nil {
		logger.Log.Info("Using quiz items as chat context", zap.String("quizId", quizID), zap.Error(err))
		full, loadErr := s.Repo.FindWithItems(quizID)
		if loadErr != nil {
			return "", loadErr
		}
		material = QuizItemsContext(full)
	}

	return s.AI.ChatWithMaterial(ctx, material, message, filterHistory(history))
}

func (s *QuizService) materialText(ctx context.Context, quiz *model.Quiz) (string, error) {
	data, err := s.Storage.Read(ctx, quiz.FileURL)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return extractor.ExtractText(data, quiz.FileName)
}

// QuizItemsContext 把测验题目拼成对话上下文
func QuizItemsContext(quiz *model.Quiz) string {
	parts := make([]string, 0, len(quiz.Flashcards)+len(quiz.MCQs)+len(quiz.OpenQuestions))
	for _, f := range quiz.Flashcards {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Term, f.Definition))
	}
	for _, m := range quiz.MCQs {
		parts = append(parts, fmt.Sprintf("Q: %s A: %s", m.Question, m.CorrectOption))
	}
	for _, q := range quiz.OpenQuestions {
		parts = append(parts, fmt.Sprintf("Q: %s A: %s", q.Question, q.ModelAnswer))
	}
	return strings.Join(parts, "\n")
}

// filterHistory 只保留 user / assistant 轮次，防止客户端注入 system 消息
func filterHistory(history []AIChatMessage) []AIChatMessage {
	out := make([]AIChatMessage, 0, len(history))
	for _, h := range history {
		if h.Role == "user" || h.Role == "assistant" {
			out = append(out, h)
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
