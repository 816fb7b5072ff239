package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/extractor"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"aut_portal_backend/pkg/monitoring"
	"aut_portal_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileReader 按 fileUrl 读取已上传的文件
type FileReader interface {
	Read(ctx context.Context, fileURL string) ([]byte, error)
}

type QuizGenerator interface {
	GenerateQuizContent(ctx context.Context, text string, counts QuizCounts) (*QuizContent, error)
}

var errGenerationSuperseded = errors.New("quiz left GENERATING before results were saved")

// GenerationService 负责抢占生成权并在后台执行生成流程
type GenerationService struct {
	Repo  *repository.QuizRepository
	Files FileReader
	AI    QuizGenerator

	minTextLength int
	passTimeout   time.Duration
	now           func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewGenerationService(repo *repository.QuizRepository, files FileReader, ai QuizGenerator, quizCfg config.QuizConfig, aiCfg config.AIConfig) *GenerationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &GenerationService{
		Repo:          repo,
		Files:         files,
		AI:            ai,
		minTextLength: quizCfg.MinTextLength,
		passTimeout:   passTimeout(aiCfg),
		now:           time.Now,
		baseCtx:       ctx,
		cancel:        cancel,
	}
}

// passTimeout 单次生成流程的总时限：每次模型调用的超时乘以尝试次数，再加上退避与提取文本的余量
func passTimeout(cfg config.AIConfig) time.Duration {
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	backoff := cfg.RetryBackoff * time.Duration(1<<uint(attempts))
	return timeout*time.Duration(attempts) + backoff + 30*time.Second
}

// StartGeneration 校验归属并抢占生成权，成功后在后台执行生成流程。
// 同一测验只会有一个调用方成功，其余返回 ErrGenerationConflict。
func (s *GenerationService) StartGeneration(ctx context.Context, userID uint, quizID string) error {
	if _, err := s.Repo.FindOwned(userID, quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}

	claimed, err := s.Repo.ClaimGeneration(quizID, s.now())
	if err != nil {
		return err
	}
	if !claimed {
		monitoring.QuizGenerations.WithLabelValues("conflict").Inc()
		return util.ErrGenerationConflict
	}

	logger.Log.Info("Quiz generation started", zap.String("quizId", quizID), zap.Uint("userId", userID))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		passCtx, cancel := context.WithTimeout(s.baseCtx, s.passTimeout)
		defer cancel()
		_ = s.RunGeneration(passCtx, quizID)
	}()
	return nil
}

// RunGeneration 同步执行一次生成流程；调用方需已持有生成权。
// 失败时测验被标记为 FAILED，返回的错误仅用于日志。
func (s *GenerationService) RunGeneration(ctx context.Context, quizID string) error {
	ctx, span := tracing.StartSpan(ctx, "quiz.generate", attribute.String("quiz.id", quizID))
	start := time.Now()

	err := s.generate(ctx, quizID)
	if err != nil {
		reason := failureReason(err)
		if _, markErr := s.Repo.MarkFailed(quizID, reason); markErr != nil {
			logger.Log.Error("Failed to mark quiz as failed", zap.String("quizId", quizID), zap.Error(markErr))
		}
		monitoring.QuizGenerations.WithLabelValues("failed").Inc()
		logger.Log.Warn("Quiz generation failed",
			zap.String("quizId", quizID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	} else {
		monitoring.QuizGenerations.WithLabelValues("ready").Inc()
		logger.Log.Info("Quiz generation finished",
			zap.String("quizId", quizID),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	tracing.EndSpan(span, err)
	return err
}

func (s *GenerationService) generate(ctx context.Context, quizID string) error {
	quiz, err := s.Repo.FindByID(quizID)
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}

	data, err := s.Files.Read(ctx, quiz.FileURL)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	text, err := extractor.ExtractText(data, quiz.FileName)
	if err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.minTextLength {
		return util.ErrInsufficientText
	}

	content, err := s.AI.GenerateQuizContent(ctx, text, QuizCounts{
		Flashcards:    quiz.FlashcardCount,
		MCQs:          quiz.MCQCount,
		OpenQuestions: quiz.OpenQuestionCount,
	})
	if err != nil {
		return err
	}

	flashcards := make([]model.Flashcard, len(content.Flashcards))
	for i, f := range content.Flashcards {
		flashcards[i] = model.Flashcard{Term: f.Term, Definition: f.Definition}
	}
	mcqs := make([]model.MCQ, len(content.MCQs))
	for i, m := range content.MCQs {
		mcqs[i] = model.MCQ{
			Question:      m.Question,
			OptionA:       m.OptionA,
			OptionB:       m.OptionB,
			OptionC:       m.OptionC,
			OptionD:       m.OptionD,
			CorrectOption: m.CorrectOption,
		}
	}
	openQuestions := make([]model.OpenQuestion, len(content.OpenQuestions))
	for i, q := range content.OpenQuestions {
		openQuestions[i] = model.OpenQuestion{Question: q.Question, ModelAnswer: q.ModelAnswer}
	}

	completed, err := s.Repo.CompleteGeneration(quizID, flashcards, mcqs, openQuestions, usageMap(content))
	if err != nil {
		return fmt.Errorf("save quiz content: %w", err)
	}
	if !completed {
		return errGenerationSuperseded
	}
	return nil
}

func usageMap(content *QuizContent) datatypes.JSONMap {
	usage := datatypes.JSONMap{"model": content.Model}
	if content.Usage != nil {
		usage["promptTokens"] = content.Usage.PromptTokens
		usage["completionTokens"] = content.Usage.CompletionTokens
		usage["totalTokens"] = content.Usage.TotalTokens
	}
	return usage
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, util.ErrInsufficientText):
		return util.ErrInsufficientText.Error()
	case errors.Is(err, extractor.ErrUnsupportedFormat), errors.Is(err, extractor.ErrCorruptDocument):
		return err.Error()
	case errors.Is(err, util.ErrGenerationFailed):
		return util.ErrGenerationFailed.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	}
	return "generation failed"
}

const staleGenerationReason = "generation was interrupted"

// RecoverStale 启动时调用：超过单次流程时限仍未结束的已领取测验视为中断，标记为 FAILED
func (s *GenerationService) RecoverStale() (int64, error) {
	n, err := s.Repo.FailStaleGenerations(s.now().Add(-s.passTimeout), staleGenerationReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.QuizGenerations.WithLabelValues("failed").Add(float64(n))
		logger.Log.Warn("Marked interrupted quiz generations as failed", zap.Int64("count", n))
	}
	return n, nil
}

// Shutdown 等待进行中的生成流程结束；ctx 到期后取消剩余流程，它们会被标记为 FAILED
func (s *GenerationService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
