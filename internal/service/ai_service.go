package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"aut_portal_backend/pkg/monitoring"
	"aut_portal_backend/pkg/tracing"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	opGenerate = "generate"
	opChat     = "chat"

	generateTemperature = 0.7
	chatTemperature     = 0.3
)

var errMalformedResponse = errors.New("malformed model response")

type AIService struct {
	mu            sync.RWMutex
	config        config.AIConfig
	maxTextLength int
	client        *http.Client
}

func NewAIService(cfg config.AIConfig, maxTextLength int) *AIService {
	return &AIService{
		config:        cfg,
		maxTextLength: maxTextLength,
		client:        &http.Client{},
	}
}

// UpdateConfig 配置热更新时替换模型、密钥与重试参数
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *AIService) currentConfig() config.AIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []AIChatMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// upstreamError 模型服务返回的非 2xx 响应
type upstreamError struct {
	Status int
	Body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("AI API error (status %d): %s", e.Status, e.Body)
}

type QuizCounts struct {
	Flashcards    int
	MCQs          int
	OpenQuestions int
}

type FlashcardData struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type MCQData struct {
	Question      string `json:"question"`
	OptionA       string `json:"optionA"`
	OptionB       string `json:"optionB"`
	OptionC       string `json:"optionC"`
	OptionD       string `json:"optionD"`
	CorrectOption string `json:"correctOption"`
}

type OpenQuestionData struct {
	Question    string `json:"question"`
	ModelAnswer string `json:"modelAnswer"`
}

type QuizContent struct {
	Flashcards    []FlashcardData    `json:"flashcards"`
	MCQs          []MCQData          `json:"mcqs"`
	OpenQuestions []OpenQuestionData `json:"openQuestions"`
	Usage         *TokenUsage        `json:"-"`
	Model         string             `json:"-"`
}

// GenerateQuizContent 根据课程文本生成闪卡、选择题与开放题。
// 返回内容不做数量和答案字母的本地校验。
func (s *AIService) GenerateQuizContent(ctx context.Context, text string, counts QuizCounts) (*QuizContent, error) {
	cfg := s.currentConfig()
	prompt := buildQuizPrompt(truncateRunes(text, s.maxTextLength), counts)

	req := chatCompletionRequest{
		Model:          cfg.Model,
		Messages:       []AIChatMessage{{Role: "user", Content: prompt}},
		Temperature:    generateTemperature,
		MaxTokens:      cfg.GenerateTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	raw, usage, err := s.complete(ctx, cfg, opGenerate, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrGenerationFailed, err)
	}

	var content QuizContent
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &content); err != nil {
		logger.Log.Error("Failed to decode quiz JSON", zap.Error(err), zap.Int("length", len(raw)))
		return nil, fmt.Errorf("%w: invalid JSON from model: %v", util.ErrGenerationFailed, err)
	}
	content.Usage = usage
	content.Model = cfg.Model
	return &content, nil
}

// ChatWithMaterial 基于资料文本回答学生问题，history 按顺序原样回放
func (s *AIService) ChatWithMaterial(ctx context.Context, materialText, message string, history []AIChatMessage) (string, error) {
	cfg := s.currentConfig()

	messages := make([]AIChatMessage, 0, len(history)+2)
	messages = append(messages, AIChatMessage{
		Role:    "system",
		Content: buildChatSystemPrompt(truncateRunes(materialText, s.maxTextLength)),
	})
	messages = append(messages, history...)
	messages = append(messages, AIChatMessage{Role: "user", Content: message})

	req := chatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   cfg.ChatTokens,
	}

	reply, _, err := s.complete(ctx, cfg, opChat, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrChatFailed, err)
	}
	return reply, nil
}

// complete 调用 chat/completions，对传输错误、429 与 5xx 做指数退避重试
func (s *AIService) complete(ctx context.Context, cfg config.AIConfig, operation string, req chatCompletionRequest) (string, *TokenUsage, error) {
	ctx, span := tracing.StartSpan(ctx, "llm."+operation,
		attribute.String("llm.model", cfg.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	body, err := json.Marshal(req)
	if err != nil {
		tracing.EndSpan(span, err)
		return "", nil, err
	}

	start := time.Now()
	var (
		content string
		usage   *TokenUsage
	)
	for attempt := 0; ; attempt++ {
		content, usage, err = s.doRequest(ctx, cfg, body)
		if err == nil || !retryable(err) || attempt >= cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		backoff := cfg.RetryBackoff << attempt
		monitoring.LLMRetries.WithLabelValues(operation).Inc()
		logger.Log.Warn("Retrying language model call",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(backoff):
			continue
		}
		break
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	monitoring.LLMRequestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	if usage != nil {
		span.SetAttributes(attribute.Int("llm.total_tokens", usage.TotalTokens))
	}
	tracing.EndSpan(span, err)
	return content, usage, err
}

func (s *AIService) doRequest(ctx context.Context, cfg config.AIConfig, body []byte) (string, *TokenUsage, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &upstreamError{Status: resp.StatusCode, Body: truncateRunes(string(respBody), 500)}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil, fmt.Errorf("%w: empty choices", errMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, parsed.Usage, nil
}

func retryable(err error) bool {
	var upstream *upstreamError
	if errors.As(err, &upstream) {
		return upstream.Status == http.StatusTooManyRequests || upstream.Status >= 500
	}
	// 其余错误都视为传输错误
	return !errors.Is(err, errMalformedResponse)
}

func buildQuizPrompt(text string, counts QuizCounts) string {
	return fmt.Sprintf(`You are a quiz generator. Based on the following lesson content, generate a quiz in JSON format with exactly this structure:

{
  "flashcards": [
    { "term": "...", "definition": "..." }
  ],
  "mcqs": [
    { "question": "...", "optionA": "...", "optionB": "...", "optionC": "...", "optionD": "...", "correctOption": "A" }
  ],
  "openQuestions": [
    { "question": "...", "modelAnswer": "..." }
  ]
}

Requirements:
- Generate exactly %d flashcards (key term and its definition/explanation)
- Generate exactly %d multiple choice questions (4 options each, correctOption must be "A", "B", "C", or "D")
- Generate exactly %d open-ended questions with detailed model answers
- All content must be based on the provided lesson material
- Questions should test understanding, not just memorization
- Return ONLY valid JSON, no other text

Lesson content:
%s`, counts.Flashcards, counts.MCQs, counts.OpenQuestions, text)
}

func buildChatSystemPrompt(material string) string {
	return "You are a helpful study assistant for a university course. " +
		"Answer the student's questions using only the study material below. " +
		"If the answer is not covered by the material, say so briefly and suggest what to review instead. " +
		"Keep answers concise and clear.\n\nStudy material:\n" + material
}

// stripCodeFence 去掉模型偶尔包裹在 JSON 外的 markdown 代码块
func stripCodeFence(s string) string {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
