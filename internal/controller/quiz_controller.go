package controller

import (
	"aut_portal_backend/internal/service"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const chatFallbackReply = "Sorry, I couldn't answer that right now. Please try again in a moment."

type QuizController struct {
	QuizService       *service.QuizService
	GenerationService *service.GenerationService
	AttemptService    *service.AttemptService
}

func NewQuizController(quizService *service.QuizService, generationService *service.GenerationService, attemptService *service.AttemptService) *QuizController {
	return &QuizController{
		QuizService:       quizService,
		GenerationService: generationService,
		AttemptService:    attemptService,
	}
}

// UploadFile godoc
// @Summary 上传测验文档
// @Description 支持 PDF、DOCX、PPTX，最大 20MB
// @Tags 测验
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "文档"
// @Success 200 {object} util.Response{data=service.StoredFile}
// @Failure 400 {object} util.Response
// @Router /api/quiz/upload [post]
func (c *QuizController) UploadFile(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "No file selected")
		return
	}
	stored, err := c.QuizService.UploadQuizFile(ctx.Request.Context(), fh)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stored)
}

// ListQuizzes godoc
// @Summary 我的测验列表
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.QuizSummary}
// @Router /api/quiz [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	quizzes, err := c.QuizService.ListQuizzes(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 创建后处于 GENERATING 状态，需调用生成接口
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateQuizRequest true "测验信息"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Failure 400 {object} util.Response
// @Router /api/quiz [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Missing required fields")
		return
	}
	quiz, err := c.QuizService.CreateQuiz(userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

type GenerateRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

// Generate godoc
// @Summary 开始生成测验内容
// @Description 异步执行，通过状态接口轮询结果
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body GenerateRequest true "测验 ID"
// @Success 202 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response "已在生成或已完成"
// @Failure 429 {object} util.Response
// @Router /api/quiz/generate [post]
func (c *QuizController) Generate(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Quiz ID required")
		return
	}
	if err := c.GenerationService.StartGeneration(ctx.Request.Context(), userID, req.QuizID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Accepted(ctx, gin.H{"quizId": req.QuizID, "status": "GENERATING"})
}

// GetQuiz godoc
// @Summary 测验详情
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuiz(userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// GetStatus godoc
// @Summary 查询生成状态
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Success 200 {object} util.Response{data=service.QuizStatusView}
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/status [get]
func (c *QuizController) GetStatus(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	status, err := c.QuizService.GetStatus(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// Share godoc
// @Summary 获取分享令牌
// @Description 首次调用时生成，之后返回同一令牌
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id} [patch]
func (c *QuizController) Share(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	token, err := c.QuizService.RequestShareToken(userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"shareToken": token})
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.QuizService.DeleteQuiz(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": true})
}

type ChatRequest struct {
	Message string                  `json:"message" binding:"required"`
	History []service.AIChatMessage `json:"history"`
}

// Chat godoc
// @Summary 基于资料的问答
// @Description 模型调用失败时返回固定的提示语
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Param body body ChatRequest true "问题与历史对话"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/chat [post]
func (c *QuizController) Chat(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Message is required")
		return
	}

	reply, err := c.QuizService.Chat(ctx.Request.Context(), userID, ctx.Param("id"), req.Message, req.History)
	if err != nil {
		if errors.Is(err, util.ErrChatFailed) {
			logger.Log.Warn("Chat with material failed", zap.String("quizId", ctx.Param("id")), zap.Error(err))
			util.Success(ctx, gin.H{"reply": chatFallbackReply})
			return
		}
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"reply": reply})
}

// RecordAttempt godoc
// @Summary 提交作答
// @Description 服务端根据正确答案重新判分
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Param body body service.RecordAttemptRequest true "作答"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/attempt [post]
func (c *QuizController) RecordAttempt(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req service.RecordAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.AttemptService.RecordAttempt(userID, ctx.Param("id"), req.Answers)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Export godoc
// @Summary 导出测验
// @Description 下载包含答案的 HTML 文档
// @Tags 测验
// @Produce html
// @Security ApiKeyAuth
// @Param id path string true "测验 ID"
// @Success 200 {string} string "HTML 文档"
// @Failure 404 {object} util.Response
// @Router /api/quiz/{id}/export [get]
func (c *QuizController) Export(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	html, fileName, err := c.QuizService.ExportQuiz(userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// GetShared godoc
// @Summary 通过分享令牌查看测验
// @Tags 测验
// @Produce json
// @Param token path string true "分享令牌"
// @Success 200 {object} util.Response{data=model.SharedQuiz}
// @Failure 404 {object} util.Response
// @Router /api/quiz/share/{token} [get]
func (c *QuizController) GetShared(ctx *gin.Context) {
	shared, err := c.QuizService.GetSharedQuiz(ctx.Param("token"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, shared)
}
