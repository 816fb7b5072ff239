package controller

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/service"
	"aut_portal_backend/internal/testutil"
	"aut_portal_backend/internal/util"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuizContent() *service.QuizContent {
	return &service.QuizContent{
		Flashcards: []service.FlashcardData{{Term: "TCP", Definition: "reliable transport"}},
		MCQs: []service.MCQData{
			{Question: "HTTP port?", OptionA: "21", OptionB: "80", OptionC: "22", OptionD: "25", CorrectOption: "B"},
			{Question: "DNS port?", OptionA: "53", OptionB: "80", OptionC: "443", OptionD: "25", CorrectOption: "A"},
		},
		OpenQuestions: []service.OpenQuestionData{{Question: "Explain UDP", ModelAnswer: "connectionless"}},
		Model:         "test-model",
	}
}

func TestQuizFlow(t *testing.T) {
	h := newHarness(t)
	h.generator.content = sampleQuizContent()
	user := testutil.CreateUser(t, h.db, "Aziz", "aziz@aut-edu.uz")
	token := h.token(t, user)

	rec, resp := h.upload(t, "/api/quiz/upload", token, "networks.docx",
		docx(t, "The transmission control protocol guarantees ordered delivery between hosts."))
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var stored service.StoredFile
	decode(t, resp.Data, &stored)
	assert.Equal(t, "networks.docx", stored.FileName)

	rec, resp = h.do(t, http.MethodPost, "/api/quiz", token, gin.H{
		"title":    "Networks",
		"fileName": stored.FileName,
		"fileUrl":  stored.FileURL,
		"fileSize": stored.FileSize,
		"mcqCount": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var quiz model.Quiz
	decode(t, resp.Data, &quiz)
	assert.Equal(t, model.QuizGenerating, quiz.Status)
	assert.Equal(t, 2, quiz.MCQCount)

	rec, resp = h.do(t, http.MethodPost, "/api/quiz/generate", token, gin.H{"quizId": quiz.ID})
	require.Equal(t, http.StatusAccepted, rec.Code, resp.Message)
	assert.JSONEq(t, `{"quizId":"`+quiz.ID+`","status":"GENERATING"}`, string(resp.Data))

	rec, _ = h.do(t, http.MethodPost, "/api/quiz/generate", token, gin.H{"quizId": quiz.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool {
		_, resp := h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID+"/status", token, nil)
		var status service.QuizStatusView
		return json.Unmarshal(resp.Data, &status) == nil && status.Status == model.QuizReady
	}, 2*time.Second, 10*time.Millisecond)

	rec, resp = h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, resp.Data, &quiz)
	require.Len(t, quiz.MCQs, 2)
	assert.Len(t, quiz.Flashcards, 1)
	assert.Len(t, quiz.OpenQuestions, 1)

	rec, resp = h.do(t, http.MethodPost, "/api/quiz/"+quiz.ID+"/attempt", token, gin.H{
		"answers": []gin.H{
			{"questionId": quiz.MCQs[0].ID, "selectedOption": "B"},
			{"questionId": quiz.MCQs[1].ID, "selectedOption": "C"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var attempt service.AttemptResult
	decode(t, resp.Data, &attempt)
	assert.Equal(t, 1, attempt.Score)
	assert.Equal(t, 50, attempt.Percent)

	rec, resp = h.do(t, http.MethodGet, "/api/quiz", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.QuizSummary
	decode(t, resp.Data, &list)
	require.Len(t, list, 1)
	assert.EqualValues(t, 2, list[0].MCQTotal)

	rec, resp = h.do(t, http.MethodPatch, "/api/quiz/"+quiz.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var share struct {
		ShareToken string `json:"shareToken"`
	}
	decode(t, resp.Data, &share)
	require.NotEmpty(t, share.ShareToken)

	rec, resp = h.do(t, http.MethodGet, "/api/quiz/share/"+share.ShareToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(resp.Data), "userId")
	assert.NotContains(t, string(resp.Data), "fileUrl")

	rec, _ = h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID+"/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=Networks.html`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "HTTP port?")

	rec, resp = h.do(t, http.MethodDelete, "/api/quiz/"+quiz.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, string(resp.Data))

	rec, _ = h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/quiz/share/"+share.ShareToken, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerationFailureReported(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "Lola", "lola@aut-edu.uz")
	token := h.token(t, user)

	_, resp := h.upload(t, "/api/quiz/upload", token, "short.docx", docx(t, "tiny"))
	var stored service.StoredFile
	decode(t, resp.Data, &stored)

	_, resp = h.do(t, http.MethodPost, "/api/quiz", token, gin.H{"title": "Short", "fileName": stored.FileName, "fileUrl": stored.FileURL})
	var quiz model.Quiz
	decode(t, resp.Data, &quiz)

	rec, _ := h.do(t, http.MethodPost, "/api/quiz/generate", token, gin.H{"quizId": quiz.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var status service.QuizStatusView
	require.Eventually(t, func() bool {
		_, resp := h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID+"/status", token, nil)
		return json.Unmarshal(resp.Data, &status) == nil && status.Status == model.QuizFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, util.ErrInsufficientText.Error(), status.FailureReason)

	rec, _ = h.do(t, http.MethodPost, "/api/quiz/"+quiz.ID+"/attempt", token, gin.H{"answers": []gin.H{}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQuizRequestValidation(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "Timur", "timur@aut-edu.uz")
	token := h.token(t, user)

	rec, _ := h.do(t, http.MethodGet, "/api/quiz", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/quiz", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/quiz", token, gin.H{"title": "No file"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := h.do(t, http.MethodPost, "/api/quiz", token, gin.H{"title": "Borrowed", "fileName": "w1.pptx", "fileUrl": "/uploads/materials/w1.pptx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, util.ErrInvalidFileURL.Error(), resp.Message)

	rec, _ = h.do(t, http.MethodPost, "/api/quiz/generate", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/quiz/generate", token, gin.H{"quizId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = h.upload(t, "/api/quiz/upload", token, "notes.txt", []byte(strings.Repeat("text ", 20)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, util.ErrUnsupportedFile.Error())
}

func TestQuizOwnership(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "Owner", "owner@aut-edu.uz")
	other := testutil.CreateUser(t, h.db, "Other", "other@aut-edu.uz")
	quiz := testutil.CreateReadyQuiz(t, h.db, owner.ID, "Private", "A")
	otherToken := h.token(t, other)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/quiz/" + quiz.ID},
		{http.MethodGet, "/api/quiz/" + quiz.ID + "/status"},
		{http.MethodPatch, "/api/quiz/" + quiz.ID},
		{http.MethodGet, "/api/quiz/" + quiz.ID + "/export"},
		{http.MethodDelete, "/api/quiz/" + quiz.ID},
	} {
		rec, _ := h.do(t, req.method, req.path, otherToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.path)
	}

	rec, _ := h.do(t, http.MethodGet, "/api/quiz/"+quiz.ID, h.token(t, owner), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "Nodira", "nodira@aut-edu.uz")
	token := h.token(t, user)
	quiz := testutil.CreateReadyQuiz(t, h.db, user.ID, "Chatty", "A")

	rec, resp := h.do(t, http.MethodPost, "/api/quiz/"+quiz.ID+"/chat", token, gin.H{"message": "What is TCP?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"TCP is reliable."}`, string(resp.Data))

	rec, _ = h.do(t, http.MethodPost, "/api/quiz/"+quiz.ID+"/chat", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.chat.err = util.ErrChatFailed
	rec, resp = h.do(t, http.MethodPost, "/api/quiz/"+quiz.ID+"/chat", token, gin.H{"message": "again"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"`+chatFallbackReply+`"}`, string(resp.Data))
}
