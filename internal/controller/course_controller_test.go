package controller

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/testutil"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseAdminAndEnrollment(t *testing.T) {
	h := newHarness(t)
	student := testutil.CreateUser(t, h.db, "Student", "student@aut-edu.uz")
	admin := testutil.CreateUser(t, h.db, "Admin", "admin@aut-edu.uz")
	admin.Role = model.Admin
	require.NoError(t, h.db.Save(admin).Error)

	studentToken := h.token(t, student)
	adminToken := h.token(t, admin)

	rec, _ := h.do(t, http.MethodPost, "/api/admin/courses", studentToken, gin.H{"name": "Algebra"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := h.do(t, http.MethodPost, "/api/admin/courses", adminToken, gin.H{"name": "Algebra", "color": "#10B981"})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var course model.Course
	decode(t, resp.Data, &course)

	rec, _ = h.do(t, http.MethodPost, "/api/admin/courses/"+course.ID+"/materials", adminToken, gin.H{
		"title": "Bad", "type": "PODCAST", "fileUrl": "/uploads/a.pdf", "fileName": "a.pdf",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/admin/courses/"+course.ID+"/materials", adminToken, gin.H{
		"title": "Week 1", "type": model.Slide, "fileUrl": "/uploads/materials/w1.pptx", "fileName": "w1.pptx",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = h.do(t, http.MethodPost, "/api/courses/"+course.ID+"/enroll", studentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/api/courses/"+course.ID+"/enroll", studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = h.do(t, http.MethodGet, "/api/courses/"+course.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.CourseDetail
	decode(t, resp.Data, &detail)
	assert.EqualValues(t, 1, detail.EnrollmentCount)
	assert.Len(t, detail.Slides, 1)
	assert.Empty(t, detail.Textbooks)

	rec, resp = h.do(t, http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var courses []model.CourseSummary
	decode(t, resp.Data, &courses)
	require.Len(t, courses, 1)
	assert.EqualValues(t, 1, courses[0].MaterialCount)

	rec, _ = h.do(t, http.MethodDelete, "/api/courses/"+course.ID+"/enroll", studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodDelete, "/api/courses/"+course.ID+"/enroll", studentToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodDelete, "/api/admin/courses/"+course.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/courses/"+course.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	h := newHarness(t)
	ann := testutil.CreateUser(t, h.db, "Ann", "ann@aut-edu.uz")
	ben := testutil.CreateUser(t, h.db, "Ben", "ben@aut-edu.uz")
	quiz := testutil.CreateReadyQuiz(t, h.db, ann.ID, "Graphs", "A", "B")
	testutil.CreateAttempt(t, h.db, ann.ID, quiz.ID, 2, 2, time.Now())
	testutil.CreateAttempt(t, h.db, ben.ID, quiz.ID, 1, 2, time.Now())

	rec, resp := h.do(t, http.MethodGet, "/api/analytics", h.token(t, ann), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var analytics model.QuizAnalytics
	decode(t, resp.Data, &analytics)
	assert.Equal(t, 1, analytics.TotalAttempts)
	assert.Equal(t, 100, analytics.AverageScore)

	rec, resp = h.do(t, http.MethodGet, "/api/leaderboard", h.token(t, ben), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []model.LeaderboardEntry
	decode(t, resp.Data, &board)
	require.Len(t, board, 2)
	assert.Equal(t, "Ann", board[0].Name)
	assert.False(t, board[0].IsCurrentUser)
	assert.True(t, board[1].IsCurrentUser)
	assert.Equal(t, 50.0, board[1].AvgScore)

	rec, _ = h.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
