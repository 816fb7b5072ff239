package controller

import (
	"aut_portal_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrMissingFields, http.StatusBadRequest},
	{util.ErrEmailDomain, http.StatusBadRequest},
	{util.ErrPasswordTooShort, http.StatusBadRequest},
	{util.ErrInvalidVerifyToken, http.StatusBadRequest},
	{util.ErrVerifyTokenExpired, http.StatusBadRequest},
	{util.ErrInvalidAnswer, http.StatusBadRequest},
	{util.ErrInvalidMaterialType, http.StatusBadRequest},
	{util.ErrUnsupportedFile, http.StatusBadRequest},
	{util.ErrFileTooLarge, http.StatusBadRequest},
	{util.ErrInvalidFileURL, http.StatusBadRequest},
	{util.ErrAlreadyEnrolled, http.StatusBadRequest},
	{util.ErrInvalidCredentials, http.StatusUnauthorized},
	{util.ErrEmailNotVerified, http.StatusForbidden},
	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrQuizNotFound, http.StatusNotFound},
	{util.ErrShareNotFound, http.StatusNotFound},
	{util.ErrCourseNotFound, http.StatusNotFound},
	{util.ErrMaterialNotFound, http.StatusNotFound},
	{util.ErrNotEnrolled, http.StatusNotFound},
	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrGenerationConflict, http.StatusConflict},
	{util.ErrQuizNotReady, http.StatusConflict},
	{util.ErrRateLimited, http.StatusTooManyRequests},
}

// respondError 将业务错误映射为 HTTP 状态码，未知错误记录日志并返回 500
func respondError(ctx *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			util.Error(ctx, e.status, err.Error())
			return
		}
	}
	util.LogInternalError(ctx, err)
}

func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}
