package util

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailRegistered     = errors.New("this email is already registered")
	ErrEmailDomain         = errors.New("only @aut-edu.uz email addresses are accepted")
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters")
	ErrMissingFields       = errors.New("all fields are required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified, please check your email")
	ErrInvalidVerifyToken  = errors.New("invalid token")
	ErrVerifyTokenExpired  = errors.New("token has expired")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrShareNotFound       = errors.New("shared quiz not found")
	ErrQuizNotReady        = errors.New("quiz is not ready")
	ErrGenerationConflict  = errors.New("quiz generation already started or finished")
	ErrGenerationFailed    = errors.New("quiz generation failed")
	ErrInsufficientText    = errors.New("could not extract enough text from the file")
	ErrChatFailed          = errors.New("chat with material failed")
	ErrInvalidAnswer       = errors.New("invalid answer")
	ErrCourseNotFound      = errors.New("course not found")
	ErrMaterialNotFound    = errors.New("material not found")
	ErrInvalidMaterialType = errors.New("invalid material type")
	ErrAlreadyEnrolled     = errors.New("you are already enrolled")
	ErrNotEnrolled         = errors.New("you are not enrolled in this course")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrFileTooLarge        = errors.New("file is too large")
	ErrUnsupportedFile     = errors.New("unsupported file type")
	ErrInvalidFileURL      = errors.New("file url does not point to an uploaded quiz document")
)
