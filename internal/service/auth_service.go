package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	verifyTokenTTL    = 24 * time.Hour
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Mailer   Mailer
	Cfg      *config.Config
	now      func() time.Time
}

func NewAuthService(userRepo *repository.UserRepository, mailer Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Mailer:   mailer,
		Cfg:      cfg,
		now:      time.Now,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 创建未验证账号并发送验证邮件；邮件发送失败不影响注册结果
func (s *AuthService) Register(req RegisterRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, util.ErrMissingFields
	}
	if !strings.HasSuffix(email, strings.ToLower(s.Cfg.Mail.AllowedDomain)) {
		return nil, util.ErrEmailDomain
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, util.ErrPasswordTooShort
	}

	_, err := s.UserRepo.FindByEmail(email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expiry := s.now().Add(verifyTokenTTL)
	user := &model.User{
		Name:              name,
		Email:             email,
		Password:          string(hashedPassword),
		Role:              model.Student,
		EmailVerified:     false,
		VerifyToken:       &token,
		VerifyTokenExpiry: &expiry,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}

	if err := s.Mailer.SendVerificationEmail(email, token); err != nil {
		logger.Log.Error("Verification email sending failed", zap.String("email", email), zap.Error(err))
	}
	return user, nil
}

// Verify 校验邮箱验证令牌；已验证的账号重复验证视为成功
func (s *AuthService) Verify(token string) error {
	if token == "" {
		return util.ErrInvalidVerifyToken
	}
	user, err := s.UserRepo.FindByVerifyToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrInvalidVerifyToken
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if user.VerifyTokenExpiry != nil && user.VerifyTokenExpiry.Before(s.now()) {
		return util.ErrVerifyTokenExpired
	}
	return s.UserRepo.MarkVerified(user.ID)
}

func (s *AuthService) Login(req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, util.ErrMissingFields
	}

	user, err := s.UserRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.EmailVerified {
		return nil, util.ErrEmailNotVerified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
