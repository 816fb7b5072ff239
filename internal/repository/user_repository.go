package repository

import (
	"aut_portal_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByVerifyToken(token string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("verify_token = ?", token).First(&user).Error
	return &user, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

// MarkVerified 标记邮箱已验证；保留令牌，重复点击验证链接仍返回成功
func (r *UserRepository) MarkVerified(userID uint) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Update("email_verified", true).Error
}

// DeleteExpiredUnverified 物理删除验证令牌已过期且仍未验证的用户，返回删除条数
func (r *UserRepository) DeleteExpiredUnverified(now time.Time) (int64, error) {
	res := r.DB.Unscoped().
		Where("email_verified = ? AND verify_token_expiry IS NOT NULL AND verify_token_expiry < ?", false, now).
		Delete(&model.User{})
	return res.RowsAffected, res.Error
}
