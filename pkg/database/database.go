package database

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/model"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 需要自动迁移的全部模型，测试中的 SQLite 库使用同一份列表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Quiz{},
		&model.Flashcard{},
		&model.MCQ{},
		&model.OpenQuestion{},
		&model.QuizAttempt{},
		&model.QuizAttemptAnswer{},
		&model.Course{},
		&model.CourseMaterial{},
		&model.CourseEnrollment{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Charset,
		dbCfg.ParseTime,
	)

	logLevel := logger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式下默认不自动迁移，需通过 -migrate / -migrate-only 显式开启
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	if err := seedAdmin(db, cfg.Seed); err != nil {
		return nil, err
	}

	return db, nil
}

// seedAdmin 配置了管理员账号且库中不存在时创建
func seedAdmin(db *gorm.DB, seed config.SeedConfig) error {
	if seed.AdminEmail == "" || seed.AdminPassword == "" {
		return nil
	}

	var existing model.User
	err := db.Where("email = ?", seed.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	name := seed.AdminName
	if name == "" {
		name = "Admin"
	}

	admin := &model.User{
		Name:          name,
		Email:         seed.AdminEmail,
		Password:      string(hashed),
		Role:          model.Admin,
		EmailVerified: true,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	log.Printf("Seeded admin account %s", seed.AdminEmail)
	return nil
}
