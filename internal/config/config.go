package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig `mapstructure:"log"`
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	AI        AIConfig
	Quiz      QuizConfig
	Mail      MailConfig
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Seed      SeedConfig      `mapstructure:"seed"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
	// 每个用户每分钟允许的 AI 请求数（生成 + 对话），0 表示不限制
	AIPerMinute int `mapstructure:"ai_per_minute"`
}

type AIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout_seconds"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff_ms"`
	GenerateTokens int           `mapstructure:"generate_max_tokens"`
	ChatTokens     int           `mapstructure:"chat_max_tokens"`
}

type QuizConfig struct {
	MaxTextLength        int `mapstructure:"max_text_length"`
	MinTextLength        int `mapstructure:"min_text_length"`
	MaxUploadMB          int `mapstructure:"max_upload_mb"`
	MaterialMaxUploadMB  int `mapstructure:"material_max_upload_mb"`
	DefaultFlashcards    int `mapstructure:"default_flashcards"`
	DefaultMCQs          int `mapstructure:"default_mcqs"`
	DefaultOpenQuestions int `mapstructure:"default_open_questions"`
}

type MailConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	AllowedDomain string `mapstructure:"allowed_domain"`
}

type CleanupConfig struct {
	Interval time.Duration `mapstructure:"interval_seconds"`
}

// SeedConfig 首次启动时创建的管理员账号，留空则不创建
type SeedConfig struct {
	AdminName     string `mapstructure:"admin_name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// LogConfig Level 为空时按 server.mode 决定：debug 模式输出 debug 级别
type LogConfig struct {
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type ServerConfig struct {
	Port      string
	Mode      string
	PublicURL string `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.public_url", "http://localhost:3000")

	viper.SetDefault("jwt.expire_hours", 72)

	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")

	viper.SetDefault("ai.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("ai.model", "llama-3.3-70b-versatile")
	viper.SetDefault("ai.timeout_seconds", 60)
	viper.SetDefault("ai.max_retries", 2)
	viper.SetDefault("ai.retry_backoff_ms", 500)
	viper.SetDefault("ai.generate_max_tokens", 4096)
	viper.SetDefault("ai.chat_max_tokens", 1024)

	viper.SetDefault("quiz.max_text_length", 12000)
	viper.SetDefault("quiz.min_text_length", 50)
	viper.SetDefault("quiz.max_upload_mb", 20)
	viper.SetDefault("quiz.material_max_upload_mb", 50)
	viper.SetDefault("quiz.default_flashcards", 10)
	viper.SetDefault("quiz.default_mcqs", 10)
	viper.SetDefault("quiz.default_open_questions", 5)

	viper.SetDefault("mail.host", "smtp.gmail.com")
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("mail.allowed_domain", "@aut-edu.uz")

	viper.SetDefault("cleanup.interval_seconds", 60)

	viper.SetDefault("log.path", "logs/aut-portal.log")
	viper.SetDefault("log.console", true)

	viper.SetDefault("rate_limit.max_requests", 6000)
	viper.SetDefault("rate_limit.window_minutes", 1)
	viper.SetDefault("rate_limit.ai_per_minute", 20)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("AUT_PORTAL")
	viper.AutomaticEnv()

	setDefaults()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")
	viper.BindEnv("server.public_url", "PUBLIC_URL")
	viper.BindEnv("log.level", "LOG_LEVEL")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Mail
	viper.BindEnv("mail.username", "MAIL_USERNAME")
	viper.BindEnv("mail.password", "MAIL_PASSWORD")
	viper.BindEnv("mail.from", "MAIL_FROM")

	// Seed
	viper.BindEnv("seed.admin_email", "ADMIN_EMAIL")
	viper.BindEnv("seed.admin_password", "ADMIN_PASSWORD")

	// Storage / MinIO
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// normalize 将配置文件中的整数单位（小时/秒/毫秒）换算为 time.Duration
func (c *Config) normalize() {
	c.JWT.ExpireTime = c.JWT.ExpireTime * time.Hour
	c.AI.Timeout = c.AI.Timeout * time.Second
	c.AI.RetryBackoff = c.AI.RetryBackoff * time.Millisecond
	c.Cleanup.Interval = c.Cleanup.Interval * time.Second
}
