package app

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/controller"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/service"
	"aut_portal_backend/pkg/configwatcher"
	"aut_portal_backend/pkg/database"
	"aut_portal_backend/pkg/logger"
	"aut_portal_backend/pkg/monitoring"
	"aut_portal_backend/pkg/security"
	"aut_portal_backend/pkg/tracing"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	ipLimiter       *security.IPRateLimiter
	tracer          *sdktrace.TracerProvider
	stopWatcher     context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	quiz    *repository.QuizRepository
	attempt *repository.AttemptRepository
	course  *repository.CourseRepository
}

type services struct {
	ai          *service.AIService
	storage     *service.StorageService
	statusCache *service.QuizStatusCache
	aiLimiter   *service.AIRateLimiter
	auth        *service.AuthService
	quiz        *service.QuizService
	generation  *service.GenerationService
	attempt     *service.AttemptService
	analytics   *service.AnalyticsService
	course      *service.CourseService
	cleanup     *service.CleanupService
}

type controllers struct {
	auth      *controller.AuthController
	quiz      *controller.QuizController
	analytics *controller.AnalyticsController
	course    *controller.CourseController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		quiz:    repository.NewQuizRepository(db),
		attempt: repository.NewAttemptRepository(db),
		course:  repository.NewCourseRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.ai = service.NewAIService(cfg.AI, cfg.Quiz.MaxTextLength)
	s.storage = service.NewStorageService(cfg)
	s.statusCache = service.NewQuizStatusCache(rdb)
	s.aiLimiter = service.NewAIRateLimiter(rdb, cfg.RateLimit.AIPerMinute)

	s.auth = service.NewAuthService(repos.user, service.NewMailService(cfg.Mail, cfg.Server.PublicURL), cfg)
	s.quiz = service.NewQuizService(repos.quiz, s.storage, s.ai, s.statusCache, cfg.Quiz)
	s.generation = service.NewGenerationService(repos.quiz, s.storage, s.ai, cfg.Quiz, cfg.AI)
	s.attempt = service.NewAttemptService(repos.quiz, repos.attempt)
	s.analytics = service.NewAnalyticsService(repos.quiz, repos.attempt)
	s.course = service.NewCourseService(repos.course, s.storage, cfg.Quiz)
	s.cleanup = service.NewCleanupService(repos.user, cfg.Cleanup.Interval, time.Now)

	// 热更新：模型参数与 AI 限流阈值
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.ai.UpdateConfig(newCfg.AI)
		s.aiLimiter.UpdateLimit(newCfg.RateLimit.AIPerMinute)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		quiz:      controller.NewQuizController(s.quiz, s.generation, s.attempt),
		analytics: controller.NewAnalyticsController(s.analytics),
		course:    controller.NewCourseController(s.course),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.ipLimiter = security.NewIPRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.ipLimiter.Middleware())
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		a.ipLimiter.Update(newCfg.RateLimit.MaxRequests, time.Duration(newCfg.RateLimit.WindowMinutes)*time.Minute)
	})

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	if _, err := s.generation.RecoverStale(); err != nil {
		logger.Log.Error("Failed to recover interrupted quiz generations", zap.Error(err))
	}
	s.cleanup.Start()

	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatcher = cancel
	err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
		for _, callback := range a.configCallbacks {
			callback(newCfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 仅用于状态缓存与 AI 限流，不可用时降级运行
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running without cache and AI rate limit", zap.Error(err))
		rdb = nil
	} else if rdb == nil {
		logger.Log.Info("Redis not configured, running without cache and AI rate limit")
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("aut-portal", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, services, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.shutdown(ctx)
	logger.Log.Info("Server exiting")
}

// shutdown 停止后台任务，等待进行中的生成结束（超时则取消）
func (a *App) shutdown(ctx context.Context) {
	if a.stopWatcher != nil {
		a.stopWatcher()
	}
	if a.ipLimiter != nil {
		a.ipLimiter.Stop()
	}
	if a.services != nil {
		a.services.cleanup.Stop()
		if err := a.services.generation.Shutdown(ctx); err != nil {
			logger.Log.Warn("In-flight quiz generations cancelled", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
