package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/controller"
	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/service"
	"marketplace_backend/pkg/database"
	"marketplace_backend/pkg/lock"
	"marketplace_backend/pkg/logger"
	"marketplace_backend/pkg/monitoring"
	"marketplace_backend/pkg/security"
	"marketplace_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
	tracer   *sdktrace.TracerProvider
}

type repositories struct {
	consumer     *repository.ConsumerRepository
	courseInfo   *repository.CourseInfoRepository
	savedCourse  *repository.SavedCourseRepository
	purchase     *repository.PurchaseRepository
	notification *repository.NotificationRepository
	settlement   *repository.SettlementRepository
}

type services struct {
	catalog      *service.CatalogService
	consumer     *service.ConsumerService
	purchase     *service.PurchaseService
	completion   *service.CompletionService
	feedback     *service.FeedbackService
	notification *service.NotificationService
	archive      *service.ArchiveService
	reconciler   *service.SettlementReconciler
}

type controllers struct {
	consumer     *controller.ConsumerController
	purchase     *controller.PurchaseController
	course       *controller.CourseController
	notification *controller.NotificationController
	webhook      *controller.WebhookController
	health       *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		consumer:     repository.NewConsumerRepository(db),
		courseInfo:   repository.NewCourseInfoRepository(db),
		savedCourse:  repository.NewSavedCourseRepository(db),
		purchase:     repository.NewPurchaseRepository(db),
		notification: repository.NewNotificationRepository(db),
		settlement:   repository.NewSettlementRepository(db),
	}
}

// newLocker 配置了 Redis 时使用分布式锁，否则退化为进程内锁（仅适用单实例部署）
func newLocker(rdb *redis.Client) lock.Locker {
	if rdb != nil {
		return lock.NewRedisLocker(rdb, "marketplace:lock:")
	}
	logger.Log.Warn("Redis disabled, purchase locks are process-local")
	return lock.NewMemoryLocker()
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}
	gw := gateway.New(cfg.Collaborators)

	archive, err := service.NewArchiveService(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize credential archive", zap.Error(err))
	}
	s.archive = archive

	s.catalog = service.NewCatalogService(repos.courseInfo, gw.CourseManager, gw.BAP,
		cfg.Platform.BppID, cfg.Collaborators.CourseManagerURL)
	s.consumer = service.NewConsumerService(repos.consumer, repos.savedCourse, repos.purchase,
		s.catalog, gw.Wallet, gw.User, gw.Request)
	s.purchase = service.NewPurchaseService(db, repos.consumer, s.catalog, repos.purchase, repos.settlement,
		gw.Wallet, gw.CourseManager, gw.BAP, gw.User, newLocker(rdb), cfg.Settlement.LockTTL)
	s.completion = service.NewCompletionService(repos.consumer, s.catalog, repos.purchase,
		gw.User, gw.Credential, s.archive, cfg.Credential)
	s.feedback = service.NewFeedbackService(s.catalog, repos.purchase, gw.BAP, gw.CourseManager, gw.User, gw.Passbook)
	s.notification = service.NewNotificationService(repos.notification, repos.consumer)
	s.reconciler = service.NewSettlementReconciler(s.purchase, cfg.Settlement)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		consumer:     controller.NewConsumerController(s.consumer),
		purchase:     controller.NewPurchaseController(s.purchase, s.completion, s.feedback),
		course:       controller.NewCourseController(s.catalog),
		notification: controller.NewNotificationController(s.notification),
		webhook:      controller.NewWebhookController(s.purchase, s.completion),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, security.ClientIPKey))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	if err := s.reconciler.Start(); err != nil {
		logger.Log.Fatal("Failed to schedule settlement reconciler", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式下默认不自动迁移，需显式 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.Seed {
		if err := database.SeedConsumers(db); err != nil {
			logger.Log.Fatal("Failed to seed database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, app.Redis)
	app.services = services
	controllers := app.initControllers(services, db, app.Redis)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-marketplace", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)
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
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 先停对账任务，等待正在执行的一轮结束
	if a.services != nil && a.services.reconciler != nil {
		a.services.reconciler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
