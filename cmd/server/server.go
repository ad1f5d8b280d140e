package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/handlers"
	"github.com/3Eeeecho/go-fluxshare/internal/jobs"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/clamav"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mailer"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/metrics"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/mq/worker"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fluxshare/internal/repositories"
	"github.com/3Eeeecho/go-fluxshare/internal/router"
	"github.com/3Eeeecho/go-fluxshare/internal/services/admin"
	"github.com/3Eeeecho/go-fluxshare/internal/services/audit"
	"github.com/3Eeeecho/go-fluxshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fluxshare/internal/services/scanner"
	"github.com/3Eeeecho/go-fluxshare/internal/services/share"
	"github.com/3Eeeecho/go-fluxshare/internal/setup"
	"github.com/go-redis/redis/v8"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	db             *gorm.DB
	redisClient    *redis.Client
	rabbitMQClient *mq.RabbitMQClient
	storageService storage.StorageService
	scanService    scanner.ScanService
	authService    admin.AuthService
	cronService    *jobs.CronService
}

// NewServer 负责构建所有依赖
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	// 初始化数据库连接
	db, err := setup.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, err
	}
	s.db = db

	// 初始化 Redis 连接
	if s.redisClient, err = setup.InitRedis(ctx, &cfg.Redis); err != nil {
		return nil, err
	}

	// 初始化对象存储并确保存储桶存在
	if s.storageService, err = setup.InitStorage(ctx, cfg); err != nil {
		return nil, err
	}

	indexer, err := setup.InitSearchIndexer(&cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}

	// 初始化 RabbitMQ，开启病毒扫描时必须配置
	var publisher mq.Publisher
	if cfg.RabbitMQ.URL != "" {
		if s.rabbitMQClient, err = mq.NewRabbitMQClient(ctx, cfg.RabbitMQ.URL); err != nil {
			return nil, err
		}
		publisher = s.rabbitMQClient
	} else if cfg.ClamAV.Enabled {
		return nil, errors.New("rabbitmq.url is required when clamav is enabled")
	}

	registry := metrics.NewRegistry()
	redisCache := cache.NewRedisCache(s.redisClient)

	//  初始化 Repositories
	userRepo := repositories.NewUserRepository(db)
	cachedUserRepo := repositories.NewCachedUserRepository(userRepo, redisCache)
	fileRepo := repositories.NewFileRepository(db)
	folderRepo := repositories.NewFolderRepository(db)
	shareRepo := repositories.NewShareRepository(db)
	refreshRepo := repositories.NewRefreshTokenRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	tm := repositories.NewTransactionManager(db)
	recorder := audit.NewRecorder(auditRepo)

	//  初始化 Services
	var avScanner clamav.Scanner
	if cfg.ClamAV.Enabled {
		avScanner = clamav.NewClient(cfg.ClamAV.Host, cfg.ClamAV.Port, cfg.ClamAV.Timeout)
	}
	s.scanService = scanner.NewScanService(fileRepo, s.storageService, avScanner, publisher, registry, recorder, cfg.ClamAV.Enabled)

	uploadService := explorer.NewUploadService(
		fileRepo,
		folderRepo,
		s.storageService,
		explorer.NewSessionCodec(cfg.JWT.UploadSecret, cfg.Storage.PresignedURLExpiry),
		explorer.UploadServiceDeps{
			Cache:   redisCache,
			Scans:   s.scanService,
			Metrics: registry,
			Audit:   recorder,
			Indexer: indexer,
			Config:  cfg,
		},
	)
	domainService := explorer.NewFileDomainService(fileRepo, folderRepo)
	fileService := explorer.NewFileService(fileRepo, shareRepo, domainService, tm, s.storageService, publisher, indexer, recorder)
	folderService := explorer.NewFolderService(folderRepo, fileRepo, tm, recorder)
	shareService := share.NewShareService(
		shareRepo,
		fileRepo,
		s.storageService,
		share.NewVerificationCodec(cfg.JWT.ShareSecret, cfg.JWT.ShareVerificationTTL),
		registry,
		recorder,
		cfg,
	)
	// AuthService 需要读取密码哈希，不能使用缓存仓库
	s.authService = admin.NewAuthService(userRepo, refreshRepo, resetRepo, tm, mailer.NewMailer(&cfg.SMTP), recorder, cfg)
	userService := admin.NewUserService(cachedUserRepo, refreshRepo, fileRepo, auditRepo, redisCache, recorder)
	s.cronService = jobs.NewCronService(cfg, s.scanService, s.storageService)

	//  初始化 Handlers
	h := router.Handlers{
		Auth:   handlers.NewAuthHandler(s.authService, cfg),
		User:   handlers.NewUserHandler(userService),
		Admin:  handlers.NewAdminHandler(userService),
		File:   handlers.NewFileHandler(fileService),
		Folder: handlers.NewFolderHandler(folderService),
		Upload: handlers.NewUploadHandler(uploadService),
		Share:  handlers.NewShareHandler(shareService),
		Health: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"database": handlers.DatabaseCheck(db),
			"storage":  handlers.BucketCheck(s.storageService),
		}),
	}

	// 初始化 Gin 引擎和注册路由
	engine := router.InitRouter(h, router.Deps{
		TokenParser: s.authService,
		Users:       cachedUserRepo,
		Metrics:     registry,
	}, cfg)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           gzhttp.GzipHandler(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return s, nil
}

// Run 启动 HTTP 服务、后台 Worker 与定时任务，ctx 结束后优雅关机
func (s *Server) Run(ctx context.Context) error {
	if err := s.authService.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Error("创建初始管理员失败", zap.Error(err))
	}

	// 启动所有后台 Worker
	if s.rabbitMQClient != nil {
		if err := worker.StartAllWorkers(ctx, s.rabbitMQClient, s.scanService, s.storageService); err != nil {
			return fmt.Errorf("start workers: %w", err)
		}
	}

	scheduler, err := jobs.StartCronJobs(ctx, s.cronService)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待停止信号
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited gracefully")
	return nil
}

// Jobs 供命令行直接执行一次定时任务
func (s *Server) Jobs() *jobs.CronService {
	return s.cronService
}

// Close 释放数据库、Redis 与 MQ 连接
func (s *Server) Close() {
	if s.rabbitMQClient != nil {
		s.rabbitMQClient.Close()
	}
	setup.CloseRedis(s.redisClient)
	setup.CloseDatabase(s.db)
}

// Migrate 自动迁移数据库表结构
func (s *Server) Migrate() error {
	return setup.AutoMigrate(s.db)
}
