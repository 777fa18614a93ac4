package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/blob"
	"servio/marketplace-core/internal/config"
	"servio/marketplace-core/internal/feed"
	"servio/marketplace-core/internal/httpapi"
	"servio/marketplace-core/internal/queue"
	"servio/marketplace-core/internal/repository"
	"servio/marketplace-core/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg)

	db, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.InitializeTables(db); err != nil {
		logger.Fatalf("Failed to initialize tables: %v", err)
	}
	logger.Info("Database ready")

	redisClient, err := feed.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	broker := feed.NewRedisBroker(redisClient, logger)
	defer broker.Close()

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db, broker, logger)
	hireRepo := repository.NewHireRepository(db, broker, logger)
	reviewRepo := repository.NewReviewRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	taskClient, err := queue.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Failed to create task client: %v", err)
	}
	defer taskClient.Close()

	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, logger)
	hireSvc := service.NewHireService(hireRepo, profileRepo, conversationSvc, taskClient, logger)
	reviewSvc := service.NewReviewService(reviewRepo, hireRepo, logger)

	hub := service.NewNotificationHub(broker, messageRepo, hireRepo, logger)
	if err := hub.Start(context.Background()); err != nil {
		logger.Fatalf("Failed to start notification hub: %v", err)
	}
	defer hub.Close()

	worker, err := queue.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatalf("Failed to create task server: %v", err)
	}
	service.RegisterSeedOpeningMessageTask(worker, conversationSvc, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		if err := worker.Run(workerCtx); err != nil {
			logger.Fatalf("Task server failed: %v", err)
		}
	}()

	blobStore, err := blob.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Fatalf("Failed to prepare upload dir: %v", err)
	}

	handlers := httpapi.NewHandlers(conversationSvc, hireSvc, reviewSvc, hub, blobStore, logger)
	router := httpapi.NewRouter(handlers, logger)

	address := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	srv := &http.Server{
		Addr:    address,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting HTTP server on %s", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP server shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	return logger
}
