package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sr-service/internal/api/http"
	"github.com/spec-kit/sr-service/internal/api/http/handlers"
	"github.com/spec-kit/sr-service/internal/auth"
	"github.com/spec-kit/sr-service/internal/config"
	"github.com/spec-kit/sr-service/internal/events"
	"github.com/spec-kit/sr-service/internal/observability"
	"github.com/spec-kit/sr-service/internal/persistence"
	"github.com/spec-kit/sr-service/internal/repository"
	"github.com/spec-kit/sr-service/internal/service"
	"github.com/spec-kit/sr-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	srRepo := repository.NewServiceRequestRepository(pool)
	masterRepo := repository.NewMasterDataRepository(pool)
	tatRepo := repository.NewTATRepository(pool)
	commentRepo := repository.NewSRCommentRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(*cfg, userRepo)
	masterDataService := service.NewMasterDataService(masterRepo, redis.ClientHandle(), cfg.ServiceRequest.MasterCacheTTL(), logger)
	tatService := service.NewTATService(service.TATDependencies{
		MasterRepo: masterRepo,
		TATRepo:    tatRepo,
		Dispatcher: dispatcher,
	})
	var txDB service.TxBeginner
	if pool != nil {
		txDB = pool
	}
	srService := service.NewSRService(service.SRDependencies{
		DB:          txDB,
		SRRepo:      srRepo,
		MasterRepo:  masterRepo,
		TATRepo:     tatRepo,
		CommentRepo: commentRepo,
		Dispatcher:  dispatcher,
	})

	if cfg.ServiceRequest.SeedMasterData {
		if err := masterDataService.Seed(ctx, service.DefaultSeedData()); err != nil {
			logger.Fatal("failed to seed master data", zap.Error(err))
		}
	}

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:           handlers.NewUsersHandler(authService),
		ServiceRequests: handlers.NewServiceRequestsHandler(srService),
		Staff:           handlers.NewStaffServiceRequestsHandler(srService),
		MasterData:      handlers.NewMasterDataHandler(masterDataService, tatService, cfg.ServiceRequest.TATPool),
		AuthMiddleware:  authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
