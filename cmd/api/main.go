package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/config"
	"github.com/noah-isme/gema-annotation-api/internal/database"
	"github.com/noah-isme/gema-annotation-api/internal/handler"
	"github.com/noah-isme/gema-annotation-api/internal/middleware"
	"github.com/noah-isme/gema-annotation-api/internal/repository"
	"github.com/noah-isme/gema-annotation-api/internal/router"
	"github.com/noah-isme/gema-annotation-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.RequireServerSecrets(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database handle")
	}
	defer sqlDB.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	redisClient, err := database.ConnectRedis(startupCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled, reconciliation lock is process local")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)
	publisher := service.NewEventPublisher(redisClient, natsConn, cfg.EventSubject)

	activityService := service.NewActivityService(store.Activity(), logger)
	annotatorService := service.NewAnnotatorService(store.Annotators(), validate, logger)
	authService := service.NewAuthService(annotatorService, service.AuthConfig{
		Secret:        cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}, validate, logger)
	catalogService := service.NewCatalogService(store, activityService, publisher, logger)
	taskService := service.NewTaskService(store, logger)
	feedbackService := service.NewFeedbackService(store, taskService, validate, logger)
	assignmentService := service.NewAssignmentService(store, validate, activityService, publisher, logger)
	progressService := service.NewProgressService(store, logger)
	suggestionService := service.NewSuggestionService(store.Suggestions(), validate, logger)
	exportService := service.NewExportService(store, logger)
	reconciliationService := service.NewReconciliationService(store, service.NewLocker(redisClient), activityService, publisher, service.ReconciliationConfig{
		TestCategories: cfg.TestCategories,
		LockTTL:        cfg.ReconcileLockTTL,
	}, logger)

	if cfg.CatalogSeedPath != "" {
		seeded, err := catalogService.Bootstrap(startupCtx, cfg.CatalogSeedPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.CatalogSeedPath).Msg("failed to seed question catalog")
		}
		if seeded > 0 {
			logger.Info().Int("questions", seeded).Msg("question catalog seeded")
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AccessLog:      cfg.AppEnv != "production",
		AllowedOrigins: cfg.AllowedOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler: handler.NewAuthHandler(authService, logger),
		AnnotationHandler: handler.NewAnnotationHandler(
			taskService,
			feedbackService,
			catalogService,
			suggestionService,
			middleware.RateLimit("feedback-save", cfg.SaveRateLimit, time.Minute),
			logger,
		),
		AdminAnnotatorHandler: handler.NewAdminAnnotatorHandler(annotatorService, progressService, logger),
		AdminAssignment:       handler.NewAdminAssignmentHandler(assignmentService, progressService, logger),
		AdminCatalogHandler:   handler.NewAdminCatalogHandler(catalogService, exportService, suggestionService, validate, cfg.MaxUploadBytes, logger),
		AdminReconcileHandler: handler.NewAdminReconcileHandler(reconciliationService, cfg.MaxUploadBytes, logger),
		AdminActivityHandler:  handler.NewAdminActivityHandler(activityService, logger),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
		DatabasePing:          sqlDB.PingContext,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("annotation api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
