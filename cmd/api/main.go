package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dossier-messaging-api/internal/config"
	"github.com/noah-isme/dossier-messaging-api/internal/database"
	"github.com/noah-isme/dossier-messaging-api/internal/handler"
	"github.com/noah-isme/dossier-messaging-api/internal/middleware"
	"github.com/noah-isme/dossier-messaging-api/internal/observability"
	"github.com/noah-isme/dossier-messaging-api/internal/repository"
	"github.com/noah-isme/dossier-messaging-api/internal/router"
	"github.com/noah-isme/dossier-messaging-api/internal/seed"
	"github.com/noah-isme/dossier-messaging-api/internal/service"
	"github.com/noah-isme/dossier-messaging-api/internal/utils"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.IsDevelopment() {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	doc := seed.DefaultDocument()
	if cfg.SeedFile != "" {
		doc, err = seed.Load(cfg.SeedFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SeedFile).Msg("failed to load seed file")
		}
	}

	var events service.EventPublisher = service.NopEventPublisher()
	if redisClient != nil || natsConn != nil {
		events = service.NewEventPublisher(redisClient, natsConn, cfg.EventChannel, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	store := repository.NewMessagingStore()
	directory := repository.NewUserDirectory(doc.Users)
	messagingService := service.NewMessagingService(store, directory, events, validate, logger, service.MessagingOptions{
		StrictInvariants: cfg.StrictInvariants,
	})

	seeder := seed.NewSeeder(store, messagingService, doc, cfg.SeedToken, logger)
	if _, err := seeder.Apply(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed messaging data")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				code = fiberErr.Code
			}
			return utils.SendError(c, code, err.Error())
		},
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.IsDevelopment(),
	})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		ThreadHandler:       handler.NewThreadHandler(messagingService, logger),
		NotificationHandler: handler.NewNotificationHandler(messagingService, logger),
		DirectoryHandler:    handler.NewDirectoryHandler(messagingService, logger),
		SeedHandler:         handler.NewSeedHandler(seeder, logger),
		MessageGuards: []fiber.Handler{
			middleware.RateLimit("messages", cfg.MessageRateLimit, cfg.MessageRateWindow),
		},
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Bool("strict_invariants", cfg.StrictInvariants).Msg("messaging api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cfg.ShutdownTimeout, logger)
}

func waitForShutdown(app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
