package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	config "github.com/attractapp/attract/configs"
	"github.com/attractapp/attract/database"
	"github.com/attractapp/attract/events"
	"github.com/attractapp/attract/handlers"
	"github.com/attractapp/attract/jobs"
	"github.com/attractapp/attract/ledger"
	"github.com/attractapp/attract/middleware"
	"github.com/attractapp/attract/notifications"
	"github.com/attractapp/attract/payments"
	"github.com/attractapp/attract/routes"
	"github.com/attractapp/attract/services"
	"github.com/attractapp/attract/verification"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("🔥 Server stopped", "error", err)
		os.Exit(1)
	}
}

// run wires and serves the API until shutdown. Failures return through the
// deferred closers.
func run(cfg config.AppConfig, log *slog.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if cfg.PaymentGatewaySecret == "" {
		return errors.New("PAYMENT_GATEWAY_SECRET_KEY is not set")
	}

	db, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("✅ Database connected and migrated")

	isolation, err := ledger.ParseIsolation(cfg.LedgerIsolation)
	if err != nil {
		return fmt.Errorf("invalid LEDGER_ISOLATION: %w", err)
	}
	store := ledger.NewGormStore(db,
		ledger.WithIsolation(isolation),
		ledger.WithMaxRetries(uint64(cfg.LedgerMaxRetries)),
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	cancelPing()
	codes := verification.NewCachedStore(verification.NewRedisStore(rdb), cfg.VerificationResendCooldown)

	var publisher services.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewProducer(cfg.KafkaBrokers, cfg.PaymentEventTopic)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer producer.Close()
		publisher = producer
		log.Info("✅ Kafka producer ready", "topic", cfg.PaymentEventTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set, payment events are disabled")
	}

	var sms notifications.SMSSender
	if cfg.SMSAPIKey != "" {
		sms = notifications.NewBrevoSMSService(cfg.SMSAPIKey, cfg.SMSSender)
	} else {
		log.Warn("SMS_API_KEY not set, verification codes are only logged")
		sms = notifications.LogSMSSender{}
	}

	gateway := payments.NewTossClient(cfg.PaymentGatewayURL, cfg.PaymentGatewaySecret, cfg.PaymentGatewayTimeout)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	paymentSvc := services.NewPaymentService(gateway, store, publisher, log)
	verifySvc := services.NewVerificationService(codes, sms, db, tokens, services.VerificationConfig{
		CodeTTL:        cfg.VerificationCodeTTL,
		ResendCooldown: cfg.VerificationResendCooldown,
		MaxAttempts:    cfg.VerificationMaxAttempts,
	}, log)
	accountSvc := services.NewAccountService(db, log)

	c := cron.New()
	if _, err := jobs.ScheduleVerificationSweep(c, cfg.VerificationSweepSchedule, codes, log); err != nil {
		return fmt.Errorf("invalid VERIFICATION_SWEEP_SCHEDULE: %w", err)
	}
	c.Start()
	defer c.Stop()
	log.Info("✅ Verification cache sweep scheduled", "schedule", cfg.VerificationSweepSchedule)

	app := fiber.New(fiber.Config{
		AppName:       "Attract",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error("request failed", "error", err, "path", c.Path(), "method", c.Method())
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"code":    "internal",
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
		MaxAge:       86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	protected := middleware.Protected(cfg.JWTSecret)
	routes.AuthRoutes(app, handlers.NewAuthHandler(verifySvc))
	routes.PaymentRoutes(app, handlers.NewPaymentHandler(paymentSvc), protected)
	routes.AccountRoutes(app, handlers.NewAccountHandler(accountSvc), protected)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("✅ Server is running", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
