/**
 * @description
 * Main entry point for the fundraising service. It loads configuration, connects
 * to PostgreSQL, RabbitMQ and Redis, wires the ledger guard and the campaign,
 * adoption and pet funding services, then runs the payment consumer, the
 * reconciliation scheduler and the internal HTTP server until a shutdown signal.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/redis/go-redis/v9: client behind the reconciliation sweep lock.
 * - github.com/joho/godotenv: optional .env loading for local runs.
 * - golang.org/x/sync/errgroup: supervises the HTTP server and shutdown.
 * - internal/api, internal/app, internal/config, internal/ledger, internal/store.
 * - pkg/pawpointsclient, pkg/verificationclient, pkg/rabbitmq.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/pawfund/fundraising-service/internal/api"
	"github.com/pawfund/fundraising-service/internal/app"
	"github.com/pawfund/fundraising-service/internal/config"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/ledger"
	"github.com/pawfund/fundraising-service/internal/store"
	"github.com/pawfund/fundraising-service/pkg/pawpointsclient"
	rmrabbit "github.com/pawfund/fundraising-service/pkg/rabbitmq"
	"github.com/pawfund/fundraising-service/pkg/verificationclient"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.InternalAPIKey == "" {
		logger.Warn("INTERNAL_API_KEY is empty; internal routes are unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)
	guard := ledger.NewGuard(repository, logger, cfg.LedgerLockTimeout(), nil)

	var events app.EventPublisher
	producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; events will be logged only", "error", err)
		events = &rmrabbit.EventProducerFallback{Logger: logger}
	} else {
		defer producer.Close()
		events = producer
		logger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
	}

	pawPoints := pawpointsclient.NewClient(cfg.PawPointsServiceURL, cfg.InternalAPIKey)
	verifier := verificationclient.NewClient(cfg.VerificationServiceURL, cfg.InternalAPIKey)

	campaigns := app.NewCampaignService(repository, guard, verifier, events, logger, nil)
	adoptions := app.NewAdoptionService(repository, guard, verifier, pawPoints, events, logger, nil)
	pets := app.NewPetFundingService(repository, guard, logger, nil)
	jobs := app.NewJobs(repository, guard, events, logger, nil)

	if redisClient := connectRedis(ctx, cfg.RedisURL, logger); redisClient != nil {
		defer redisClient.Close()
		jobs.SetSweepLock(app.NewRedisSweepLock(redisClient, cfg.SweepLockKey, cfg.SweepLockTTL()))
	}

	payments := app.NewPaymentConsumer(guard, events, logger, nil)
	consumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to create rabbitmq consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	handlers := map[string]rmrabbit.Handler{
		domain.PaymentDonationCompletedKey: payments.HandleMessage,
	}
	if err := consumer.Consume(cfg.PaymentsExchange, cfg.PaymentQueue, handlers); err != nil {
		logger.Error("failed to start payment consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("payment consumer started", "exchange", cfg.PaymentsExchange, "queue", cfg.PaymentQueue)

	scheduler := app.NewScheduler(jobs, logger, *cfg)
	if err := scheduler.Start(); err != nil {
		os.Exit(1)
	}
	logger.Info("scheduler started")

	handler := api.NewHandler(campaigns, adoptions, pets, jobs, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: api.NewRouter(handler, cfg.InternalAPIKey, cfg.AllowedOrigins()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}

		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		logger.Info("scheduler stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// sweep then runs without a cross-instance lock.
func connectRedis(ctx context.Context, redisURL string, logger *slog.Logger) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		logger.Warn("redis url missing; reconciliation sweep lock disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; reconciliation sweep lock disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; reconciliation sweep lock disabled", "error", err)
		client.Close()
		return nil
	}

	logger.Info("redis connected")
	return client
}
