package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"lending-engine/internal/api"
	"lending-engine/internal/batch"
	"lending-engine/internal/config"
	"lending-engine/internal/domain/emi"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/event"
	"lending-engine/internal/infrastructure/cache"
	"lending-engine/internal/infrastructure/database/postgres"
	"lending-engine/internal/infrastructure/logging"
)

func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	rabbitConn, eventPublisher := setupEventPublisher(cfg, logger)
	redisClient, statsCache := setupStatsCache(cfg, logger)

	clock := emi.Clock(time.Now)
	loanService, emiService := initializeServices(dbPool, eventPublisher, statsCache, clock, logger)

	sweepJob := batch.NewOverdueSweepJob(emiService, clock, logger)
	correctionJob := batch.NewCorrectionJob(emiService, clock, logger)
	cronScheduler := startBatchJobs(cfg, logger, sweepJob, correctionJob)

	router := api.SetupRouter(loanService, emiService, clock, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, rabbitConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func setupEventPublisher(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.Publisher) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, domain events will not be published.")
		return nil, event.NoopPublisher{}
	}

	conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, falling back to no-op publisher", "error", err)
		return nil, event.NoopPublisher{}
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ publisher, falling back to no-op publisher", "error", err)
		return conn, event.NoopPublisher{}
	}
	return conn, publisher
}

func setupStatsCache(cfg *config.Config, logger *slog.Logger) (*redis.Client, emi.StatsCache) {
	if !cfg.Redis.Enabled {
		logger.Info("Redis disabled, loan stats will be computed per request.")
		return nil, nil
	}

	client, err := cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis, stats caching disabled", "error", err, "addr", cfg.Redis.Addr)
		return nil, nil
	}

	logger.Info("Redis connected, stats caching enabled.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return client, cache.NewRedisStatsCache(client, cfg.Redis.StatsTTL, logger)
}

func initializeServices(dbPool *pgxpool.Pool, publisher event.Publisher, statsCache emi.StatsCache,
	clock emi.Clock, logger *slog.Logger) (loan.LoanService, emi.EMIService) {
	logger.Info("Initializing application components...")
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	emiRepo := postgres.NewEMIRepository(dbPool, logger)

	loanService := loan.NewLoanService(loanRepo, clock, logger)
	emiService := emi.NewEMIService(emiRepo, loanRepo, publisher, statsCache, clock, logger)
	return loanService, emiService
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection, redisClient *redis.Client,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	shutdownHTTPServer(srv, serverErrors, logger)

	logger.Info("Application shutdown process complete.")
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) string {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited"
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn != nil && !rabbitConn.IsClosed() {
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
		} else {
			logger.Info("RabbitMQ connection closed.")
		}
	} else if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
	} else {
		logger.Info("RabbitMQ connection already closed, skipping close.")
	}
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	} else {
		logger.Info("Redis client connection closed.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, sweepJob *batch.OverdueSweepJob, correctionJob *batch.CorrectionJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	jobTimeout := cfg.Batch.SweepTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}

	scheduleJob(c, logger, "OverdueSweep", cfg.Batch.OverdueSweepSchedule, "5 0 * * *", jobTimeout, sweepJob.Run)
	scheduleJob(c, logger, "OverdueCorrection", cfg.Batch.CorrectionSchedule, "30 3 * * *", jobTimeout, correctionJob.Run)

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func scheduleJob(c *cron.Cron, logger *slog.Logger, name, scheduleSpec, defaultSpec string,
	timeout time.Duration, run func(ctx context.Context) error) {
	if scheduleSpec == "" {
		scheduleSpec = defaultSpec
		logger.Warn("Batch schedule not configured, using default", "job_name", name, "schedule", scheduleSpec)
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", name)
		jobLogger.Info("Cron triggered: running batch job.")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if runErr := run(ctx); runErr != nil {
			jobLogger.Error("Batch job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Batch job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule batch job", "job_name", name, "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled batch job", "job_name", name, "schedule", scheduleSpec, "job_id", jobID)
	}
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}
