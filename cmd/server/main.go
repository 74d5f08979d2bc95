package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handlers "github.com/wekeepgrowing/hospital-payment/internal/adapter/handler/http"
	"github.com/wekeepgrowing/hospital-payment/internal/config"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/cache"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/database"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/events"
	grpcServer "github.com/wekeepgrowing/hospital-payment/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/hospital-payment/internal/infrastructure/http"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/hospital-payment/internal/infrastructure/provider/mpesa"
	"github.com/wekeepgrowing/hospital-payment/internal/usecase"
	apperrors "github.com/wekeepgrowing/hospital-payment/pkg/errors"
	"github.com/wekeepgrowing/hospital-payment/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "payment",
		Short:         "Hospital payment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		log := logger.DefaultZapLogger()
		apperrors.LogError(log, err, "payment service exited")
		_ = log.Sync()
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run database migrations before starting")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.NewConnection(&cfg.Database, cfg.Log, log)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			return database.Migrate(db, log)
		},
	}
}

// bootstrap loads configuration and builds the root logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log = log.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
	)
	return cfg, log, nil
}

func runServer(skipMigrate bool) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.NewConnection(&cfg.Database, cfg.Log, log)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrInternal, "failed to connect to database", err)
	}
	defer closeDB(db, log)

	if !skipMigrate {
		if err := database.Migrate(db, log); err != nil {
			return apperrors.NewAppError(apperrors.ErrInternal, "failed to run database migrations", err)
		}
	}

	repos := database.NewRepositories(db, log)

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	var tokenStore mpesa.TokenStore = mpesa.NewMemoryTokenStore()
	if cfg.Gateway.TokenCache == "redis" {
		tokenStore = cache.NewRedisTokenStore(rdb, cache.DefaultTokenKey, log)
	}

	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:            cfg.Gateway.BaseURL,
		ConsumerKey:        cfg.Gateway.ConsumerKey,
		ConsumerSecret:     cfg.Gateway.ConsumerSecret,
		Shortcode:          cfg.Gateway.Shortcode,
		Passkey:            cfg.Gateway.Passkey,
		TransactionType:    cfg.Gateway.TransactionType,
		Timeout:            cfg.Gateway.Timeout,
		TokenRefreshMargin: cfg.Gateway.TokenRefreshMargin,
	}, log, mpesa.WithTokenStore(tokenStore))

	publisher, err := events.NewPublisher(cfg.Events, rdb, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	initiation := usecase.NewInitiationService(gateway, repos.Payment, repos.Appointment, usecase.InitiationConfig{
		CallbackBaseURL:    cfg.Gateway.CallbackBaseURL,
		VerifyAppointments: cfg.Service.VerifyAppointments,
	}, paymentMetrics, log)
	reconciliation := usecase.NewReconciliationService(gateway, repos.Payment, repos.CallbackEvent, publisher, paymentMetrics, log)
	payments := usecase.NewPaymentUsecase(repos.Payment, log)

	if cfg.JWT.Secret == "" {
		log.Warn("jwt.secret is empty; staff payment routes will reject every request")
	}

	health := map[string]httpServer.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		health["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	grpcSrv := grpcServer.NewServer(cfg, log)
	httpSrv := httpServer.NewServer(cfg, log, httpServer.Dependencies{
		Payments: handlers.NewPaymentHandler(payments, log),
		Push:     handlers.NewPushPaymentHandler(initiation, reconciliation, log),
		Registry: registry,
		Health:   health,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := grpcSrv.Start(); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down servers...")
	case runErr = <-errCh:
		log.Error("Server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	log.Info("Servers shut down successfully")
	return runErr
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db, log); err != nil {
		log.Error("Failed to close database connection", zap.Error(err))
	}
}
