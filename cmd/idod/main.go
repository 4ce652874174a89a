// Command idod serves the presale HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/presale_layer/internal/config"
	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/httpapi"
	"github.com/R3E-Network/presale_layer/internal/ido"
	"github.com/R3E-Network/presale_layer/internal/keeper"
	"github.com/R3E-Network/presale_layer/internal/logging"
	"github.com/R3E-Network/presale_layer/internal/metrics"
	"github.com/R3E-Network/presale_layer/internal/middleware"
	"github.com/R3E-Network/presale_layer/internal/store"
	"github.com/R3E-Network/presale_layer/internal/store/memory"
	"github.com/R3E-Network/presale_layer/internal/store/postgres"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("presale", cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("idod exited")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, db, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	m := metrics.New("presale")
	ring := events.NewRingBuffer(cfg.Events.BufferSize)
	if cfg.Events.RedisAddr != "" {
		client := events.NewRedisClient(cfg.Events.RedisAddr, cfg.Events.RedisPassword, cfg.Events.RedisDB)
		defer client.Close()
		pub := events.NewRedisPublisher(client, cfg.Events.RedisChannel, cfg.Events.BufferSize, logger)
		unsubscribe := ring.Subscribe(pub.Handle)
		defer unsubscribe()
		go pub.Run(ctx)
		logger.WithField("addr", cfg.Events.RedisAddr).Info("Publishing events to Redis")
	}

	svc := ido.New(st, logger,
		ido.WithMetrics(m),
		ido.WithEvents(ring),
		ido.WithVestingOffsets(cfg.Vesting.Offsets()),
		ido.WithLiquidityDestination(cfg.Liquidity.Destination),
		ido.WithListingReserve(cfg.Liquidity.ReservePercent),
	)

	if cfg.Keeper.Enabled {
		k := keeper.New(svc, cfg.Keeper.Operator, logger)
		if err := k.Start(cfg.Keeper.Schedule); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer stopCancel()
			k.Stop(stopCtx)
		}()
	}

	auth, err := newAuth(cfg.Auth, logger)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.Burst, logger)
	limiter.StartCleanup(ctx, limiterIdleTimeout)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewHandler(svc, httpapi.Options{
			Logger:      logger,
			Metrics:     m,
			Auth:        auth,
			RateLimiter: limiter,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("Presale API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Shutdown error")
	}
	logger.Info("Service stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (store.Store, *sqlx.DB, error) {
	if cfg.Driver != "postgres" {
		logger.Warn("Using in-memory store; state is lost on restart")
		return memory.New(), nil, nil
	}

	db, err := postgres.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database migrations applied")
	}
	return postgres.New(db), db, nil
}

func newAuth(cfg config.AuthConfig, logger *logging.Logger) (*middleware.AuthMiddleware, error) {
	var opts []middleware.AuthOption
	if cfg.TrustCallerHeader {
		logger.Warn("Trusting X-Caller-ID headers; do not expose this server publicly")
		opts = append(opts, middleware.WithTrustedCallerHeader())
	}
	if cfg.PublicKeyPath == "" {
		return middleware.NewAuthMiddleware(nil, logger, cfg.SkipPaths, opts...), nil
	}
	key, err := middleware.LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	return middleware.NewAuthMiddleware(key, logger, cfg.SkipPaths, opts...), nil
}
