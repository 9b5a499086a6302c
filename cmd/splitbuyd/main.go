// Package main is the entry point for the split-purchase admission daemon.
// Its sole responsibility is wiring dependencies together and starting the
// ops server. No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pkordes/splitbuy/internal/config"
	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/guard"
	"github.com/pkordes/splitbuy/internal/handler"
	"github.com/pkordes/splitbuy/internal/logging"
	"github.com/pkordes/splitbuy/internal/metrics"
	"github.com/pkordes/splitbuy/internal/notify"
	"github.com/pkordes/splitbuy/internal/repo"
	"github.com/pkordes/splitbuy/internal/repo/memory"
	"github.com/pkordes/splitbuy/internal/service"
	"github.com/pkordes/splitbuy/internal/telemetry"
	"github.com/pkordes/splitbuy/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// backend is the persistence side of the wiring.
type backend struct {
	tx    repo.TxRunner
	reads repo.Repos
	ping  handler.Pinger
	close func()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Tracing ----------------------------------------------------------
	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.TracesExporter, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	// --- Metrics ----------------------------------------------------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// --- Store ------------------------------------------------------------
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	// --- Notifiers --------------------------------------------------------
	notifier, closeNotifiers, err := openNotifiers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	// --- Services ---------------------------------------------------------
	// Nothing in this process calls the services over HTTP; they are built
	// here so configuration errors surface at startup and embedders can
	// copy the wiring.
	svc := service.New(service.Deps{
		Tx:         be.tx,
		Reads:      be.reads,
		Guard:      guard.NewKeyedMutex(),
		Notifier:   notifier,
		Clock:      domain.SystemClock{Location: cfg.Location},
		Metrics:    m,
		Logger:     logger,
		MaxRetries: cfg.ConflictRetries,
		RetryBase:  cfg.ConflictBackoff,
		TxTimeout:  cfg.TxTimeout,
	})
	_, recruiting, err := svc.Groups.ListRecruiting(ctx, domain.NewPaginationParams(nil, nil))
	if err != nil {
		return fmt.Errorf("startup read: %w", err)
	}
	logger.Info("admission core ready", "store", cfg.Store, "recruiting_groups", recruiting)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(handler.NewServer(be.ping), logger, reg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give in-flight requests up to 15 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		st := memory.New()
		return backend{tx: st, reads: st.Repos(), ping: st, close: func() {}}, nil
	}

	if cfg.MigrateOnStart {
		if err := migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return backend{}, err
		}
	}

	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, fmt.Errorf("create database pool: %w", err)
	}
	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return backend{}, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connection established")

	return backend{
		tx:    repo.NewTxRunner(pool),
		reads: repo.NewRepos(pool),
		ping:  pool,
		close: pool.Close,
	}, nil
}

// migrate applies every pending migration. goose needs database/sql, so it
// gets its own short-lived connection.
func migrate(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer db.Close()

	results, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	for _, r := range results {
		logger.Info("migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

func openNotifiers(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.Notifier, func(), error) {
	var (
		notifiers []service.Notifier
		closers   []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Enabled(config.NotifierLog) {
		notifiers = append(notifiers, notify.NewLog(logger))
	}
	if cfg.Enabled(config.NotifierAMQP) {
		a, err := notify.DialAMQP(cfg.RabbitURL, cfg.NotificationExchange)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		notifiers = append(notifiers, a)
		closers = append(closers, func() { _ = a.Close() })
		logger.Info("amqp notifier enabled", "exchange", cfg.NotificationExchange)
	}
	if cfg.Enabled(config.NotifierRedis) {
		rdb, err := notify.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		notifiers = append(notifiers, notify.NewRedis(rdb, cfg.RedisChannelPrefix))
		closers = append(closers, func() { _ = rdb.Close() })
		logger.Info("redis notifier enabled", "prefix", cfg.RedisChannelPrefix)
	}

	return notify.NewMulti(notifiers...), closeAll, nil
}
