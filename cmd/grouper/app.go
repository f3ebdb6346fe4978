package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/metrocollab/grouper/config"
	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/shared"
	"github.com/metrocollab/grouper/internal/infrastructure/embedding"
	"github.com/metrocollab/grouper/internal/infrastructure/metrics"
	"github.com/metrocollab/grouper/internal/infrastructure/persistence/postgres"
	"github.com/metrocollab/grouper/internal/infrastructure/persistence/redis"
	"github.com/metrocollab/grouper/pkg/logger"
	"github.com/metrocollab/grouper/pkg/retry"
)

// app holds what every command needs: configuration, logger, streams and
// lazily opened infrastructure.
type app struct {
	cfg *config.Config
	log *logger.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	db      *postgres.Connection
	cache   *redis.Cache
	closers []func()
}

// ══════════════════════════════════════════════════════════════════════════════
// SETUP
// ══════════════════════════════════════════════════════════════════════════════

// init loads configuration and builds the logger. Logs go to stderr so
// command output on stdout stays machine-readable.
func (a *app) init(logLevel, logFormat string) error {
	cfg, err := config.Load()
	if err != nil {
		return shared.WrapError("config", "Load", shared.ErrInvalidConfiguration, "invalid configuration", err)
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Observability.LogFormat = logFormat
	}
	a.cfg = cfg

	a.log = logger.New(logger.Options{
		Output:    a.stderr,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(strings.ToLower(cfg.Observability.LogFormat)),
		AddCaller: cfg.App.Debug,
	}).With(logger.String("app", cfg.App.Name), logger.String("version", cfg.App.Version))
	a.closers = append(a.closers, func() { _ = a.log.Sync() })

	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUPING PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// sorterOverrides are per-invocation flag values; zero values keep config.
type sorterOverrides struct {
	strategy string
	seed     int64
	seedSet  bool
}

// newSorter wires the clustering pipeline from configuration.
func (a *app) newSorter(m grouping.Metrics, o sorterOverrides) (*grouping.Sorter, error) {
	gc := a.cfg.Grouping

	var provider grouping.EmbeddingProvider
	if a.cfg.Embedding.Path != "" {
		table, err := embedding.Load(a.cfg.Embedding.Path, embedding.Options{
			Dimensions: a.cfg.Embedding.Dimensions,
			MaxWords:   a.cfg.Embedding.MaxWords,
		})
		if err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		a.log.Info("embeddings loaded",
			logger.String("path", a.cfg.Embedding.Path),
			logger.Int("words", table.Len()),
			logger.Int("dimensions", table.Dimensions()),
			logger.String("identity", table.Identity()),
		)
		provider = table
	} else {
		a.log.Warn("no embedding table configured, skill block disabled")
	}

	name := gc.Strategy
	if o.strategy != "" {
		name = o.strategy
	}
	strategy, err := grouping.ParseStrategy(name, gc.Workers)
	if err != nil {
		return nil, err
	}

	seed := gc.Seed
	if o.seedSet {
		seed = o.seed
	}

	opts := []grouping.SorterOption{
		grouping.WithSeed(seed),
		grouping.WithStrategy(strategy),
		grouping.WithSeeder(grouping.NewKMeansSeeder(
			grouping.WithRestarts(gc.Restarts),
			grouping.WithMaxIterations(gc.MaxIterations),
			grouping.WithTolerance(gc.Tolerance),
		)),
		grouping.WithLogger(a.log),
	}
	if m != nil {
		opts = append(opts, grouping.WithMetrics(m))
	}

	a.log.Debug("grouping pipeline configured",
		logger.Strategy(strategy.Name()),
		logger.Int64("seed", seed),
		logger.Int("restarts", gc.Restarts),
		logger.Int("max_iterations", gc.MaxIterations),
		logger.Float64("tolerance", gc.Tolerance),
	)

	encoder := grouping.NewEncoder(provider, grouping.WithEncoderWorkers(gc.Workers))
	return grouping.NewSorter(encoder, opts...), nil
}

// newMetrics builds a registry with runtime collectors and the grouping
// collector. Returns nils when metrics are disabled.
func (a *app) newMetrics() (*metrics.PrometheusCollector, *prometheus.Registry) {
	if !a.cfg.Observability.MetricsEnabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewPrometheus(reg, a.cfg.Observability.MetricsNamespace), reg
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// openDatabase connects to PostgreSQL and applies migrations when enabled.
func (a *app) openDatabase(ctx context.Context) (*postgres.Connection, error) {
	if a.db != nil {
		return a.db, nil
	}
	dc := a.cfg.Database
	if dc.URL == "" {
		return nil, shared.NewDomainError("config", "Database", shared.ErrInvalidConfiguration,
			"DATABASE_URL (or DB_HOST and DB_USER) is required")
	}

	a.log.Info("connecting to database...")
	onRetry := func(attempt int, err error, delay time.Duration) {
		a.log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, dc.URL, postgres.PoolOptions{
			MaxConns:        int32(dc.MaxOpenConns),
			MinConns:        int32(dc.MaxIdleConns),
			MaxConnLifetime: dc.ConnMaxLifetime,
			MaxConnIdleTime: dc.ConnMaxIdleTime,
		})
	}, retry.ConnectOptions(onRetry)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() {
		a.log.Info("closing database connection...")
		conn.Close()
	})

	if dc.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.log.Info("migrations completed", logger.Int("applied", applied))
	}

	a.db = conn
	return conn, nil
}

// openCache connects to Redis. A disabled or unreachable cache yields nil;
// grouping works without it.
func (a *app) openCache(ctx context.Context) *redis.Cache {
	if a.cache != nil || a.cfg.Redis.Disabled {
		return a.cache
	}
	rc := a.cfg.Redis

	cache, err := redis.NewCache(ctx, redis.Config{
		Host:         rc.Host,
		Port:         rc.Port,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	if err != nil {
		a.log.Warn("failed to connect to Redis, result cache disabled", logger.Err(err))
		return nil
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.log.Info("Redis connection established", logger.String("addr", rc.Host))

	a.cache = cache
	return cache
}

// groupingCache returns the result cache and class locker, or nils.
func (a *app) groupingCache(ctx context.Context) (command.ResultCache, command.Locker) {
	cache := a.openCache(ctx)
	if cache == nil {
		return nil, nil
	}
	gc := redis.NewGroupingCache(cache, a.cfg.Redis.ResultTTL)
	return gc, gc
}
