package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/metrocollab/grouper/internal/application/command"
	"github.com/metrocollab/grouper/internal/application/query"
	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/infrastructure/metrics"
	"github.com/metrocollab/grouper/internal/infrastructure/persistence/postgres"
	httpserver "github.com/metrocollab/grouper/internal/interface/http"
	"github.com/metrocollab/grouper/internal/interface/http/handlers"
	"github.com/metrocollab/grouper/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

Inline sorting and plan previews always work. Class generation and group
lookup need DATABASE_URL; the result cache needs Redis and is skipped when it
is unreachable.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	log := a.log
	health := handlers.NewCompositeHealthChecker(a.cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 1. МЕТРИКИ И КОНВЕЙЕР
	// ─────────────────────────────────────────────────────────────────────────
	var (
		sink           grouping.Metrics
		metricsHandler http.Handler
	)
	if collector, reg := a.newMetrics(); collector != nil {
		sink = collector
		metricsHandler = metrics.Handler(reg)
	}

	sorter, err := a.newSorter(sink, sorterOverrides{})
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. КЕШ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	cache, locker := a.groupingCache(ctx)
	if a.cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(a.cache))
	}

	deps := httpserver.Dependencies{
		SortRosterHandler:  command.NewSortRosterHandler(sorter, cache, log),
		PreviewPlanHandler: query.NewPreviewPlanHandler(),
		Logger:             log,
		HealthChecker:      health,
		MetricsHandler:     metricsHandler,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. БАЗА ДАННЫХ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if a.cfg.Database.URL != "" {
		db, err := a.openDatabase(ctx)
		if err != nil {
			return err
		}
		health.AddCheck("database", handlers.NewPingCheck(db))

		repo := postgres.NewRosterRepository(db)
		deps.GenerateGroupsHandler = command.NewGenerateGroupsHandler(repo, sorter, command.GenerateGroupsHandlerConfig{
			Cache:  cache,
			Locker: locker,
			Logger: log,
		})
		deps.GetGroupsHandler = query.NewGetGroupsHandler(repo)
	} else {
		log.Warn("DATABASE_URL not set, class endpoints disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	hc := a.cfg.HTTP
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = hc.Host
	srvCfg.Port = hc.Port
	srvCfg.ReadTimeout = hc.ReadTimeout
	srvCfg.WriteTimeout = hc.WriteTimeout
	srvCfg.IdleTimeout = hc.IdleTimeout
	srvCfg.MaxBodyBytes = hc.MaxBodyBytes
	if hc.WriteTimeout > 0 {
		srvCfg.RequestTimeout = hc.WriteTimeout
	}
	srvCfg.Version = a.cfg.App.Version

	srv := httpserver.NewServer(srvCfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОЖИДАНИЕ СИГНАЛА
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hc.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("server stopped gracefully", logger.String("address", srvCfg.Address()))
	return nil
}
