package main

import (
	"context"
	"fmt"

	"github.com/okian/tierd/internal/adapters/repository"
	service "github.com/okian/tierd/internal/app"
	"github.com/okian/tierd/internal/config"
	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// bootstrap loads configuration, applies logging and metrics settings and
// builds the service over the configured store. The caller must Stop the service.
func bootstrap(ctx context.Context) (*config.Config, *service.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
		metrics.WithCustomLabels(cfg.MetricsLabels),
	)

	reg, err := ladder.New(cfg.Levels())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN(),
		repository.WithMaxConns(int32(cfg.BatchWorkers+4)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	svc := service.New(store, ladder.NewHolder(reg),
		service.WithLogger(logger.Get().Named("service")),
		service.WithBatchWorkers(cfg.BatchWorkers),
		service.WithBatchQueueSize(cfg.BatchQueueSize),
		service.WithBatchTimeout(cfg.BatchTimeout()),
		service.WithRecomputeInterval(cfg.RecomputeInterval()),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	return cfg, svc, nil
}
