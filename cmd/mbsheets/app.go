package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"mbsheets/internal/chain"
	"mbsheets/internal/config"
	"mbsheets/internal/eventabi"
	"mbsheets/internal/grid"
	"mbsheets/internal/multibaas"
	"mbsheets/internal/query"
	"mbsheets/internal/storage"
	"mbsheets/internal/storage/postgres"
)

// app is the wired composer plus the resources it holds open.
type app struct {
	cfg      config.Config
	composer *query.Composer
	registry *prometheus.Registry
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events := eventabi.NewRegistry()
	if len(cfg.ABIFiles) > 0 {
		n, err := events.LoadFiles(cfg.ABIFiles)
		if err != nil {
			return nil, err
		}
		logger.Info("abi loaded", zap.Int("files", len(cfg.ABIFiles)), zap.Int("events", n))
	}

	backend, err := a.newBackend(ctx, cfg, events, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	times, err := grid.NewLayoutFormatter(cfg.TimeFormat, cfg.TimeZone)
	if err != nil {
		a.Close()
		return nil, err
	}

	executor := query.NewExecutor(backend,
		query.WithPageSize(cfg.PageSize),
		query.WithMaxRows(cfg.MaxRows),
		query.WithMetrics(query.NewMetrics(a.registry)),
		query.WithLogger(logger),
	)

	opts := []query.ComposerOption{
		query.WithResolver(events),
		query.WithComposerLogger(logger),
	}
	sinks, err := a.newSinks(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(sinks) > 0 {
		opts = append(opts, query.WithRecorder(sinks))
	}

	a.composer = query.NewComposer(executor, grid.NewProjector(times), opts...)
	return a, nil
}

func (a *app) newBackend(ctx context.Context, cfg config.Config, events *eventabi.Registry, logger *zap.Logger) (query.Backend, error) {
	switch cfg.Backend {
	case config.BackendChain:
		addresses, err := chain.ParseAddresses(cfg.Addresses)
		if err != nil {
			return nil, err
		}
		labels, err := chain.ParseLabels(cfg.Labels)
		if err != nil {
			return nil, err
		}

		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
		logger.Info("chain backend",
			zap.String("rpc", cfg.RPCURL),
			zap.String("chain_id", chainID.String()),
			zap.Uint64("from", cfg.FromBlock),
			zap.Uint64("to", cfg.ToBlock),
			zap.Int("addresses", len(addresses)),
			zap.Int("labels", len(labels)),
		)
		return chain.NewBackend(client, events, chain.BackendConfig{
			FromBlock:    cfg.FromBlock,
			ToBlock:      cfg.ToBlock,
			BatchSize:    cfg.BatchSize,
			Addresses:    addresses,
			Labels:       labels,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			ScanTTL:      cfg.ScanTTL,
		}, logger), nil
	default:
		client, err := multibaas.NewClient(multibaas.Config{
			Deployment:        cfg.Deployment,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RetryBackoff:      cfg.RetryBackoff,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("multibaas backend", zap.String("deployment", cfg.Deployment))
		return client, nil
	}
}

func (a *app) newSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Multi, error) {
	var sinks storage.Multi
	if cfg.RunLog != "" {
		sinks = append(sinks, storage.NewJSONLSink(cfg.RunLog))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
		logger.Info("recording runs to postgres")
	}
	return sinks, nil
}
