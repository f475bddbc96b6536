package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mbsheets/internal/config"
	"mbsheets/internal/storage"
	"mbsheets/internal/storage/postgres"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history storage.History
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		history = store
	case cfg.RunLog != "":
		history = storage.NewJSONLSink(cfg.RunLog)
	default:
		return fmt.Errorf("run-log or pg-dsn is required")
	}

	runs, err := history.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	logger.Debug("history loaded", zap.Int("runs", len(runs)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, run := range runs {
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode run: %w", err)
		}
	}
	return nil
}
