package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mbsheets/internal/config"
	"mbsheets/internal/model"
	"mbsheets/internal/query"
	"mbsheets/internal/sheet"
	"mbsheets/internal/sheetio"
)

func runCustomQuery(cmd *cobra.Command, _ []string) error {
	in, _ := cmd.Flags().GetString("in")
	if in == "" {
		return fmt.Errorf("input sheet is required")
	}
	sheetName, _ := cmd.Flags().GetString("sheet")
	rows, err := sheetio.ReadRows(in, sheetName)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetString("limit")
	offset, _ := cmd.Flags().GetString("offset")
	groupBy, _ := cmd.Flags().GetString("group-by")
	orderBy, _ := cmd.Flags().GetString("order-by")

	return withApp(cmd, func(ctx context.Context, a *app, logger *zap.Logger) error {
		out, err := a.composer.CustomQuery(ctx, rows, query.Options{
			Limit:   limit,
			Offset:  offset,
			GroupBy: groupBy,
			OrderBy: orderBy,
		})
		if err != nil {
			return err
		}
		logger.Debug("custom query done", zap.Int("rows", len(out)))
		return writeOutput(cmd, out)
	})
}

func runSavedQuery(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetString("limit")
	offset, _ := cmd.Flags().GetString("offset")

	return withApp(cmd, func(ctx context.Context, a *app, _ *zap.Logger) error {
		out, err := a.composer.SavedQuery(ctx, args[0], limit, offset)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	})
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetString("limit")
	offset, _ := cmd.Flags().GetString("offset")

	return withApp(cmd, func(ctx context.Context, a *app, _ *zap.Logger) error {
		out, err := a.composer.Events(ctx, args[0], limit, offset)
		if err != nil {
			return err
		}
		return writeOutput(cmd, out)
	})
}

func runTemplate(cmd *cobra.Command, _ []string) error {
	selects, _ := cmd.Flags().GetInt("selects")
	filters, _ := cmd.Flags().GetInt("filters")
	out, err := sheet.Template(selects, filters)
	if err != nil {
		return err
	}
	return writeOutput(cmd, out)
}

// withApp loads config, builds the logger and the wired app, and runs fn
// under a signal-aware context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, logger *zap.Logger) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, logger)
}

func writeOutput(cmd *cobra.Command, out model.Grid) error {
	path, _ := cmd.Flags().GetString("out")
	if path != "" {
		return sheetio.WriteGridFile(path, out)
	}
	format, _ := cmd.Flags().GetString("format")
	return sheetio.WriteGrid(cmd.OutOrStdout(), format, out)
}
