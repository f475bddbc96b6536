package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mbsheets/internal/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app, logger *zap.Logger) error {
		cfg := a.cfg
		srv := &http.Server{
			Addr: cfg.Listen,
			Handler: server.NewHandler(server.Config{
				Service:  a.composer,
				Gatherer: a.registry,
				APIKey:   cfg.ServerAPIKey,
				Logger:   logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server start", zap.String("listen", cfg.Listen), zap.String("backend", cfg.Backend))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logger.Info("server shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
