package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/httpapi"
	"github.com/jenkins-infra/incrementals-publisher/internal/external-adapters/telemetry"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept build triggers over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.start(cmd.Context())
			if err != nil {
				return err
			}
			defer shutdown(a)

			if addr == "" {
				addr = a.cfg.Addr
			}
			return serve(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from ADDR)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: httpapi.Router(httpapi.RouterOptions{
			Pipeline:   a.pipeline,
			Validator:  a.validator,
			Logger:     a.logger,
			Gatherer:   a.registry,
			RateLimit:  a.cfg.RateLimit,
			Checks:     a.checks,
			Middleware: telemetry.Middleware("incrementals-publisher"),
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", interfaces.F("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// shutdown closes the app within a bounded time
func shutdown(a *app) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.close(ctx); err != nil {
		a.logger.Warn("shutdown incomplete", interfaces.Err(err))
	}
}
