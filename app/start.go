package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/maprank/app/observability/attr"
)

// Run rebuilds ranking state, starts the router, the modules and the HTTP
// server, and blocks until ctx is cancelled or the server fails.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Logger

	if err := app.RankingModule.Start(ctx); err != nil {
		return err
	}

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- app.Router.Run(ctx)
	}()
	select {
	case <-app.Router.Running():
	case err := <-routerErr:
		return fmt.Errorf("message router stopped: %w", err)
	case <-ctx.Done():
		return nil
	}

	app.wg.Add(1)
	go app.RankingModule.Run(ctx, &app.wg)

	srv := &http.Server{
		Addr:              app.Config.HTTP.Address,
		Handler:           app.HTTPRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", attr.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server: %w", err)
		}
	case err := <-routerErr:
		if err != nil {
			runErr = fmt.Errorf("message router stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server forced to shutdown", attr.Error(err))
	}
	return runErr
}
