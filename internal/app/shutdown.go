package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
//
// Ordering: readiness drops first, then the shared context stops the
// reconciler and the trading loop (which cancels any in-flight race and its
// open orders), then the HTTP server drains, and only once every goroutine
// has finished do the ledger and the price stream close underneath them.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.shutdownHTTPServer(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Wait for the trading loop, reconciler and HTTP goroutines
	a.wg.Wait()

	err = a.shutdownLedger()
	if err != nil {
		a.logger.Error("ledger-close-error", zap.Error(err))
	}

	err = a.shutdownWebSocketManager()
	if err != nil {
		a.logger.Error("websocket-manager-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")

	return nil
}

func (a *App) shutdownHTTPServer(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

func (a *App) shutdownLedger() error {
	return a.store.Close()
}

func (a *App) shutdownWebSocketManager() error {
	return a.wsManager.Close()
}
