package common

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/obscura-labs/obscura/log"
)

// ShutdownTimeout bounds how long RunServer waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// RunServer serves `server` until `ctx` is cancelled, then shuts it down
// gracefully.
func RunServer(ctx context.Context, server *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down http server", "addr", server.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
