package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"example.com/socialapi/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
)

var logg = logger.New()

// Routes serves /metrics for gatherer and nothing else.
func Routes(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, gatherer)
}

// Serve exposes Routes on ln until ctx is cancelled, then shuts down
// gracefully. It returns early with the error if serving fails.
func Serve(ctx context.Context, ln net.Listener, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Handler:           Routes(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("metrics", "Serving /metrics on "+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info("metrics", "Metrics listener stopped")
	return nil
}
