package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verbalis/verbalis/internal/health"
	"github.com/verbalis/verbalis/internal/observe"
)

// MetricsServer exposes the operational HTTP surface of a running session:
// Prometheus metrics on /metrics plus the /healthz and /readyz probes. It is
// optional; sessions run fine without one.
type MetricsServer struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewMetricsServer builds a server listening on addr. The checkers back the
// /readyz probe; the metrics instance feeds the request-duration middleware.
func NewMetricsServer(addr string, metrics *observe.Metrics, logger *slog.Logger, checkers ...health.Checker) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine. Listen errors other than
// a normal close are logged, not returned: a broken metrics endpoint must
// not take the session down with it.
func (s *MetricsServer) Start() {
	s.logger.Info("metrics server listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "addr", s.srv.Addr, "error", err)
		}
	}()
}

// Shutdown gracefully stops the server, waiting for in-flight scrapes up to
// the context deadline.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
