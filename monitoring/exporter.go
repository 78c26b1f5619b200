package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/TuringBitChain/TBCNODE/hncfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// metricsPath is the path the exporter serves on.
	metricsPath = "/metrics"

	// readHeaderTimeout bounds the time a scraper takes to send its
	// request headers.
	readHeaderTimeout = 5 * time.Second

	// shutdownTimeout bounds the graceful shutdown of the exporter.
	shutdownTimeout = 5 * time.Second
)

// Exporter serves the metrics of a set of collectors over HTTP.
type Exporter struct {
	registry *prometheus.Registry
	server   *http.Server
}

// NewExporter registers the collectors on a fresh registry and prepares an
// HTTP server on cfg.Listen.
func NewExporter(cfg hncfg.Prometheus,
	collectors ...prometheus.Collector) (*Exporter, error) {

	registry := prometheus.NewRegistry()
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("unable to register collector: "+
				"%w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(
		registry, promhttp.HandlerOpts{},
	))

	return &Exporter{
		registry: registry,
		server: &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Registry returns the registry the collectors were registered on.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Serve serves on l until ctx is done, then shuts the server down.
func (e *Exporter) Serve(ctx context.Context, l net.Listener) error {
	log.Infof("Prometheus exporter started on %v%v", l.Addr(),
		metricsPath)

	errChan := make(chan error, 1)
	go func() {
		errChan <- e.server.Serve(l)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	if err := e.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errChan
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	log.Infof("Prometheus exporter stopped")

	return err
}

// ExportPrometheusMetrics launches the Prometheus exporter on the address
// of cfg and serves the collectors until ctx is done.
func ExportPrometheusMetrics(ctx context.Context, cfg hncfg.Prometheus,
	collectors ...prometheus.Collector) error {

	exporter, err := NewExporter(cfg, collectors...)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %v: %w", cfg.Listen,
			err)
	}

	return exporter.Serve(ctx, l)
}
