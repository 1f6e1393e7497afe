package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genesim/internal/core"
)

const metricsPath = "/metrics"

// metricsServer exposes a PrometheusRecorder over HTTP for the lifetime of
// a command.
type metricsServer struct {
	recorder *core.PrometheusRecorder
	srv      *http.Server
	addr     net.Addr
	done     chan struct{}
}

func startMetricsServer(addr string, logger *slog.Logger) (*metricsServer, error) {
	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	m := &metricsServer{
		recorder: recorder,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:     ln.Addr(),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", m.addr.String(), "path", metricsPath)
	return m, nil
}

func (m *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.srv.Shutdown(ctx)
	<-m.done
	return err
}
