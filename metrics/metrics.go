package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andromedaprotocol/andromeda-kernel/logger"
	"github.com/andromedaprotocol/andromeda-kernel/utils"
)

type Metrics interface {
	Start(ctx context.Context, reg prometheus.Gatherer) <-chan error
}

type KernelMetrics struct {
	ipPortAddress string
	logger        logger.Logger
}

var _ Metrics = (*KernelMetrics)(nil)

// NewKernelMetrics serves the gatherer of a running kernel host on ipPortAddress.
func NewKernelMetrics(ipPortAddress string, logger logger.Logger) Metrics {
	return &KernelMetrics{
		ipPortAddress: ipPortAddress,
		logger:        logger,
	}
}

// Start exposes "/metrics" until ctx is done. The returned channel is closed once
// the server has shut down.
func (k KernelMetrics) Start(ctx context.Context, reg prometheus.Gatherer) <-chan error {
	k.logger.Info("Starting metrics server", logger.WithField("ipPortAddress", k.ipPortAddress))
	errChan := make(chan error, 1)
	mux := http.NewServeMux()
	httpServer := http.Server{
		Addr:    k.ipPortAddress,
		Handler: mux,
	}
	mux.Handle("/metrics", promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{},
	))

	go func() {
		<-ctx.Done()
		k.logger.Info("shutdown signal received")
		defer close(errChan)

		if err := httpServer.Shutdown(context.Background()); err != nil {
			errChan <- err
		}
		k.logger.Info("shutdown completed")
	}()

	go func() {
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			k.logger.Info("server closed")
		} else {
			errChan <- utils.WrapError("prometheus server failed", err)
		}
	}()
	return errChan
}
