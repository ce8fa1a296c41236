package metrics

import (
	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewPrometheusService creates a new service for gathering prometheus
// metrics, see https://prometheus.io/docs/guides/go-application.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	// Metrics are shared between multiple prometheus handlers.
	return NewService("Prometheus", promhttp.Handler(), cfg, log)
}
