// Package telemetry exposes ripplekv's Prometheus metrics and
// implements the Metrics interfaces pkg/store and internal/server
// declare, keeping those packages free of a direct prometheus import.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ripplekv",
			Name:      "commands_total",
			Help:      "Total number of commands dispatched, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	keys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ripplekv",
			Name:      "keys",
			Help:      "Current number of live keys in the store.",
		},
	)

	bytesUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ripplekv",
			Name:      "bytes_used",
			Help:      "Current byte-budget usage (sum of live key and value lengths).",
		},
	)

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ripplekv",
			Name:      "evictions_total",
			Help:      "Total number of keys removed from the store, by reason.",
		},
		[]string{"reason"},
	)

	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ripplekv",
			Name:      "connections_active",
			Help:      "Current number of accepted client connections.",
		},
	)
)

func init() {
	Registry.MustRegister(commandsTotal, keys, bytesUsed, evictionsTotal, connectionsActive)
}

// MetricsHandler exposes /metrics for scraping.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// StoreMetrics implements pkg/store's Metrics interface.
type StoreMetrics struct{}

func (StoreMetrics) SetKeys(n int)       { keys.Set(float64(n)) }
func (StoreMetrics) SetBytes(n int64)    { bytesUsed.Set(float64(n)) }
func (StoreMetrics) RecordEviction(reason string) {
	evictionsTotal.WithLabelValues(reason).Inc()
}

// ServerMetrics implements internal/server's Metrics interface.
type ServerMetrics struct{}

func (ServerMetrics) SetActiveConnections(n int) { connectionsActive.Set(float64(n)) }

// RecordCommand tags one dispatched command with its outcome ("ok" or
// "error").
func (ServerMetrics) RecordCommand(command, outcome string) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
}
