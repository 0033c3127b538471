// Package metric exposes prometheus collectors for the server and its
// storage engines.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the server-side prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	CommandsProcessed   *prometheus.CounterVec
	CommandErrors       prometheus.Counter
	ReapedRecords       prometheus.Counter

	engineLSMSize  *prometheus.GaugeVec
	engineVlogSize *prometheus.GaugeVec
}

// NewCollector creates and registers the Nimbis collectors on a fresh
// registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbis",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "TCP connections accepted since start",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nimbis",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently open client connections",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nimbis",
			Subsystem: "server",
			Name:      "commands_processed_total",
			Help:      "Commands executed, by command name",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbis",
			Subsystem: "server",
			Name:      "command_errors_total",
			Help:      "Commands that produced an error reply",
		}),
		ReapedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nimbis",
			Subsystem: "storage",
			Name:      "reaped_records_total",
			Help:      "Stale data records dropped by the background reaper",
		}),
		engineLSMSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nimbis",
			Subsystem: "storage",
			Name:      "lsm_size_bytes",
			Help:      "LSM tree size per shard",
		}, []string{"shard"}),
		engineVlogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nimbis",
			Subsystem: "storage",
			Name:      "value_log_size_bytes",
			Help:      "Value log size per shard",
		}, []string{"shard"}),
	}

	c.registry.MustRegister(
		c.ConnectionsAccepted,
		c.ConnectionsActive,
		c.CommandsProcessed,
		c.CommandErrors,
		c.ReapedRecords,
		c.engineLSMSize,
		c.engineVlogSize,
	)
	return c
}

// SetEngineSizes records one shard's storage sizes.
func (c *Collector) SetEngineSizes(shard string, lsm, vlog int64) {
	c.engineLSMSize.WithLabelValues(shard).Set(float64(lsm))
	c.engineVlogSize.WithLabelValues(shard).Set(float64(vlog))
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the server fails. Intended to run
// in its own goroutine.
func (c *Collector) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
