// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the person server.
type Collector struct {
	// Registry is the dedicated registry the admin API serves.
	Registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	framesRead        prometheus.Counter
	framesWritten     prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	poolRejected      *prometheus.CounterVec
	storeHealth       prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a fresh registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "personstore_connections_active",
			Help: "Number of currently open client connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personstore_connections_total",
			Help: "Total number of accepted client connections",
		}),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personstore_frames_read_total",
			Help: "Total number of complete frames decoded from clients",
		}),
		framesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "personstore_frames_written_total",
			Help: "Total number of frames written to clients",
		}),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personstore_requests_total",
				Help: "Total number of routed requests per command",
			},
			[]string{"command"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "personstore_request_duration_seconds",
				Help:    "Duration of request routing in seconds per command",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"command"},
		),
		poolRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "personstore_pool_rejected_total",
				Help: "Total number of tasks rejected by a saturated worker pool",
			},
			[]string{"pool"},
		),
		storeHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "personstore_store_health",
			Help: "Database health (1=healthy, 0=unhealthy)",
		}),
	}

	c.Registry.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.framesRead,
		c.framesWritten,
		c.requestsTotal,
		c.requestDuration,
		c.poolRejected,
		c.storeHealth,
	)

	return c
}

// ConnectionOpened counts a newly accepted connection.
func (c *Collector) ConnectionOpened() {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionClosed decrements the active connection gauge.
func (c *Collector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// FrameRead counts one decoded inbound frame.
func (c *Collector) FrameRead() {
	c.framesRead.Inc()
}

// FrameWritten counts one outbound frame.
func (c *Collector) FrameWritten() {
	c.framesWritten.Inc()
}

// RequestRouted records a routed request and its duration.
func (c *Collector) RequestRouted(command string, d time.Duration) {
	c.requestsTotal.WithLabelValues(command).Inc()
	c.requestDuration.WithLabelValues(command).Observe(d.Seconds())
}

// PoolRejected counts a task shed by the named worker pool.
func (c *Collector) PoolRejected(pool string) {
	c.poolRejected.WithLabelValues(pool).Inc()
}

// ObserveCollectionSize exports the collection size as a gauge sampled
// from the callback at scrape time, so the metric can never drift from the
// live count.
func (c *Collector) ObserveCollectionSize(size func() int) {
	c.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "personstore_collection_size",
		Help: "Current number of persons in the collection",
	}, func() float64 { return float64(size()) }))
}

// SetStoreHealth updates the database health gauge.
func (c *Collector) SetStoreHealth(healthy bool) {
	if healthy {
		c.storeHealth.Set(1)
	} else {
		c.storeHealth.Set(0)
	}
}
