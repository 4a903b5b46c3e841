// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for connections and worker processes.
// Every Metrics value owns a private registry, so independent server
// instances never collide on registration.

package control

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Close reasons used as the "reason" label of ConnectionsClosed.
const (
	ReasonDone      = "done"
	ReasonPeer      = "peer_closed"
	ReasonError     = "io_error"
	ReasonOversized = "oversized"
	ReasonRejected  = "rejected"
	ReasonShutdown  = "shutdown"
)

// Metrics holds the collectors of one server instance.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   *prometheus.CounterVec
	ConnectionsActive   prometheus.Gauge
	Responses           prometheus.Counter
	HeadsRejected       prometheus.Counter

	WorkersSpawned prometheus.Counter
	WorkersReaped  prometheus.Counter
	SpawnFailures  prometheus.Counter
	WorkersLive    prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ConnectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_connections_accepted_total",
			Help: "Connections accepted by the event loop.",
		}),
		ConnectionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_connections_closed_total",
			Help: "Event loop connections closed, by reason.",
		}, []string{"reason"}),
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_connections_active",
			Help: "Connections currently owned by the event loop.",
		}),
		Responses: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_responses_total",
			Help: "Responses fully written.",
		}),
		HeadsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_heads_rejected_total",
			Help: "Requests dropped because the head exceeded the size cap.",
		}),
		WorkersSpawned: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_workers_spawned_total",
			Help: "Worker processes started by the supervisor.",
		}),
		WorkersReaped: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_workers_reaped_total",
			Help: "Terminated worker processes collected by the reaper.",
		}),
		SpawnFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_worker_spawn_failures_total",
			Help: "Accepted connections dropped because no worker could be started.",
		}),
		WorkersLive: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_workers_live",
			Help: "Spawned workers not yet reaped.",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
