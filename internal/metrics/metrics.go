// Package metrics defines the Prometheus collectors for a cart session.
//
// Every recording method is safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cartsync"

// Metrics holds the session collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsProcessed  *prometheus.CounterVec
	EventDuration    *prometheus.HistogramVec
	EventPanics      prometheus.Counter
	SnapshotsBad     prometheus.Counter
	EntriesDropped   prometheus.Counter
	ItemsExpired     prometheus.Counter
	CartTotal        prometheus.Gauge
	CartLines        *prometheus.GaugeVec
	ConnectionStatus *prometheus.GaugeVec
	CheckoutCommands *prometheus.CounterVec
	CheckoutPhase    *prometheus.GaugeVec
	FramesSent       prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events handled by the session loop, by kind.",
		}, []string{"kind"}),
		EventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling one event, by kind.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"kind"}),
		EventPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_panics_total",
			Help:      "Events whose handler panicked and was recovered.",
		}),
		SnapshotsBad: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_malformed_total",
			Help:      "Update messages whose top level could not be decoded.",
		}),
		EntriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_entries_dropped_total",
			Help:      "Individual product entries rejected by the normalizer.",
		}),
		ItemsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_expired_total",
			Help:      "Retained lines removed after the retention window elapsed.",
		}),
		CartTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_total",
			Help:      "Current cart total.",
		}),
		CartLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_lines",
			Help:      "Current cart lines, by state (active or retained).",
		}, []string{"state"}),
		ConnectionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_status",
			Help:      "1 for the current connection status, 0 otherwise.",
		}, []string{"status"}),
		CheckoutCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_commands_total",
			Help:      "Checkout commands, by operation and result code.",
		}, []string{"op", "result"}),
		CheckoutPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkout_phase",
			Help:      "1 for the current checkout phase, 0 otherwise.",
		}, []string{"phase"}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames handed to the transport.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped, by reason.",
		}, []string{"reason"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed notifications, by sink.",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsProcessed,
		m.EventDuration,
		m.EventPanics,
		m.SnapshotsBad,
		m.EntriesDropped,
		m.ItemsExpired,
		m.CartTotal,
		m.CartLines,
		m.ConnectionStatus,
		m.CheckoutCommands,
		m.CheckoutPhase,
		m.FramesSent,
		m.FramesDropped,
		m.PublishErrors,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveEvent(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind).Inc()
	m.EventDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) EventPanicked() {
	if m == nil {
		return
	}
	m.EventPanics.Inc()
}

// SnapshotNormalized records normalizer rejections for one message.
func (m *Metrics) SnapshotNormalized(dropped int, malformed bool) {
	if m == nil {
		return
	}
	if malformed {
		m.SnapshotsBad.Inc()
	}
	if dropped > 0 {
		m.EntriesDropped.Add(float64(dropped))
	}
}

func (m *Metrics) CartChanged(total float64, active, retained, expired int) {
	if m == nil {
		return
	}
	m.CartTotal.Set(total)
	m.CartLines.WithLabelValues("active").Set(float64(active))
	m.CartLines.WithLabelValues("retained").Set(float64(retained))
	if expired > 0 {
		m.ItemsExpired.Add(float64(expired))
	}
}

// SetConnection flips the status gauge to current among all.
func (m *Metrics) SetConnection(current string, all []string) {
	if m == nil {
		return
	}
	setOneHot(m.ConnectionStatus, current, all)
}

func (m *Metrics) CheckoutCommand(op, result string) {
	if m == nil {
		return
	}
	m.CheckoutCommands.WithLabelValues(op, result).Inc()
}

// SetPhase flips the phase gauge to current among all.
func (m *Metrics) SetPhase(current string, all []string) {
	if m == nil {
		return
	}
	setOneHot(m.CheckoutPhase, current, all)
}

func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.PublishErrors.WithLabelValues(sink).Inc()
}

func setOneHot(g *prometheus.GaugeVec, current string, all []string) {
	for _, v := range all {
		if v == current {
			g.WithLabelValues(v).Set(1)
		} else {
			g.WithLabelValues(v).Set(0)
		}
	}
}
