// Package exporter publishes archived heartbeats as Prometheus metrics.
package exporter

import (
	"net/http"
	"strconv"

	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/serializer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "heartbeat"

// StorageStats is the event storage view exported as gauges.
type StorageStats interface {
	Capacity() int
	Used() int
	Len() int
	Dropped() uint64
}

type Exporter struct {
	registry     *prometheus.Registry
	values       *prometheus.GaugeVec
	running      *prometheus.GaugeVec
	events       prometheus.Counter
	lastSequence prometheus.Gauge
}

// New registers the heartbeat collectors on a private registry. Runtime
// collectors are added only when withRuntime is set.
func New(withRuntime bool) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Exporter{
		registry: reg,
		values: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Value of each metric in the most recent heartbeat.",
		}, []string{"name", "type"}),
		running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timer_running",
			Help:      "Whether a timer metric was running when the heartbeat was taken.",
		}, []string{"name"}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Heartbeats archived since start.",
		}),
		lastSequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sequence",
			Help:      "Sequence number of the most recent heartbeat.",
		}),
	}
}

// Observe implements archive.Sink.
func (e *Exporter) Observe(event serializer.Event) {
	e.events.Inc()
	e.lastSequence.Set(float64(event.Sequence))

	for _, v := range event.Values {
		e.values.WithLabelValues(v.Name, v.Type.String()).Set(float64(v.Int64()))
		if v.Type == heartbeat.Timer {
			e.running.WithLabelValues(v.Name).Set(boolToFloat(v.Running))
		}
	}
}

// WatchStorage exports the fill level of event storage.
func (e *Exporter) WatchStorage(s StorageStats) {
	capacity := strconv.Itoa(s.Capacity())
	factory := promauto.With(e.registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "storage_used_bytes",
		Help:        "Bytes of event storage holding undrained heartbeats.",
		ConstLabels: prometheus.Labels{"capacity": capacity},
	}, func() float64 { return float64(s.Used()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "storage_events",
		Help:      "Undrained heartbeats in event storage.",
	}, func() float64 { return float64(s.Len()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_dropped_total",
		Help:      "Heartbeats rejected because event storage was full.",
	}, func() float64 { return float64(s.Dropped()) })
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
