package shardcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "beacon"
	subsystem = "shardcache"
)

// Metrics exports cache counters to Prometheus. One Metrics value may be
// shared by several caches; series are labelled by [Options.Name].
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Registry holds every collector below. It is private to this Metrics
	// value so tests and CLI runs never collide on the global registry.
	Registry *prometheus.Registry

	loads          *prometheus.CounterVec
	hits           *prometheus.CounterVec
	evictions      *prometheus.CounterVec
	openFailures   *prometheus.CounterVec
	malformedTails *prometheus.CounterVec
	records        *prometheus.CounterVec
	resident       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			[]string{"cache"},
		)
	}

	m := &Metrics{
		Registry:       prometheus.NewRegistry(),
		loads:          counter("loads_total", "Shards decoded from disk, including reloads after eviction."),
		hits:           counter("hits_total", "Shard lookups served from resident content."),
		evictions:      counter("evictions_total", "Shard contents dropped to honour the residency limit."),
		openFailures:   counter("open_failures_total", "Shards that could not be opened and contributed no records."),
		malformedTails: counter("malformed_tails_total", "Shards whose trailing record was truncated or corrupt."),
		records:        counter("records_decoded_total", "Records decoded from disk."),
		resident: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "resident_shards",
				Help:      "Shards whose content is currently in memory.",
			},
			[]string{"cache"},
		),
	}

	m.Registry.MustRegister(m.loads, m.hits, m.evictions, m.openFailures, m.malformedTails, m.records, m.resident)

	return m
}

// WriteTextfile writes every metric in the text exposition format to path,
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *Metrics) loaded(cache string, records int) {
	if m == nil {
		return
	}

	m.loads.WithLabelValues(cache).Inc()
	m.records.WithLabelValues(cache).Add(float64(records))
}

func (m *Metrics) hit(cache string) {
	if m == nil {
		return
	}

	m.hits.WithLabelValues(cache).Inc()
}

func (m *Metrics) evicted(cache string) {
	if m == nil {
		return
	}

	m.evictions.WithLabelValues(cache).Inc()
}

func (m *Metrics) openFailed(cache string) {
	if m == nil {
		return
	}

	m.openFailures.WithLabelValues(cache).Inc()
}

func (m *Metrics) malformedTail(cache string) {
	if m == nil {
		return
	}

	m.malformedTails.WithLabelValues(cache).Inc()
}

func (m *Metrics) setResident(cache string, n int) {
	if m == nil {
		return
	}

	m.resident.WithLabelValues(cache).Set(float64(n))
}
