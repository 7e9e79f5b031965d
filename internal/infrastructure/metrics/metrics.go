// Package metrics exposes audit pipeline counters as Prometheus collectors.
// A scan run owns its own registry; the CLI writes it out in the node
// exporter textfile format once the run completes.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

const namespace = "jsaudit"

// Config configures the collectors.
type Config struct {
	Namespace   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	Registry    *prometheus.Registry
}

// Option configures the collectors.
type Option func(*Config)

// WithConstLabels adds constant labels to every series, e.g. the run id.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry registers the collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}

// WithBuckets sets the fetch duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// Recorder counts lookups, fetches and outcomes. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	outcomes      *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchErrors   *prometheus.CounterVec
	auditDuration prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(opts ...Option) *Recorder {
	cfg := Config{
		Namespace: namespace,
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(cfg.Registry)

	r := &Recorder{
		registry: cfg.Registry,

		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "outcomes_total",
			Help:        "Audited files by final status",
			ConstLabels: cfg.ConstLabels,
		}, []string{"status"}),

		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "catalog_lookups_total",
			Help:        "Catalog lookups by result (accepted or miss)",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "reference_fetch_duration_seconds",
			Help:        "Reference artifact download duration in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),

		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "reference_fetch_errors_total",
			Help:        "Failed reference downloads by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),

		auditDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "audit_duration_seconds",
			Help:        "Wall time of the last completed audit run",
			ConstLabels: cfg.ConstLabels,
		}),
	}

	// Pre-create every status so a clean run still exports zeros.
	for _, s := range library.AllStatuses {
		r.outcomes.WithLabelValues(string(s))
	}
	return r
}

// ObserveLookup counts one catalog lookup.
func (r *Recorder) ObserveLookup(accepted bool) {
	result := "miss"
	if accepted {
		result = "accepted"
	}
	r.lookups.WithLabelValues(result).Inc()
}

// ObserveFetch records a download attempt.
func (r *Recorder) ObserveFetch(d time.Duration, err error) {
	r.fetchDuration.Observe(d.Seconds())
	if err == nil {
		return
	}
	reason := "transport"
	if errors.Is(err, apperrors.ErrReferenceNotFound) {
		reason = "not_found"
	}
	r.fetchErrors.WithLabelValues(reason).Inc()
}

// ObserveOutcome counts a final outcome.
func (r *Recorder) ObserveOutcome(o library.Outcome) {
	r.outcomes.WithLabelValues(string(o.Status)).Inc()
}

// ObserveRun records the total run duration.
func (r *Recorder) ObserveRun(d time.Duration) {
	r.auditDuration.Set(d.Seconds())
}

// Gatherer returns the registry backing the recorder.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every collected series to path in the Prometheus text
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
