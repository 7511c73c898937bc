package middleware

import (
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/store"
)

// MetricsConfig configures the Prometheus metrics plugin.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vstore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for action duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics plugin.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vstore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors for one registerer.
type metrics struct {
	storesActive   prometheus.Gauge
	storesCreated  *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	actionErrors   *prometheus.CounterVec
	mutationsTotal *prometheus.CounterVec
}

// Collectors are registered once per registerer, so several registries
// (or repeated Prometheus calls) share them.
var (
	metricsMu  sync.Mutex
	metricsFor = map[prometheus.Registerer]*metrics{}
)

func initMetrics(config MetricsConfig) *metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if m, ok := metricsFor[config.Registry]; ok {
		return m
	}

	factory := promauto.With(config.Registry)
	m := &metrics{
		storesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stores_active",
			Help:        "Number of stores currently built",
			ConstLabels: config.ConstLabels,
		}),

		storesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stores_created_total",
			Help:        "Total number of store builds",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of store actions by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "status"}),

		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_duration_seconds",
			Help:        "Store action duration in seconds, until settled",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"store", "action"}),

		actionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_errors_total",
			Help:        "Total number of failed store actions by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "action", "error_type"}),

		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mutations_total",
			Help:        "Total number of state mutations reported to subscribers",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "type"}),
	}
	metricsFor[config.Registry] = m
	return m
}

// Prometheus returns a store plugin that collects metrics for every store
// built after it is registered.
//
// Metrics collected:
//   - vstore_stores_active: Gauge of built, not yet disposed stores
//   - vstore_stores_created_total: Counter of store builds by store
//   - vstore_actions_total: Counter of actions by store, action and status
//   - vstore_action_duration_seconds: Histogram of action duration
//   - vstore_action_errors_total: Counter of failed actions by error type
//   - vstore_mutations_total: Counter of mutations by store and type
//
// Example:
//
//	r := store.New()
//	r.Use(middleware.Prometheus(middleware.WithNamespace("myapp")))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) store.Plugin {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := initMetrics(config)

	return func(ctx store.PluginContext) map[string]any {
		id := ctx.Options.ID
		s := ctx.Store

		m.storesCreated.WithLabelValues(id).Inc()
		m.storesActive.Inc()
		s.OnDispose(m.storesActive.Dec)

		s.OnAction(func(ac *store.ActionContext) {
			start := time.Now()
			ac.After(func(any) any {
				m.actionDuration.WithLabelValues(id, ac.Name).Observe(time.Since(start).Seconds())
				m.actionsTotal.WithLabelValues(id, ac.Name, "success").Inc()
				return nil
			})
			ac.OnError(func(err error) {
				m.actionDuration.WithLabelValues(id, ac.Name).Observe(time.Since(start).Seconds())
				m.actionsTotal.WithLabelValues(id, ac.Name, "error").Inc()
				m.actionErrors.WithLabelValues(id, ac.Name, categorizeError(err)).Inc()
			})
		})

		s.Subscribe(func(mut store.Mutation, _ map[string]any) {
			m.mutationsTotal.WithLabelValues(id, string(mut.Type)).Inc()
		})
		return nil
	}
}

// categorizeError returns a low-cardinality label for err: the code of a
// coded error, "panic" for recovered panics, otherwise "internal".
func categorizeError(err error) string {
	var coded *errors.Error
	if stderrors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	if strings.HasPrefix(err.Error(), "panic:") {
		return "panic"
	}
	return "internal"
}
