package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the bootstrap layer.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Registry build metrics
	BuildDuration   prometheus.Histogram
	BuildFailures   prometheus.Counter
	RegistryEntries prometheus.Gauge

	// Resolution metrics
	Resolutions            *prometheus.CounterVec
	SingletonConstructions *prometheus.CounterVec

	// Config store metrics
	ConfigOperations *prometheus.CounterVec
	ConfigDuration   *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	buildDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_build_duration_seconds",
			Help:      "Time spent running the registration phases",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	buildFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_build_failures_total",
			Help:      "Total number of failed registry builds",
		},
	)

	registryEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Number of keys in the most recently built registry",
		},
	)

	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of registry resolutions",
		},
		[]string{"key", "lifetime", "outcome"},
	)

	singletonConstructions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleton_constructions_total",
			Help:      "Total number of singleton instances constructed",
		},
		[]string{"key"},
	)

	configOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_operations_total",
			Help:      "Total number of config slot operations",
		},
		[]string{"operation", "outcome"},
	)

	configDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "config_operation_duration_seconds",
			Help:      "Config slot operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		buildDuration,
		buildFailures,
		registryEntries,
		resolutions,
		singletonConstructions,
		configOperations,
		configDuration,
	)

	return &Collector{
		registry:               registry,
		BuildDuration:          buildDuration,
		BuildFailures:          buildFailures,
		RegistryEntries:        registryEntries,
		Resolutions:            resolutions,
		SingletonConstructions: singletonConstructions,
		ConfigOperations:       configOperations,
		ConfigDuration:         configDuration,
	}
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordBuild records the outcome of one registry build.
func (c *Collector) RecordBuild(duration time.Duration, entries int, err error) {
	if c == nil {
		return
	}
	c.BuildDuration.Observe(duration.Seconds())
	if err != nil {
		c.BuildFailures.Inc()
		return
	}
	c.RegistryEntries.Set(float64(entries))
}

// RecordResolve records one resolution of key.
func (c *Collector) RecordResolve(key, lifetime string, err error) {
	if c == nil {
		return
	}
	c.Resolutions.WithLabelValues(key, lifetime, outcome(err)).Inc()
}

// RecordSingletonConstruction records that a singleton instance was built for key.
func (c *Collector) RecordSingletonConstruction(key string) {
	if c == nil {
		return
	}
	c.SingletonConstructions.WithLabelValues(key).Inc()
}

// RecordConfigOperation records a config slot load or save.
func (c *Collector) RecordConfigOperation(operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.ConfigOperations.WithLabelValues(operation, outcome(err)).Inc()
	c.ConfigDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
