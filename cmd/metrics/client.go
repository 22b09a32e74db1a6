package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kcearns/landing-server/cmd/config"
	"github.com/kcearns/landing-server/cmd/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client interface for metrics collection
type Client interface {
	Incr(name string, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Handler() http.Handler
	Close() error
}

// PrometheusClient wraps Prometheus metrics registered on a private registry
type PrometheusClient struct {
	namespace string
	registry  *prometheus.Registry

	mu        sync.Mutex
	counters  map[string]*prometheus.CounterVec
	gauges    map[string]*prometheus.GaugeVec
	summaries map[string]*prometheus.SummaryVec
}

// NoOpClient is a no-op implementation of the Client interface
type NoOpClient struct{}

func (c *NoOpClient) Incr(name string, tags []string, rate float64) error { return nil }
func (c *NoOpClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	return nil
}
func (c *NoOpClient) Gauge(name string, value float64, tags []string, rate float64) error {
	return nil
}
func (c *NoOpClient) Handler() http.Handler { return http.NotFoundHandler() }
func (c *NoOpClient) Close() error          { return nil }

// NewClient creates a new metrics client based on configuration
func NewClient(cfg *config.MetricsConfig) (Client, error) {
	if !cfg.Enabled {
		logger.Info("metrics collection disabled")
		return &NoOpClient{}, nil
	}

	logger.Info("metrics collection enabled (Prometheus)", "namespace", cfg.Namespace)

	return NewPrometheusClient(cfg.Namespace), nil
}

// NewPrometheusClient creates a client with Go runtime and process collectors registered
func NewPrometheusClient(namespace string) *PrometheusClient {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PrometheusClient{
		namespace: namespace,
		registry:  registry,
		counters:  make(map[string]*prometheus.CounterVec),
		gauges:    make(map[string]*prometheus.GaugeVec),
		summaries: make(map[string]*prometheus.SummaryVec),
	}
}

// parseTags converts tag array ["key:value", "key2:value2"] to label names and values
func parseTags(tags []string) ([]string, []string) {
	if len(tags) == 0 {
		return []string{}, []string{}
	}

	labelNames := make([]string, 0, len(tags))
	labelValues := make([]string, 0, len(tags))

	for _, tag := range tags {
		name, value, ok := strings.Cut(tag, ":")
		if !ok {
			continue
		}
		labelNames = append(labelNames, name)
		labelValues = append(labelValues, value)
	}

	return labelNames, labelValues
}

// metricName maps dotted names ("http.requests_total") to Prometheus names
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func (c *PrometheusClient) Incr(name string, tags []string, rate float64) error {
	labelNames, labelValues := parseTags(tags)

	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: c.namespace,
				Name:      metricName(name),
				Help:      name,
			},
			labelNames,
		)
		if err := c.registry.Register(counter); err != nil {
			c.mu.Unlock()
			return err
		}
		c.counters[name] = counter
	}
	c.mu.Unlock()

	m, err := counter.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return err
	}
	m.Add(rate)
	return nil
}

func (c *PrometheusClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	labelNames, labelValues := parseTags(tags)

	c.mu.Lock()
	summary, ok := c.summaries[name]
	if !ok {
		summary = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  c.namespace,
				Name:       metricName(name),
				Help:       name,
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			labelNames,
		)
		if err := c.registry.Register(summary); err != nil {
			c.mu.Unlock()
			return err
		}
		c.summaries[name] = summary
	}
	c.mu.Unlock()

	m, err := summary.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return err
	}
	m.Observe(value.Seconds())
	return nil
}

func (c *PrometheusClient) Gauge(name string, value float64, tags []string, rate float64) error {
	labelNames, labelValues := parseTags(tags)

	c.mu.Lock()
	gauge, ok := c.gauges[name]
	if !ok {
		gauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: c.namespace,
				Name:      metricName(name),
				Help:      name,
			},
			labelNames,
		)
		if err := c.registry.Register(gauge); err != nil {
			c.mu.Unlock()
			return err
		}
		c.gauges[name] = gauge
	}
	c.mu.Unlock()

	m, err := gauge.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return err
	}
	m.Set(value)
	return nil
}

// Handler serves the registry in the Prometheus exposition format
func (c *PrometheusClient) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *PrometheusClient) Close() error {
	return nil
}
