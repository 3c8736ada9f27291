// Package metric exports subject map metrics to Prometheus.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/tmrm"
)

var _ tmrm.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements tmrm.MetricsCollector.
type PrometheusCollector struct {
	opLatency     *prometheus.HistogramVec
	lookupResults prometheus.Histogram
	aliases       *prometheus.CounterVec
	exported      prometheus.Counter
}

// NewPrometheusCollector creates a collector and registers it with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tmrm_operation_latency_seconds",
			Help:    "Latency of subject map operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		lookupResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tmrm_lookup_results",
			Help:    "Properties returned per lookup",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		aliases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tmrm_import_aliases_total",
			Help: "Aliases seen by ontology imports",
		}, []string{"result"}),
		exported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tmrm_exported_proxies_total",
			Help: "Proxies written by exports",
		}),
	}

	for _, col := range []prometheus.Collector{c.opLatency, c.lookupResults, c.aliases, c.exported} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *PrometheusCollector) observe(op string, d time.Duration, err error) {
	c.opLatency.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

// RecordProxyCreate implements tmrm.MetricsCollector.
func (c *PrometheusCollector) RecordProxyCreate(d time.Duration, err error) {
	c.observe("proxy_create", d, err)
}

// RecordPropertyAdd implements tmrm.MetricsCollector.
func (c *PrometheusCollector) RecordPropertyAdd(d time.Duration, err error) {
	c.observe("property_add", d, err)
}

// RecordPropertyLookup implements tmrm.MetricsCollector.
func (c *PrometheusCollector) RecordPropertyLookup(results int, d time.Duration, err error) {
	c.observe("property_lookup", d, err)
	if err == nil {
		c.lookupResults.Observe(float64(results))
	}
}

// RecordImport implements tmrm.MetricsCollector.
func (c *PrometheusCollector) RecordImport(bound, skipped int, d time.Duration, err error) {
	c.observe("import", d, err)
	c.aliases.WithLabelValues("bound").Add(float64(bound))
	c.aliases.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordExport implements tmrm.MetricsCollector.
func (c *PrometheusCollector) RecordExport(proxies int, d time.Duration, err error) {
	c.observe("export", d, err)
	c.exported.Add(float64(proxies))
}

// Aliases returns the alias counter for result, "bound" or "skipped".
func (c *PrometheusCollector) Aliases(result string) prometheus.Counter {
	return c.aliases.WithLabelValues(result)
}
