package tmrm

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
// The metric package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordProxyCreate is called after each proxy allocation.
	RecordProxyCreate(duration time.Duration, err error)

	// RecordPropertyAdd is called after each property write.
	RecordPropertyAdd(duration time.Duration, err error)

	// RecordPropertyLookup is called after each property read.
	// results is the number of properties returned.
	RecordPropertyLookup(results int, duration time.Duration, err error)

	// RecordImport is called after each ontology import.
	RecordImport(bound, skipped int, duration time.Duration, err error)

	// RecordExport is called after each subject map export.
	RecordExport(proxies int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordProxyCreate(time.Duration, error)         {}
func (NoopMetricsCollector) RecordPropertyAdd(time.Duration, error)         {}
func (NoopMetricsCollector) RecordPropertyLookup(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordImport(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordExport(int, time.Duration, error)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ProxyCreateCount   atomic.Int64
	ProxyCreateErrors  atomic.Int64
	PropertyAddCount   atomic.Int64
	PropertyAddErrors  atomic.Int64
	PropertyAddNanos   atomic.Int64
	LookupCount        atomic.Int64
	LookupErrors       atomic.Int64
	LookupResults      atomic.Int64
	LookupTotalNanos   atomic.Int64
	ImportCount        atomic.Int64
	ImportErrors       atomic.Int64
	ImportBound        atomic.Int64
	ImportSkipped      atomic.Int64
	ExportCount        atomic.Int64
	ExportErrors       atomic.Int64
	ExportProxiesTotal atomic.Int64
}

// RecordProxyCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProxyCreate(_ time.Duration, err error) {
	b.ProxyCreateCount.Add(1)
	if err != nil {
		b.ProxyCreateErrors.Add(1)
	}
}

// RecordPropertyAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPropertyAdd(duration time.Duration, err error) {
	b.PropertyAddCount.Add(1)
	b.PropertyAddNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PropertyAddErrors.Add(1)
	}
}

// RecordPropertyLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPropertyLookup(results int, duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupResults.Add(int64(results))
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordImport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordImport(bound, skipped int, _ time.Duration, err error) {
	b.ImportCount.Add(1)
	b.ImportBound.Add(int64(bound))
	b.ImportSkipped.Add(int64(skipped))
	if err != nil {
		b.ImportErrors.Add(1)
	}
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(proxies int, _ time.Duration, err error) {
	b.ExportCount.Add(1)
	b.ExportProxiesTotal.Add(int64(proxies))
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ProxyCreateCount:  b.ProxyCreateCount.Load(),
		ProxyCreateErrors: b.ProxyCreateErrors.Load(),
		PropertyAddCount:  b.PropertyAddCount.Load(),
		PropertyAddErrors: b.PropertyAddErrors.Load(),
		PropertyAddAvgNs:  avg(b.PropertyAddNanos.Load(), b.PropertyAddCount.Load()),
		LookupCount:       b.LookupCount.Load(),
		LookupErrors:      b.LookupErrors.Load(),
		LookupResults:     b.LookupResults.Load(),
		LookupAvgNs:       avg(b.LookupTotalNanos.Load(), b.LookupCount.Load()),
		ImportCount:       b.ImportCount.Load(),
		ImportErrors:      b.ImportErrors.Load(),
		ImportBound:       b.ImportBound.Load(),
		ImportSkipped:     b.ImportSkipped.Load(),
		ExportCount:       b.ExportCount.Load(),
		ExportErrors:      b.ExportErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ProxyCreateCount  int64
	ProxyCreateErrors int64
	PropertyAddCount  int64
	PropertyAddErrors int64
	PropertyAddAvgNs  int64
	LookupCount       int64
	LookupErrors      int64
	LookupResults     int64
	LookupAvgNs       int64
	ImportCount       int64
	ImportErrors      int64
	ImportBound       int64
	ImportSkipped     int64
	ExportCount       int64
	ExportErrors      int64
}
