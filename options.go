package tmrm

import (
	"log/slog"

	"github.com/hupe1980/tmrm/storage"
)

// DefaultLabelAlias is the alias whose proxy keys label literals.
const DefaultLabelAlias = "item_identifier"

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	labelAlias       string
	factories        map[string]storage.Factory
}

// Option configures a Sphere and the subject maps created in it.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tmrm.BasicMetricsCollector{}
//	sphere := tmrm.NewSphere(tmrm.WithMetricsCollector(metrics))
//	// ... use sphere ...
//	stats := metrics.GetStats()
//	fmt.Printf("Properties: %d, avg latency: %dns\n", stats.PropertyAddCount, stats.PropertyAddAvgNs)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tmrm.NewJSONLogger(slog.LevelInfo)
//	sphere := tmrm.NewSphere(tmrm.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithLabelAlias selects the bottom proxy whose literals are proxy labels.
// Default: DefaultLabelAlias
func WithLabelAlias(alias string) Option {
	return func(o *options) {
		o.labelAlias = alias
	}
}

// WithStorageFactory registers a storage backend under name.
//
//	sphere := tmrm.NewSphere(tmrm.WithStorageFactory(logstore.Name, logstore.Open))
func WithStorageFactory(name string, f storage.Factory) Option {
	return func(o *options) {
		o.factories[name] = f
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		labelAlias:       DefaultLabelAlias,
		factories:        make(map[string]storage.Factory),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
