package annex

import (
	"log/slog"

	"github.com/hupe1980/annex/blobstore"
	"github.com/hupe1980/annex/persistence"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	store            blobstore.BlobStore
	persistence      []persistence.Option
}

// Option configures New, OpenOrCreate and Read.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
//	logger := annex.NewJSONLogger(slog.LevelInfo)
//	idx, _ := annex.OpenOrCreate(ctx, cfg, annex.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithStore sets where Config.Path is resolved. The default is the local
// filesystem, with Path used as a file path.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithPersistenceOptions passes options such as IO limits to the persistence manager.
func WithPersistenceOptions(opts ...persistence.Option) Option {
	return func(o *options) {
		o.persistence = append(o.persistence, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
