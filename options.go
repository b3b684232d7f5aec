package crewkit

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger  *zap.Logger
	now     Clock
	metrics *Metrics
}

// Option configures the Service and its components.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics sets the Prometheus collectors. Defaults to unregistered collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return o
}
