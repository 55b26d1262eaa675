package dispatch

import (
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithQuietPeriod sets the queue delay requested for every build.
func WithQuietPeriod(period time.Duration) Option {
	return func(d *Dispatcher) {
		d.quietPeriod = period
	}
}

// WithTimeout bounds each schedule call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithConcurrency sets how many jobs are scheduled at once. Values below one mean one.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}
