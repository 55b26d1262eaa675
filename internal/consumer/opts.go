package consumer

import "log/slog"

// Option configures a Kafka consumer.
type Option func(*Kafka)

// WithLogger sets the logger instance for the consumer.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) {
		k.logger = logger
	}
}
