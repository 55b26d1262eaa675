// Package processor provides the ordered chain of processors a push notification flows through.
package processor

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/helpers"
)

// Option is a function that applies an option to a Processor.
type Option = func(Processor)

// Processor is one step of the chain. Processors are shared by concurrent passes and must not
// keep per-pass state; anything specific to a notification lives on the Bus.
// Returning an error aborts the chain; setting a terminal bus status ends it quietly.
type Processor interface {
	SetLogger(logger *slog.Logger)
	Process(ctx context.Context, bus *Bus) error
}

// WithLogger sets the logger of a processor. Without it the processor logs through the pass logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p Processor) {
		p.SetLogger(logger)
	}
}

// Process runs bus through processors, in order, until one fails or ends the chain.
func Process(ctx context.Context, logger *slog.Logger, bus *Bus, processors ...Processor) error {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	bus.logger = logger
	for _, p := range processors {
		if err := p.Process(ctx, bus); err != nil {
			bus.EventStatus = Error
			bus.Error = err
			return err
		}
		if bus.EventStatus != Pending {
			break
		}
	}
	if bus.EventStatus == Pending {
		bus.EventStatus = Completed
	}
	return nil
}

// loggerFor returns the logger a processor uses for bus, under group.
func loggerFor(own *slog.Logger, bus *Bus, group string) *slog.Logger {
	if own == nil {
		return bus.Logger().WithGroup(group)
	}
	return own.With(slog.String("deliveryId", bus.DeliveryID)).WithGroup(group)
}

func applyOpts(m Processor, opts ...Option) {
	for _, opt := range opts {
		opt(m)
	}
}
