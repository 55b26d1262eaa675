package processor

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/pkg/errors"
)

type filterProcessor struct {
	logger *slog.Logger
}

// NewFilterProcessor creates the processor ending the chain for pushes that are not tag creations or updates.
func NewFilterProcessor(opts ...Option) Processor {
	_inst := &filterProcessor{}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *filterProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *filterProcessor) Process(_ context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "processor:filter")
	if bus.Event == nil {
		return NewInternalError("no push event on bus")
	}
	err := tagpush.Filter(bus.Event)
	if err == nil {
		return nil
	}
	var irrelevant *tagpush.IrrelevantEventError
	if !errors.As(err, &irrelevant) {
		return WrapInternalError(err, "filtering push event")
	}

	logger = logger.With(slog.String("reason", string(irrelevant.Reason)), slog.String("ref", irrelevant.Ref))
	if irrelevant.Reason == tagpush.MissingPusher {
		logger.Warn("ignoring push without a pusher")
	} else {
		logger.Debug("ignoring irrelevant push")
	}
	bus.EventStatus = Skipped
	return nil
}
