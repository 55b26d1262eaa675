package processor

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
)

type parseProcessor struct {
	logger *slog.Logger
}

// NewParseProcessor creates the processor decoding the raw notification into a push event.
func NewParseProcessor(opts ...Option) Processor {
	_inst := &parseProcessor{}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *parseProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *parseProcessor) Process(_ context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "processor:parse")
	event, err := tagpush.Parse(bus.Body)
	if err != nil {
		logger.Warn("rejecting malformed push payload", slog.Any("error", err))
		bus.EventStatus = Rejected
		bus.Error = err
		return nil
	}
	bus.Event = event
	logger.Debug("parsed push event", slog.Any("event", event))
	return nil
}
