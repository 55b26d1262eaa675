package processor

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
)

// Dispatcher schedules matched jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, matches []trigger.Match) dispatch.Results
}

type dispatchProcessor struct {
	logger     *slog.Logger
	dispatcher Dispatcher
}

// NewDispatchProcessor creates the processor scheduling one build per match.
// Per-job failures are logged and never fail the chain.
func NewDispatchProcessor(dispatcher Dispatcher, opts ...Option) Processor {
	_inst := &dispatchProcessor{dispatcher: dispatcher}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *dispatchProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *dispatchProcessor) Process(ctx context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "processor:dispatch")
	bus.Results = p.dispatcher.Dispatch(ctx, bus.Matches)

	logger = logger.With(
		slog.Int("scheduled", bus.Results.Count(dispatch.StatusScheduled)),
		slog.Int("skipped", bus.Results.Count(dispatch.StatusSkipped)),
		slog.Int("failed", bus.Results.Count(dispatch.StatusFailed)))
	if err := bus.Results.Err(); err != nil {
		logger.Warn("dispatch pass finished with failures", slog.Any("error", err))
		return nil
	}
	logger.Info("dispatch pass finished")
	return nil
}
