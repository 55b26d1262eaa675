package processor

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/trigger"
)

type matchProcessor struct {
	logger   *slog.Logger
	registry trigger.Registry
	matcher  *trigger.Matcher
}

// NewMatchProcessor creates the processor selecting the jobs a tag push starts.
// The registry is read once per notification, with system privilege.
func NewMatchProcessor(registry trigger.Registry, matcher *trigger.Matcher, opts ...Option) Processor {
	_inst := &matchProcessor{registry: registry, matcher: matcher}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *matchProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *matchProcessor) Process(ctx context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "processor:match")
	if bus.Event == nil {
		return NewInternalError("no push event on bus")
	}
	snapshot, err := p.registry.Snapshot(ctx, trigger.SystemContext)
	if err != nil {
		return WrapInternalError(err, "reading job registry")
	}
	candidates := trigger.WithTrigger(snapshot)
	bus.Matches = p.matcher.Match(ctx, bus.Event, candidates)

	logger.Info("evaluated tag triggers",
		slog.String("tag", bus.Event.Tag),
		slog.String("repository", bus.Event.Repository.String()),
		slog.Int("candidates", len(candidates)),
		slog.Int("matches", len(bus.Matches)))
	if len(bus.Matches) == 0 {
		bus.EventStatus = Skipped
	}
	return nil
}
