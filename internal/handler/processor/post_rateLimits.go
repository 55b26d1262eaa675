package processor

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
)

// RateLimitSource reports the GitHub API rate limit.
type RateLimitSource interface {
	RateLimits(ctx context.Context) (*github.Rate, error)
}

type rateLimitsPostProcessor struct {
	logger *slog.Logger
	source RateLimitSource
}

// NewRateLimitsPostProcessor creates the processor logging the GitHub rate limit, at most once a minute,
// after passes that scheduled builds.
func NewRateLimitsPostProcessor(source RateLimitSource, opts ...Option) Processor {
	_inst := &rateLimitsPostProcessor{source: source}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *rateLimitsPostProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *rateLimitsPostProcessor) Process(ctx context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "post-processor:rate-limits")
	if len(bus.Results) == 0 {
		logger.Debug("ignoring rate limits fetching for pass without builds")
		return nil
	}

	helpers.OnceAMinute.Do(func() {
		rate, err := p.source.RateLimits(ctx)
		if err != nil {
			logger.Warn("failed to fetch rate limits", slog.Any("error", err))
			return
		}
		logger.Info("rate limits fetched",
			slog.Int("limit", rate.Limit),
			slog.Int("remaining", rate.Remaining),
			slog.Time("reset", rate.Reset.Time))
	})
	return nil
}
