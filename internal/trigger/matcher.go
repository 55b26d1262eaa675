package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	lru "github.com/hashicorp/golang-lru"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
)

// PatternError reports a job whose trigger regex does not compile.
type PatternError struct {
	Job     string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("job %s: invalid tag pattern %q: %v", e.Job, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Match is a job selected for a push event together with the cause its build will carry.
type Match struct {
	Job   Job
	Cause *Cause
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMatcherLogger sets the logger used for per-job decisions.
func WithMatcherLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithPatternCache caches up to size compiled patterns, keyed by pattern text. A size of zero disables caching.
func WithPatternCache(size int) MatcherOption {
	return func(m *Matcher) {
		m.cacheSize = size
	}
}

// Matcher selects the jobs of a registry snapshot that a push event should start.
// It never mutates the snapshot and never schedules anything.
type Matcher struct {
	logger    *slog.Logger
	cacheSize int
	patterns  *lru.Cache
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...MatcherOption) *Matcher {
	_inst := &Matcher{logger: helpers.NewNoopLogger()}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.cacheSize > 0 {
		// lru.New only fails on a non-positive size
		_inst.patterns, _ = lru.New(_inst.cacheSize)
	}
	return _inst
}

// Match evaluates every job of snapshot against event, in snapshot order.
// A job whose pattern fails to compile is logged and skipped; the remaining jobs are still evaluated.
func (m *Matcher) Match(_ context.Context, event *tagpush.PushEvent, snapshot []Job) []Match {
	var matches []Match
	for _, job := range snapshot {
		logger := m.logger.With(slog.String("job", job.Name()))

		cfg, ok := job.TriggerConfig()
		if !ok {
			logger.Debug("skipped job without tag trigger")
			continue
		}
		if !slices.Contains(job.Repositories(), event.Repository) {
			logger.Debug("skipped job without a matching repository", slog.String("repository", event.Repository.String()))
			continue
		}
		re, err := m.compile(cfg.Regex)
		if err != nil {
			logger.Error("failed to evaluate tag pattern", slog.Any("error", &PatternError{Job: job.Name(), Pattern: cfg.Regex, Err: err}))
			continue
		}
		if !re.MatchString(event.Tag) {
			logger.Debug("skipped job without a matching tag pattern", slog.String("tag", event.Tag), slog.String("pattern", cfg.Regex))
			continue
		}

		logger.Info("matched job", slog.String("tag", event.Tag))
		matches = append(matches, Match{Job: job, Cause: NewCause(event)})
	}
	return matches
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if m.patterns == nil {
		return regexp.Compile(pattern)
	}
	if cached, ok := m.patterns.Get(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.patterns.Add(pattern, re)
	return re, nil
}
