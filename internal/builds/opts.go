package builds

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// ErrQueueClosed is returned by Schedule after Close.
var ErrQueueClosed = errors.New("build queue is closed")

// DefaultAnnotateTimeout bounds each payload annotation.
const DefaultAnnotateTimeout = 30 * time.Second

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithLauncher sets the launcher runs are handed to. Defaults to a LogLauncher.
func WithLauncher(launcher Launcher) Option {
	return func(q *Queue) {
		q.launcher = launcher
	}
}

// WithAnnotator sets the annotator that receives the raw payload of each new run.
func WithAnnotator(annotator Annotator) Option {
	return func(q *Queue) {
		q.annotator = annotator
	}
}

// WithAnnotateTimeout bounds each call to the annotator.
func WithAnnotateTimeout(timeout time.Duration) Option {
	return func(q *Queue) {
		if timeout > 0 {
			q.annotateTimeout = timeout
		}
	}
}

// WithClock overrides the queue's time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}
