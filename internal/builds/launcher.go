package builds

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/trigger"
)

// LogLauncher records launches in the log and does nothing else.
type LogLauncher struct {
	logger *slog.Logger
}

func NewLogLauncher(logger *slog.Logger) *LogLauncher {
	return &LogLauncher{logger: logger}
}

func (l *LogLauncher) Launch(ctx context.Context, job trigger.Job, run trigger.ScheduledRun) error {
	l.logger.InfoContext(ctx, "launching run",
		slog.String("job", job.Name()),
		slog.String("run", run.ID),
		slog.String("cause", run.Cause.Description),
		slog.Any("parameters", run.Parameters),
	)
	return nil
}
