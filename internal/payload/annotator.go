package payload

import (
	"context"
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/helpers"
)

// Annotator attaches the raw payload to a newly scheduled run. Failures are logged and never reach the build.
type Annotator struct {
	store  Store
	logger *slog.Logger
}

func NewAnnotator(store Store, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	return &Annotator{store: store, logger: logger.With(slog.String("component", "payload"))}
}

func (a *Annotator) Attach(ctx context.Context, runID string, payload []byte) {
	logger := a.logger.With(slog.String("run", runID))
	if payload == nil {
		logger.Warn("no payload to attach to run")
		return
	}
	if err := a.store.Put(ctx, runID, payload); err != nil {
		logger.Warn("failed to store payload; the build proceeds without it", slog.Any("error", err))
		return
	}
	logger.Debug("payload stored", slog.Int("bytes", len(payload)))
}
