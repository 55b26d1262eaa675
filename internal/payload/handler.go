package payload

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/pkg/errors"
)

// RunIDParam is the route parameter carrying the run ID.
const RunIDParam = "runID"

// Handler serves stored payloads. Mount it on a route with a {runID} parameter.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	return &Handler{store: store, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, RunIDParam)
	rc, err := h.store.Get(r.Context(), runID)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("failed to read payload", slog.String("run", runID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err = io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream payload", slog.String("run", runID), slog.Any("error", err))
	}
}
