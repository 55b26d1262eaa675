// Package handler turns inbound push notifications into dispatch passes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/handler/processor"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/models"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
)

// PingEventType is the event GitHub sends when a webhook is created.
const PingEventType = "ping"

// Option configures a Handler.
type Option func(*Handler)

// Handler runs the processor chain for each notification.
type Handler struct {
	logger     *slog.Logger
	processors []processor.Processor
}

// Summary is the body returned to the sender of a notification.
type Summary struct {
	DeliveryID string `json:"deliveryId,omitempty"`
	Status     string `json:"status"`
	Scheduled  int    `json:"scheduled"`
}

// NewHandler creates a Handler running processors, in order, for each notification.
func NewHandler(processors []processor.Processor, opts ...Option) *Handler {
	_inst := &Handler{processors: processors}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	return _inst
}

// Handle runs one dispatch pass over body. It never fails: every outcome is recorded on the returned bus.
func (h *Handler) Handle(ctx context.Context, deliveryID string, body []byte) *processor.Bus {
	logger := h.logger.With(slog.String("deliveryId", deliveryID))
	bus := processor.NewBus(deliveryID, body)
	if err := processor.Process(ctx, logger, bus, h.processors...); err != nil {
		logger.Error("push event processing failed", slog.Any("error", err))
	}
	logger.Info("push event processed", slog.Any("bus", bus))
	return bus
}

// Process handles a webhook delivery. headers must be keyed in lower case.
// Once a push payload was received the sender is told it was accepted, whatever happens downstream.
func (h *Handler) Process(ctx context.Context, body []byte, headers map[string]string) (models.Response, error) {
	deliveryID := headers[strings.ToLower(github.DeliveryIDHeader)]
	eventType, found := headers[strings.ToLower(github.EventTypeHeader)]
	switch {
	case !found:
		h.logger.Debug("missing event type; assuming push", slog.String("deliveryId", deliveryID))
	case eventType == PingEventType:
		return models.Response{Body: `{"status":"pong"}`, StatusCode: http.StatusOK}, nil
	case eventType != tagpush.EventType:
		h.logger.Warn("rejecting unhandled event type", slog.String("event", eventType), slog.String("deliveryId", deliveryID))
		return models.Response{Body: "unhandled event type", StatusCode: http.StatusBadRequest}, &UnhandledEventTypeError{EventType: eventType}
	}

	bus := h.Handle(ctx, deliveryID, body)
	summary := Summary{
		DeliveryID: deliveryID,
		Status:     string(bus.EventStatus),
		Scheduled:  bus.Results.Count(dispatch.StatusScheduled),
	}
	out, _ := json.Marshal(summary)
	return models.Response{Body: string(out), StatusCode: http.StatusAccepted}, nil
}
