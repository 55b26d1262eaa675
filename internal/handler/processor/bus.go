package processor

import (
	"log/slog"

	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
)

// EventStatus is where a notification stands in the chain.
type EventStatus string

const (
	// Pending means the chain has not finished with the notification.
	Pending EventStatus = "pending"
	// Completed means every matched job was handed to the dispatcher.
	Completed EventStatus = "completed"
	// Skipped means the notification is irrelevant or matched no job.
	Skipped EventStatus = "skipped"
	// Rejected means the notification could not be decoded.
	Rejected EventStatus = "rejected"
	// Error means a processor failed.
	Error EventStatus = "error"
)

// Bus carries one notification through the chain.
type Bus struct {
	DeliveryID string
	Body       []byte

	Event   *tagpush.PushEvent
	Matches []trigger.Match
	Results dispatch.Results

	EventStatus EventStatus
	Error       error

	logger *slog.Logger
}

// NewBus creates a pending bus for body.
func NewBus(deliveryID string, body []byte) *Bus {
	return &Bus{DeliveryID: deliveryID, Body: body, EventStatus: Pending}
}

// Logger returns the logger of the pass carrying the bus.
func (b *Bus) Logger() *slog.Logger {
	if b.logger == nil {
		return helpers.NewNoopLogger()
	}
	return b.logger
}

// LogValue summarises the bus for structured logs.
func (b *Bus) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("deliveryId", b.DeliveryID),
		slog.String("status", string(b.EventStatus)),
	}
	if b.Event != nil {
		attrs = append(attrs, slog.Any("event", b.Event))
	}
	if b.Results != nil {
		attrs = append(attrs,
			slog.Int("scheduled", b.Results.Count(dispatch.StatusScheduled)),
			slog.Int("skipped", b.Results.Count(dispatch.StatusSkipped)),
			slog.Int("failed", b.Results.Count(dispatch.StatusFailed)),
		)
	}
	return slog.GroupValue(attrs...)
}
