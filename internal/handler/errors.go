package handler

import "fmt"

// UnhandledEventTypeError is returned for deliveries of events other than push.
type UnhandledEventTypeError struct {
	EventType string
}

func (m *UnhandledEventTypeError) Error() string {
	return fmt.Sprintf("unhandled event type: %s", m.EventType)
}
