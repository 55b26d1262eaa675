package tagpush

import "fmt"

// Reason explains why an event was not acted on.
type Reason string

const (
	// NotATag marks pushes of refs outside refs/tags/.
	NotATag Reason = "not-a-tag"
	// Deleted marks tag deletions.
	Deleted Reason = "deleted"
	// MissingPusher marks pushes without a pusher name.
	MissingPusher Reason = "missing-pusher"
)

// IrrelevantEventError reports an event that ends the dispatch pass without consulting any job.
type IrrelevantEventError struct {
	Reason Reason
	Ref    string
}

func (e *IrrelevantEventError) Error() string {
	return fmt.Sprintf("irrelevant event for %q: %s", e.Ref, e.Reason)
}

// Filter returns an *IrrelevantEventError when e must not be dispatched, nil otherwise.
func Filter(e *PushEvent) error {
	if !IsTagRef(e.Ref) {
		return &IrrelevantEventError{Reason: NotATag, Ref: e.Ref}
	}
	if e.Deleted {
		return &IrrelevantEventError{Reason: Deleted, Ref: e.Ref}
	}
	if e.Pusher == "" {
		return &IrrelevantEventError{Reason: MissingPusher, Ref: e.Ref}
	}
	return nil
}
