package trigger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
)

// Cause describes why a build was started. It is built once per matched (event, job) pair and never modified.
type Cause struct {
	ref     string
	tag     string
	pusher  string
	payload []byte
}

// NewCause builds the cause for a push event.
func NewCause(event *tagpush.PushEvent) *Cause {
	return &Cause{
		ref:     event.Ref,
		tag:     event.Tag,
		pusher:  event.Pusher,
		payload: event.RawPayload(),
	}
}

// Ref returns the fully-qualified ref that was pushed.
func (c *Cause) Ref() string { return c.ref }

// Tag returns the pushed tag name.
func (c *Cause) Tag() string { return c.tag }

// Pusher returns the name of the user who pushed.
func (c *Cause) Pusher() string { return c.pusher }

// Payload returns a copy of the raw notification the cause was built from.
func (c *Cause) Payload() []byte {
	if c.payload == nil {
		return nil
	}
	return append([]byte(nil), c.payload...)
}

// ShortDescription renders the cause for humans. Missing values render as empty strings.
func (c *Cause) ShortDescription() string {
	var pusher, ref string
	if c != nil {
		pusher, ref = strings.TrimSpace(c.pusher), strings.TrimSpace(c.ref)
	}
	return fmt.Sprintf("Started by push by %s for %s", pusher, ref)
}

// Record returns the part of the cause that is always persisted with a run.
func (c *Cause) Record() CauseRecord {
	return CauseRecord{
		Ref:         c.ref,
		Tag:         c.tag,
		Pusher:      c.pusher,
		Description: c.ShortDescription(),
	}
}

// Parameters returns the three injected build parameters.
func (c *Cause) Parameters() []Parameter {
	return []Parameter{
		{Name: ParamPusher, Value: c.pusher},
		{Name: ParamTag, Value: c.tag},
		{Name: ParamRef, Value: c.ref},
	}
}

func (c *Cause) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ref", c.ref),
		slog.String("tag", c.tag),
		slog.String("pusher", c.pusher),
	)
}

// CauseRecord is the immutable cause stored alongside a scheduled run.
// The raw payload is persisted separately, on a best-effort basis.
type CauseRecord struct {
	Ref         string `json:"ref"`
	Tag         string `json:"tag"`
	Pusher      string `json:"pusher"`
	Description string `json:"description"`
}
