// Package tagpush decodes GitHub push notifications and decides whether they concern a tag.
package tagpush

import (
	"log/slog"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/pkg/errors"
)

// EventType is the GitHub event name of push notifications.
const EventType = "push"

// TagPrefix is the fully-qualified prefix of tag refs.
const TagPrefix = "refs/tags/"

// ErrMalformedPayload is returned when a notification lacks a required field or cannot be decoded.
var ErrMalformedPayload = errors.New("malformed push payload")

// PushEvent is the parsed form of a push notification. It is not modified after Parse returns.
type PushEvent struct {
	Ref        string
	Tag        string
	Pusher     string
	Deleted    bool
	Repository RepoRef

	rawPayload []byte
}

// RawPayload returns a copy of the bytes the event was parsed from.
func (e *PushEvent) RawPayload() []byte {
	if e.rawPayload == nil {
		return nil
	}
	return append([]byte(nil), e.rawPayload...)
}

// LogValue renders the event for structured logs without the raw payload.
func (e *PushEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("ref", e.Ref),
		slog.String("pusher", e.Pusher),
		slog.Bool("deleted", e.Deleted),
		slog.String("repository", e.Repository.String()),
	)
}

// Parse decodes body into a PushEvent.
// The ref, deleted, pusher and repository.url keys are mandatory and the repository url must name a repository.
// A present pusher with an empty name is accepted here and rejected by Filter.
func Parse(body []byte) (*PushEvent, error) {
	raw, err := github.ParseWebHook(EventType, body)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedPayload, "decoding: %v", err)
	}
	e, ok := raw.(*github.PushEvent)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPayload, "unexpected event type %T", raw)
	}

	switch {
	case e.Ref == nil:
		return nil, errors.Wrap(ErrMalformedPayload, "missing ref")
	case e.Deleted == nil:
		return nil, errors.Wrap(ErrMalformedPayload, "missing deleted")
	case e.Pusher == nil:
		return nil, errors.Wrap(ErrMalformedPayload, "missing pusher")
	case e.Repo == nil || e.Repo.URL == nil:
		return nil, errors.Wrap(ErrMalformedPayload, "missing repository.url")
	}

	repo, err := ParseRepoRef(e.GetRepo().GetURL())
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedPayload, "%v", err)
	}

	event := &PushEvent{
		Ref:        e.GetRef(),
		Pusher:     e.GetPusher().GetName(),
		Deleted:    e.GetDeleted(),
		Repository: repo,
		rawPayload: append([]byte(nil), body...),
	}
	if IsTagRef(event.Ref) {
		event.Tag = ExtractTag(event.Ref)
	}
	return event, nil
}

// IsTagRef reports whether ref names a tag.
func IsTagRef(ref string) bool {
	return strings.HasPrefix(ref, TagPrefix)
}

// ExtractTag returns the tag name carried by ref. The caller must have checked IsTagRef.
func ExtractTag(ref string) string {
	return ref[len(TagPrefix):]
}
