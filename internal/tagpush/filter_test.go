package tagpush_test

import (
	"testing"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	testCases := []struct {
		Name     string
		Event    tagpush.PushEvent
		Expected tagpush.Reason
	}{
		{
			Name:  "relevant_tag_push",
			Event: tagpush.PushEvent{Ref: "refs/tags/v1", Tag: "v1", Pusher: "octocat"},
		},
		{
			Name:     "branch_push",
			Event:    tagpush.PushEvent{Ref: "refs/heads/main", Pusher: "octocat"},
			Expected: tagpush.NotATag,
		},
		{
			Name:     "deleted_tag",
			Event:    tagpush.PushEvent{Ref: "refs/tags/v1", Tag: "v1", Pusher: "octocat", Deleted: true},
			Expected: tagpush.Deleted,
		},
		{
			Name:     "deleted_branch_reports_not_a_tag",
			Event:    tagpush.PushEvent{Ref: "refs/heads/main", Pusher: "octocat", Deleted: true},
			Expected: tagpush.NotATag,
		},
		{
			Name:     "missing_pusher",
			Event:    tagpush.PushEvent{Ref: "refs/tags/v1", Tag: "v1"},
			Expected: tagpush.MissingPusher,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			err := tagpush.Filter(&tc.Event)
			if tc.Expected == "" {
				assert.NoError(t, err)
				return
			}
			var irrelevant *tagpush.IrrelevantEventError
			require.ErrorAs(t, err, &irrelevant)
			assert.Equal(t, tc.Expected, irrelevant.Reason)
			assert.Equal(t, tc.Event.Ref, irrelevant.Ref)
		})
	}
}
