package trigger_test

import (
	"context"
	"testing"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	repoR     = tagpush.RepoRef{Host: "github.com", Owner: "octo-org", Name: "hello-world"}
	repoOther = tagpush.RepoRef{Host: "github.com", Owner: "octo-org", Name: "other"}
)

type testJob struct {
	name     string
	trigger  *trigger.TriggerConfig
	repos    []tagpush.RepoRef
	defaults []trigger.Parameter
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) TriggerConfig() (*trigger.TriggerConfig, bool) { return j.trigger, j.trigger != nil }

func (j *testJob) Repositories() []tagpush.RepoRef { return j.repos }

func (j *testJob) DefaultParameters() []trigger.Parameter { return j.defaults }

func newJob(name, regex string, repos ...tagpush.RepoRef) *testJob {
	return &testJob{name: name, trigger: &trigger.TriggerConfig{Regex: regex}, repos: repos}
}

func tagEvent(tag string, repo tagpush.RepoRef) *tagpush.PushEvent {
	return &tagpush.PushEvent{
		Ref:        "refs/tags/" + tag,
		Tag:        tag,
		Pusher:     "octocat",
		Repository: repo,
	}
}

func matchedNames(matches []trigger.Match) []string {
	var names []string
	for _, m := range matches {
		names = append(names, m.Job.Name())
	}
	return names
}

func TestMatcher_Match(t *testing.T) {
	j1 := newJob("j1", `^v\d+\.\d+\.\d+$`, repoR)
	j2 := newJob("j2", `^beta-`, repoR)
	untriggered := &testJob{name: "untriggered", repos: []tagpush.RepoRef{repoR}}
	elsewhere := newJob("elsewhere", `.*`, repoOther)
	multi := newJob("multi", `\d`, repoOther, repoR)
	snapshot := []trigger.Job{j1, untriggered, j2, elsewhere, multi}

	testCases := []struct {
		Name     string
		Event    *tagpush.PushEvent
		Expected []string
	}{
		{
			Name:     "semver_tag",
			Event:    tagEvent("v1.2.3", repoR),
			Expected: []string{"j1", "multi"},
		},
		{
			Name:     "beta_tag",
			Event:    tagEvent("beta-7", repoR),
			Expected: []string{"j2", "multi"},
		},
		{
			Name:     "find_semantics_not_full_match",
			Event:    tagEvent("release-2", repoR),
			Expected: []string{"multi"},
		},
		{
			Name:     "unbound_repository",
			Event:    tagEvent("v1.2.3", tagpush.RepoRef{Host: "github.com", Owner: "x", Name: "y"}),
			Expected: nil,
		},
		{
			Name:     "other_repository",
			Event:    tagEvent("v1.2.3", repoOther),
			Expected: []string{"elsewhere", "multi"},
		},
	}

	matcher := trigger.NewMatcher()
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			matches := matcher.Match(context.Background(), tc.Event, snapshot)
			assert.Equal(t, tc.Expected, matchedNames(matches))
			for _, m := range matches {
				assert.Equal(t, tc.Event.Ref, m.Cause.Ref())
				assert.Equal(t, tc.Event.Tag, m.Cause.Tag())
				assert.Equal(t, tc.Event.Pusher, m.Cause.Pusher())
			}
		})
	}
}

func TestMatcher_InvalidPatternIsIsolated(t *testing.T) {
	broken := newJob("broken", `^(v`, repoR)
	lookahead := newJob("lookahead", `^v(?=1)`, repoR)
	healthy := newJob("healthy", `^v`, repoR)

	for _, opts := range [][]trigger.MatcherOption{nil, {trigger.WithPatternCache(8)}} {
		matcher := trigger.NewMatcher(opts...)
		matches := matcher.Match(context.Background(), tagEvent("v1", repoR), []trigger.Job{broken, lookahead, healthy})
		assert.Equal(t, []string{"healthy"}, matchedNames(matches))
	}
}

func TestMatcher_PatternCacheFollowsConfigurationChanges(t *testing.T) {
	job := newJob("job", `^v`, repoR)
	matcher := trigger.NewMatcher(trigger.WithPatternCache(1))

	require.Len(t, matcher.Match(context.Background(), tagEvent("v1", repoR), []trigger.Job{job}), 1)

	job.trigger = &trigger.TriggerConfig{Regex: `^release-`}
	assert.Empty(t, matcher.Match(context.Background(), tagEvent("v1", repoR), []trigger.Job{job}))
	assert.Len(t, matcher.Match(context.Background(), tagEvent("release-1", repoR), []trigger.Job{job}), 1)
}

func TestMatcher_EachMatchHasItsOwnCause(t *testing.T) {
	matcher := trigger.NewMatcher()
	matches := matcher.Match(context.Background(), tagEvent("v1.0.0", repoR), []trigger.Job{
		newJob("a", `v`, repoR),
		newJob("b", `v`, repoR),
	})
	require.Len(t, matches, 2)
	assert.NotSame(t, matches[0].Cause, matches[1].Cause)
}

func TestMatcher_JobWithoutTriggerNeverMatches(t *testing.T) {
	matcher := trigger.NewMatcher()
	job := &testJob{name: "plain", repos: []tagpush.RepoRef{repoR}}
	for _, tag := range []string{"", "v1", "anything"} {
		assert.Empty(t, matcher.Match(context.Background(), tagEvent(tag, repoR), []trigger.Job{job}))
	}
}

func TestWithTrigger(t *testing.T) {
	snapshot := []trigger.Job{
		newJob("a", `.`, repoR),
		&testJob{name: "b"},
		newJob("c", `.`),
	}
	assert.Equal(t, []string{"a", "c"}, func() []string {
		var names []string
		for _, j := range trigger.WithTrigger(snapshot) {
			names = append(names, j.Name())
		}
		return names
	}())
}
