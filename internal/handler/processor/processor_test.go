package processor_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/handler/processor"
	"github.com/isometry/gh-tag-trigger/internal/registry"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduler struct {
	mu   sync.Mutex
	jobs []string
	fail map[string]bool
}

func (s *scheduler) Schedule(_ context.Context, job trigger.Job, _ time.Duration, cause *trigger.Cause, params []trigger.Parameter) (*trigger.ScheduledRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job.Name())
	if s.fail[job.Name()] {
		return nil, errors.New("scheduler down")
	}
	return &trigger.ScheduledRun{ID: "run-" + job.Name(), Job: job.Name(), Cause: cause.Record(), Parameters: params}, nil
}

type objects struct {
	keys []string
	err  error
}

func (o *objects) PutObject(_ context.Context, bucket, key string, _ []byte, _ string) error {
	o.keys = append(o.keys, bucket+"/"+key)
	return o.err
}

type failingRegistry struct{}

func (failingRegistry) Snapshot(context.Context, trigger.ExecutionContext) ([]trigger.Job, error) {
	return nil, errors.New("registry offline")
}

type rateSource struct {
	calls int
}

func (r *rateSource) RateLimits(context.Context) (*github.Rate, error) {
	r.calls++
	return &github.Rate{Limit: 5000, Remaining: 4000}, nil
}

func mustJob(t *testing.T, def registry.Definition) *registry.Job {
	t.Helper()
	job, err := registry.NewJob(def)
	require.NoError(t, err)
	return job
}

func newRegistry(t *testing.T) *registry.Static {
	t.Helper()
	repo := "https://github.com/octo-org/hello-world"
	return registry.NewStatic(
		mustJob(t, registry.Definition{Name: "j1", Repositories: []string{repo}, Trigger: &trigger.TriggerConfig{Regex: `^v\d+\.\d+\.\d+$`}}),
		mustJob(t, registry.Definition{Name: "j2", Repositories: []string{repo}, Trigger: &trigger.TriggerConfig{Regex: `^beta-`}}),
		mustJob(t, registry.Definition{Name: "hidden", Restricted: true, Repositories: []string{repo}, Trigger: &trigger.TriggerConfig{Regex: `^v`}}),
		mustJob(t, registry.Definition{Name: "plain", Repositories: []string{repo}}),
	)
}

func chain(reg trigger.Registry, s *scheduler, extra ...processor.Processor) []processor.Processor {
	processors := []processor.Processor{
		processor.NewParseProcessor(),
		processor.NewFilterProcessor(),
		processor.NewMatchProcessor(reg, trigger.NewMatcher()),
		processor.NewDispatchProcessor(dispatch.NewDispatcher(s, dispatch.WithQuietPeriod(0))),
	}
	return append(processors, extra...)
}

func loadPayload(t *testing.T) []byte {
	t.Helper()
	body, err := os.ReadFile("../../tagpush/testdata/push_tag.json")
	require.NoError(t, err)
	return body
}

func TestProcess(t *testing.T) {
	payload := loadPayload(t)

	testCases := []struct {
		Name       string
		Body       []byte
		Fail       map[string]bool
		WantStatus processor.EventStatus
		WantJobs   []string
		WantErr    bool
	}{
		{
			Name:       "tag_push_dispatches_matching_jobs",
			Body:       payload,
			WantStatus: processor.Completed,
			WantJobs:   []string{"j1", "hidden"},
		},
		{
			Name:       "failing_job_does_not_block_others",
			Body:       payload,
			Fail:       map[string]bool{"j1": true},
			WantStatus: processor.Completed,
			WantJobs:   []string{"j1", "hidden"},
		},
		{
			Name:       "branch_push_is_skipped",
			Body:       []byte(`{"ref":"refs/heads/main","deleted":false,"pusher":{"name":"octocat"},"repository":{"url":"https://github.com/octo-org/hello-world"}}`),
			WantStatus: processor.Skipped,
		},
		{
			Name:       "tag_deletion_is_skipped",
			Body:       []byte(`{"ref":"refs/tags/v1.2.3","deleted":true,"pusher":{"name":"octocat"},"repository":{"url":"https://github.com/octo-org/hello-world"}}`),
			WantStatus: processor.Skipped,
		},
		{
			Name:       "missing_pusher_name_is_skipped",
			Body:       []byte(`{"ref":"refs/tags/v1.2.3","deleted":false,"pusher":{},"repository":{"url":"https://github.com/octo-org/hello-world"}}`),
			WantStatus: processor.Skipped,
		},
		{
			Name:       "unmatched_tag_is_skipped",
			Body:       []byte(`{"ref":"refs/tags/nightly","deleted":false,"pusher":{"name":"octocat"},"repository":{"url":"https://github.com/octo-org/hello-world"}}`),
			WantStatus: processor.Skipped,
		},
		{
			Name:       "malformed_payload_is_rejected",
			Body:       []byte(`{"ref":"refs/tags/v1.2.3"}`),
			WantStatus: processor.Rejected,
		},
		{
			Name:       "invalid_json_is_rejected",
			Body:       []byte(`{`),
			WantStatus: processor.Rejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			s := &scheduler{fail: tc.Fail}
			bus := processor.NewBus("delivery", tc.Body)

			err := processor.Process(context.Background(), nil, bus, chain(newRegistry(t), s)...)
			require.NoError(t, err)

			assert.Equal(t, tc.WantStatus, bus.EventStatus)
			assert.Equal(t, tc.WantJobs, s.jobs)
		})
	}
}

func TestProcess_InjectedParameters(t *testing.T) {
	s := &scheduler{}
	bus := processor.NewBus("delivery", loadPayload(t))
	require.NoError(t, processor.Process(context.Background(), nil, bus, chain(newRegistry(t), s)...))

	require.NotEmpty(t, bus.Results)
	run := bus.Results[0].Run
	require.NotNil(t, run)
	assert.Equal(t, "j1", run.Job)
	assert.Equal(t, []trigger.Parameter{
		{Name: "GH_PUSHER", Value: "octocat"},
		{Name: "TAG_TO_USE", Value: "v1.2.3"},
		{Name: "GIT_REF", Value: "refs/tags/v1.2.3"},
	}, run.Parameters)
}

func TestProcess_MalformedPayloadError(t *testing.T) {
	bus := processor.NewBus("delivery", []byte(`{"ref":"refs/tags/v1"}`))
	require.NoError(t, processor.Process(context.Background(), nil, bus, chain(newRegistry(t), &scheduler{})...))
	assert.ErrorIs(t, bus.Error, tagpush.ErrMalformedPayload)
}

func TestProcess_RegistryFailure(t *testing.T) {
	bus := processor.NewBus("delivery", loadPayload(t))
	err := processor.Process(context.Background(), nil, bus, chain(failingRegistry{}, &scheduler{})...)

	var internal *processor.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, processor.Error, bus.EventStatus)
}

func TestProcess_Archive(t *testing.T) {
	testCases := []struct {
		Name string
		Err  error
	}{
		{Name: "stored"},
		{Name: "failure_does_not_stop_the_chain", Err: errors.New("access denied")},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			store := &objects{err: tc.Err}
			s := &scheduler{}
			processors := []processor.Processor{
				processor.NewParseProcessor(),
				processor.NewFilterProcessor(),
				processor.NewArchiveProcessor(store, "audit", "push"),
				processor.NewMatchProcessor(newRegistry(t), trigger.NewMatcher()),
				processor.NewDispatchProcessor(dispatch.NewDispatcher(s)),
			}
			bus := processor.NewBus("delivery-1", loadPayload(t))
			require.NoError(t, processor.Process(context.Background(), nil, bus, processors...))

			require.Len(t, store.keys, 1)
			assert.Regexp(t, `^audit/push/.+\.delivery-1\.json$`, store.keys[0])
			assert.Equal(t, processor.Completed, bus.EventStatus)
			assert.Equal(t, []string{"j1", "hidden"}, s.jobs)
		})
	}
}

func TestProcess_RateLimits(t *testing.T) {
	source := &rateSource{}
	s := &scheduler{}
	bus := processor.NewBus("delivery", loadPayload(t))
	require.NoError(t, processor.Process(context.Background(), nil, bus,
		chain(newRegistry(t), s, processor.NewRateLimitsPostProcessor(source))...))

	assert.LessOrEqual(t, source.calls, 1)
	assert.Equal(t, processor.Completed, bus.EventStatus)
}

func TestProcess_ProcessorLogger(t *testing.T) {
	var own, pass bytes.Buffer
	ownLogger := slog.New(slog.NewJSONHandler(&own, &slog.HandlerOptions{Level: slog.LevelDebug}))
	passLogger := slog.New(slog.NewJSONHandler(&pass, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := newRegistry(t)
	processors := []processor.Processor{
		processor.NewParseProcessor(),
		processor.NewFilterProcessor(),
		processor.NewMatchProcessor(reg, trigger.NewMatcher(), processor.WithLogger(ownLogger)),
		processor.NewDispatchProcessor(dispatch.NewDispatcher(&scheduler{}, dispatch.WithQuietPeriod(0))),
	}

	bus := processor.NewBus("delivery-1", loadPayload(t))
	require.NoError(t, processor.Process(context.Background(), passLogger, bus, processors...))
	assert.Equal(t, processor.Completed, bus.EventStatus)

	assert.Contains(t, own.String(), `"processor:match"`)
	assert.Contains(t, own.String(), `"deliveryId":"delivery-1"`)
	assert.NotContains(t, pass.String(), `"processor:match"`)
	assert.Contains(t, pass.String(), `"processor:parse"`)
	assert.Contains(t, pass.String(), `"processor:dispatch"`)
}
