package builds_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isometry/gh-tag-trigger/internal/builds"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"ref":"refs/tags/v1.0.0","deleted":false,"pusher":{"name":"octocat"},"repository":{"url":"https://github.com/octo-org/hello-world"}}`

type job struct {
	name     string
	disabled bool
	workflow *builds.WorkflowTarget
}

func (j *job) Name() string                                  { return j.name }
func (j *job) TriggerConfig() (*trigger.TriggerConfig, bool) { return nil, false }
func (j *job) Repositories() []tagpush.RepoRef               { return nil }
func (j *job) DefaultParameters() []trigger.Parameter        { return nil }
func (j *job) Disabled() bool                                { return j.disabled }

func (j *job) Workflow() (builds.WorkflowTarget, bool) {
	if j.workflow == nil {
		return builds.WorkflowTarget{}, false
	}
	return *j.workflow, true
}

type recordingLauncher struct {
	mu       sync.Mutex
	launched []trigger.ScheduledRun
	err      error
}

func (l *recordingLauncher) Launch(_ context.Context, _ trigger.Job, run trigger.ScheduledRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, run)
	return l.err
}

func (l *recordingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

type recordingAnnotator struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func (a *recordingAnnotator) Attach(_ context.Context, runID string, payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.payloads == nil {
		a.payloads = map[string][]byte{}
	}
	a.payloads[runID] = payload
}

// blockingAnnotator holds each Attach until release is closed or its context ends.
type blockingAnnotator struct {
	release chan struct{}
	calls   atomic.Int32
	errs    chan error
}

func newBlockingAnnotator() *blockingAnnotator {
	return &blockingAnnotator{release: make(chan struct{}), errs: make(chan error, 1)}
}

func (a *blockingAnnotator) Attach(ctx context.Context, _ string, _ []byte) {
	a.calls.Add(1)
	select {
	case <-a.release:
	case <-ctx.Done():
	}
	a.errs <- ctx.Err()
}

// expiringContext is live for its first Err call and expired afterwards.
type expiringContext struct {
	context.Context
	calls atomic.Int32
}

func (c *expiringContext) Err() error {
	if c.calls.Add(1) > 1 {
		return context.DeadlineExceeded
	}
	return nil
}

func newCause(t *testing.T) *trigger.Cause {
	t.Helper()
	event, err := tagpush.Parse([]byte(payload))
	require.NoError(t, err)
	return trigger.NewCause(event)
}

func TestQueue_Schedule(t *testing.T) {
	launcher := &recordingLauncher{}
	annotator := &recordingAnnotator{}
	q := builds.NewQueue(builds.WithLauncher(launcher), builds.WithAnnotator(annotator))
	defer q.Close()

	cause := newCause(t)
	params := append([]trigger.Parameter{{Name: "ENV", Value: "prod"}}, cause.Parameters()...)
	run, err := q.Schedule(context.Background(), &job{name: "release"}, 10*time.Millisecond, cause, params)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "release", run.Job)
	assert.Equal(t, params, run.Parameters)
	assert.Equal(t, "Started by push by octocat for refs/tags/v1.0.0", run.Cause.Description)
	assert.Equal(t, 10*time.Millisecond, run.StartAt.Sub(run.QueuedAt))
	q.Wait()
	assert.JSONEq(t, payload, string(annotator.payloads[run.ID]))

	assert.Eventually(t, func() bool { return launcher.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		r, ok := q.Get(run.ID)
		return ok && r.Status == builds.StatusLaunched && r.LaunchedAt != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, run.ID, launcher.launched[0].ID)
}

func TestQueue_DisabledJob(t *testing.T) {
	launcher := &recordingLauncher{}
	q := builds.NewQueue(builds.WithLauncher(launcher))
	defer q.Close()

	run, err := q.Schedule(context.Background(), &job{name: "off", disabled: true}, 0, newCause(t), nil)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.Empty(t, q.Runs())
}

func TestQueue_CoalescesIdenticalRequests(t *testing.T) {
	q := builds.NewQueue(builds.WithLauncher(&recordingLauncher{}))
	defer q.Close()

	cause := newCause(t)
	j := &job{name: "release"}
	first, err := q.Schedule(context.Background(), j, time.Hour, cause, cause.Parameters())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := q.Schedule(context.Background(), j, time.Hour, cause, cause.Parameters())
	require.NoError(t, err)
	assert.Nil(t, second)

	other, err := q.Schedule(context.Background(), j, time.Hour, cause, []trigger.Parameter{{Name: "X", Value: "1"}})
	require.NoError(t, err)
	assert.NotNil(t, other)

	assert.Len(t, q.Runs(), 2)
}

func TestQueue_LaunchFailure(t *testing.T) {
	launcher := &recordingLauncher{err: errors.New("boom")}
	q := builds.NewQueue(builds.WithLauncher(launcher))
	defer q.Close()

	run, err := q.Schedule(context.Background(), &job{name: "release"}, 0, newCause(t), nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		r, _ := q.Get(run.ID)
		return r.Status == builds.StatusFailed
	}, time.Second, 5*time.Millisecond)
	r, _ := q.Get(run.ID)
	assert.Equal(t, "boom", r.Error)
}

func TestQueue_Close(t *testing.T) {
	launcher := &recordingLauncher{}
	q := builds.NewQueue(builds.WithLauncher(launcher))

	run, err := q.Schedule(context.Background(), &job{name: "release"}, time.Hour, newCause(t), nil)
	require.NoError(t, err)
	q.Close()

	r, ok := q.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, builds.StatusCancelled, r.Status)

	_, err = q.Schedule(context.Background(), &job{name: "release"}, 0, newCause(t), nil)
	assert.ErrorIs(t, err, builds.ErrQueueClosed)
	assert.Equal(t, 0, launcher.count())
}

func TestQueue_CancelledContext(t *testing.T) {
	q := builds.NewQueue()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Schedule(ctx, &job{name: "release"}, 0, newCause(t), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_GetUnknown(t *testing.T) {
	q := builds.NewQueue()
	defer q.Close()

	_, ok := q.Get("missing")
	assert.False(t, ok)
}

func TestQueue_AnnotationDetachedFromSchedule(t *testing.T) {
	annotator := newBlockingAnnotator()
	q := builds.NewQueue(builds.WithLauncher(&recordingLauncher{}), builds.WithAnnotator(annotator))
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	run, err := q.Schedule(ctx, &job{name: "release"}, time.Hour, newCause(t), nil)
	require.NoError(t, err)
	require.NotNil(t, run)
	cancel()

	close(annotator.release)
	q.Wait()
	assert.Equal(t, int32(1), annotator.calls.Load())
	assert.NoError(t, <-annotator.errs)
}

func TestQueue_AnnotateTimeout(t *testing.T) {
	annotator := newBlockingAnnotator()
	q := builds.NewQueue(
		builds.WithLauncher(&recordingLauncher{}),
		builds.WithAnnotator(annotator),
		builds.WithAnnotateTimeout(10*time.Millisecond),
	)
	defer q.Close()

	_, err := q.Schedule(context.Background(), &job{name: "release"}, time.Hour, newCause(t), nil)
	require.NoError(t, err)

	q.Wait()
	assert.ErrorIs(t, <-annotator.errs, context.DeadlineExceeded)
}

func TestQueue_ContextExpiresBeforeCommit(t *testing.T) {
	launcher := &recordingLauncher{}
	annotator := &recordingAnnotator{}
	q := builds.NewQueue(builds.WithLauncher(launcher), builds.WithAnnotator(annotator))
	defer q.Close()

	ctx := &expiringContext{Context: context.Background()}
	run, err := q.Schedule(ctx, &job{name: "release"}, 0, newCause(t), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, run)
	assert.Empty(t, q.Runs())

	q.Wait()
	assert.Empty(t, annotator.payloads)
	assert.Never(t, func() bool { return launcher.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
