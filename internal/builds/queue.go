// Package builds is a minimal build queue: it accepts scheduled runs, holds them for their quiet period
// and hands them to a Launcher.
package builds

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusLaunching Status = "launching"
	StatusLaunched  Status = "launched"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is the queue's record of a scheduled run.
type Run struct {
	trigger.ScheduledRun
	Status     Status     `json:"status"`
	LaunchedAt *time.Time `json:"launchedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Annotator receives the raw payload of the event that caused a run.
type Annotator interface {
	Attach(ctx context.Context, runID string, payload []byte)
}

// Launcher starts a run once its quiet period has elapsed.
type Launcher interface {
	Launch(ctx context.Context, job trigger.Job, run trigger.ScheduledRun) error
}

type disabler interface {
	Disabled() bool
}

// Queue holds scheduled runs until they are launched.
type Queue struct {
	mu      sync.Mutex
	runs    map[string]*Run
	order   []string
	pending map[string]string
	timers  map[string]*time.Timer
	closed  bool

	annotating      sync.WaitGroup
	annotateTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
	launcher  Launcher
	annotator Annotator
	now       func() time.Time
}

// NewQueue creates a build queue.
func NewQueue(opts ...Option) *Queue {
	_inst := &Queue{
		runs:    make(map[string]*Run),
		pending: make(map[string]string),
		timers:  make(map[string]*time.Timer),
		now:     time.Now,

		annotateTimeout: DefaultAnnotateTimeout,
	}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	if _inst.launcher == nil {
		_inst.launcher = NewLogLauncher(_inst.logger)
	}
	_inst.ctx, _inst.cancel = context.WithCancel(context.Background())
	return _inst
}

// Schedule queues a run of job. It returns a nil run without error when the job is disabled,
// or when an identical request for the job is still waiting out its quiet period.
// Nothing is queued once ctx is done. The cause payload is handed to the annotator in the
// background, detached from ctx.
func (q *Queue) Schedule(ctx context.Context, job trigger.Job, quietPeriod time.Duration, cause *trigger.Cause, params []trigger.Parameter) (*trigger.ScheduledRun, error) {
	logger := q.logger.With(slog.String("job", job.Name()))
	if d, ok := job.(disabler); ok && d.Disabled() {
		logger.Info("job is disabled; not scheduling")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := coalesceKey(job.Name(), params)
	now := q.now()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if id, ok := q.pending[key]; ok {
		q.mu.Unlock()
		logger.Info("identical request already queued", slog.String("run", id))
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		q.mu.Unlock()
		return nil, err
	}
	run := &Run{
		ScheduledRun: trigger.ScheduledRun{
			ID:         uuid.NewString(),
			Job:        job.Name(),
			Cause:      cause.Record(),
			Parameters: slices.Clone(params),
			QueuedAt:   now,
			StartAt:    now.Add(quietPeriod),
		},
		Status: StatusQueued,
	}
	q.runs[run.ID] = run
	q.order = append(q.order, run.ID)
	q.pending[key] = run.ID
	q.timers[run.ID] = time.AfterFunc(quietPeriod, func() { q.launch(job, run.ID, key) })
	scheduled := run.ScheduledRun
	if q.annotator != nil {
		q.annotating.Add(1)
		go q.annotate(context.WithoutCancel(ctx), run.ID, cause.Payload())
	}
	q.mu.Unlock()

	logger.Info("run queued", slog.String("run", run.ID), slog.Time("startAt", run.StartAt))
	return &scheduled, nil
}

func (q *Queue) annotate(ctx context.Context, id string, payload []byte) {
	defer q.annotating.Done()
	ctx, cancel := context.WithTimeout(ctx, q.annotateTimeout)
	defer cancel()
	q.annotator.Attach(ctx, id, payload)
}

// Wait blocks until every annotation started by Schedule has returned.
func (q *Queue) Wait() {
	q.annotating.Wait()
}

func (q *Queue) launch(job trigger.Job, id, key string) {
	q.mu.Lock()
	run, ok := q.runs[id]
	if !ok || run.Status != StatusQueued {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	delete(q.timers, id)
	run.Status = StatusLaunching
	scheduled := run.ScheduledRun
	q.mu.Unlock()

	err := q.launcher.Launch(q.ctx, job, scheduled)

	q.mu.Lock()
	defer q.mu.Unlock()
	launchedAt := q.now()
	run.LaunchedAt = &launchedAt
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		q.logger.Error("failed to launch run", slog.String("job", job.Name()), slog.String("run", id), slog.Any("error", err))
		return
	}
	run.Status = StatusLaunched
}

// Get returns a copy of the run with the given ID.
func (q *Queue) Get(id string) (Run, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	run, ok := q.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.snapshot(), true
}

// Runs returns copies of every run, oldest first.
func (q *Queue) Runs() []Run {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Run, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.runs[id].snapshot())
	}
	return out
}

// Close cancels every run still waiting out its quiet period and rejects further requests.
// It returns once pending annotations are done.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, timer := range q.timers {
		if timer.Stop() {
			q.runs[id].Status = StatusCancelled
		}
	}
	clear(q.timers)
	clear(q.pending)
	q.cancel()
	q.mu.Unlock()

	q.Wait()
}

func (r *Run) snapshot() Run {
	out := *r
	out.Parameters = slices.Clone(r.Parameters)
	if r.LaunchedAt != nil {
		t := *r.LaunchedAt
		out.LaunchedAt = &t
	}
	return out
}

func coalesceKey(job string, params []trigger.Parameter) string {
	var sb strings.Builder
	sb.WriteString(job)
	for _, p := range params {
		sb.WriteByte(0)
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
	return sb.String()
}
