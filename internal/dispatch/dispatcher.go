// Package dispatch schedules one build per matched job, isolating each job's failures from the others.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQuietPeriod = 3 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// Scheduler is the build system entry point.
// A nil run with a nil error means the request was accepted but not scheduled, e.g. because the job is disabled
// or an identical request is already queued.
type Scheduler interface {
	Schedule(ctx context.Context, job trigger.Job, quietPeriod time.Duration, cause *trigger.Cause, params []trigger.Parameter) (*trigger.ScheduledRun, error)
}

// Status is the outcome of scheduling one job.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of dispatching one match.
type Result struct {
	Job    trigger.Job
	Status Status
	Run    *trigger.ScheduledRun
	Err    error
}

// Results are the outcomes of one dispatch pass, in match order.
type Results []Result

// Err aggregates every failure of the pass, or returns nil.
func (r Results) Err() error {
	var result *multierror.Error
	for _, res := range r {
		if res.Err != nil {
			result = multierror.Append(result, res.Err)
		}
	}
	return result.ErrorOrNil()
}

// Count returns the number of results with the given status.
func (r Results) Count(status Status) int {
	n := 0
	for _, res := range r {
		if res.Status == status {
			n++
		}
	}
	return n
}

// SchedulingError reports a job whose schedule call failed, panicked or timed out.
type SchedulingError struct {
	Job string
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("job %s: scheduling failed: %v", e.Job, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// ErrTimeout is wrapped by a SchedulingError when a schedule call outlives the dispatcher timeout.
var ErrTimeout = errors.New("schedule call timed out")

// Dispatcher schedules matched jobs.
type Dispatcher struct {
	scheduler   Scheduler
	logger      *slog.Logger
	quietPeriod time.Duration
	timeout     time.Duration
	concurrency int
}

// NewDispatcher creates a Dispatcher handing builds to scheduler.
func NewDispatcher(scheduler Scheduler, opts ...Option) *Dispatcher {
	_inst := &Dispatcher{
		scheduler:   scheduler,
		quietPeriod: DefaultQuietPeriod,
		timeout:     DefaultTimeout,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	_inst.concurrency = max(_inst.concurrency, 1)
	return _inst
}

// Dispatch attempts to schedule every match. A failing job never prevents the others from being attempted.
// The pass is not cancelled when ctx is; every match is attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, matches []trigger.Match) Results {
	results := make(Results, len(matches))
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, m := range matches {
		g.Go(func() error {
			results[i] = d.dispatchOne(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, m trigger.Match) Result {
	name := m.Job.Name()
	logger := d.logger.With(slog.String("job", name))
	params := MergeParameters(m.Job.DefaultParameters(), m.Cause)

	run, err := d.schedule(ctx, m.Job, m.Cause, params)
	switch {
	case err != nil:
		err = &SchedulingError{Job: name, Err: err}
		logger.Error("failed to schedule build", slog.Any("error", err))
		return Result{Job: m.Job, Status: StatusFailed, Err: err}
	case run == nil:
		logger.Info("build not scheduled", slog.Any("cause", m.Cause))
		return Result{Job: m.Job, Status: StatusSkipped}
	default:
		logger.Info("build scheduled", slog.String("run", run.ID), slog.Any("cause", m.Cause))
		return Result{Job: m.Job, Status: StatusScheduled, Run: run}
	}
}

type outcome struct {
	run *trigger.ScheduledRun
	err error
}

// schedule runs one schedule call with a deadline, converting a panic into an error.
func (d *Dispatcher) schedule(ctx context.Context, job trigger.Job, cause *trigger.Cause, params []trigger.Parameter) (*trigger.ScheduledRun, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Debug("recovered schedule panic", slog.String("stack", string(debug.Stack())))
				done <- outcome{err: errors.Errorf("panic: %v", r)}
			}
		}()
		run, err := d.scheduler.Schedule(ctx, job, d.quietPeriod, cause, params)
		done <- outcome{run: run, err: err}
	}()

	select {
	case o := <-done:
		return o.run, o.err
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrTimeout, "after %s", d.timeout)
	}
}

// MergeParameters returns the defaults, minus any named like an injected parameter, followed by the injected parameters of cause.
func MergeParameters(defaults []trigger.Parameter, cause *trigger.Cause) []trigger.Parameter {
	injected := cause.Parameters()
	out := make([]trigger.Parameter, 0, len(defaults)+len(injected))
	for _, p := range defaults {
		if isInjected(p.Name) {
			continue
		}
		out = append(out, p)
	}
	return append(out, injected...)
}

func isInjected(name string) bool {
	switch name {
	case trigger.ParamPusher, trigger.ParamTag, trigger.ParamRef:
		return true
	}
	return false
}
