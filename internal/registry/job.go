// Package registry provides trigger.Registry implementations backed by a YAML job file or by memory.
package registry

import (
	"slices"

	"github.com/isometry/gh-tag-trigger/internal/builds"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
)

// Definition is the declarative form of a job.
type Definition struct {
	Name string `yaml:"name"`
	// Restricted jobs are hidden from ordinary principals but still considered for triggering.
	Restricted bool `yaml:"restricted,omitempty"`
	// Disabled jobs still match but the build queue refuses to schedule them.
	Disabled     bool                   `yaml:"disabled,omitempty"`
	Repositories []string               `yaml:"repositories,omitempty"`
	Trigger      *trigger.TriggerConfig `yaml:"trigger,omitempty"`
	Parameters   []trigger.Parameter    `yaml:"parameters,omitempty"`
	Workflow     *builds.WorkflowTarget `yaml:"workflow,omitempty"`
}

// Job is a registered job. It implements trigger.Job and is immutable once built.
type Job struct {
	name       string
	restricted bool
	disabled   bool
	trigger    *trigger.TriggerConfig
	repos      []tagpush.RepoRef
	params     []trigger.Parameter
	workflow   *builds.WorkflowTarget
}

// NewJob validates def and builds the corresponding Job.
// Trigger patterns are not compiled here; they are evaluated when an event arrives.
func NewJob(def Definition) (*Job, error) {
	if def.Name == "" {
		return nil, errors.New("job name is required")
	}
	job := &Job{
		name:       def.Name,
		restricted: def.Restricted,
		disabled:   def.Disabled,
		params:     slices.Clone(def.Parameters),
	}
	if def.Trigger != nil {
		cfg := *def.Trigger
		job.trigger = &cfg
	}
	if def.Workflow != nil {
		wf := *def.Workflow
		job.workflow = &wf
	}
	for _, raw := range def.Repositories {
		ref, err := tagpush.ParseRepoRef(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "job %s", def.Name)
		}
		if !slices.Contains(job.repos, ref) {
			job.repos = append(job.repos, ref)
		}
	}
	return job, nil
}

// Name implements trigger.Job.
func (j *Job) Name() string { return j.name }

// TriggerConfig implements trigger.Job.
func (j *Job) TriggerConfig() (*trigger.TriggerConfig, bool) {
	if j.trigger == nil {
		return nil, false
	}
	cfg := *j.trigger
	return &cfg, true
}

// Repositories implements trigger.Job.
func (j *Job) Repositories() []tagpush.RepoRef { return slices.Clone(j.repos) }

// DefaultParameters implements trigger.Job.
func (j *Job) DefaultParameters() []trigger.Parameter { return slices.Clone(j.params) }

// Restricted reports whether the job is hidden from ordinary principals.
func (j *Job) Restricted() bool { return j.restricted }

// Disabled reports whether the job refuses new builds.
func (j *Job) Disabled() bool { return j.disabled }

// Workflow returns the GitHub Actions workflow the job launches, if any.
func (j *Job) Workflow() (builds.WorkflowTarget, bool) {
	if j.workflow == nil {
		return builds.WorkflowTarget{}, false
	}
	return *j.workflow, true
}

func visible(list []*Job, ectx trigger.ExecutionContext) []trigger.Job {
	out := make([]trigger.Job, 0, len(list))
	for _, job := range list {
		if job.restricted && ectx.Privilege != trigger.PrivilegeSystem {
			continue
		}
		out = append(out, job)
	}
	return out
}
