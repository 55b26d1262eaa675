// Package trigger decides which registered jobs a tag push should start.
package trigger

import (
	"context"

	"github.com/isometry/gh-tag-trigger/internal/tagpush"
)

// Names of the parameters injected into every triggered build.
const (
	ParamPusher = "GH_PUSHER"
	ParamTag    = "TAG_TO_USE"
	ParamRef    = "GIT_REF"
)

// Parameter is a named build input.
type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// TriggerConfig is the tag-trigger configuration owned by a job.
type TriggerConfig struct {
	// Regex is matched against the pushed tag with find semantics: it may match anywhere in the tag.
	Regex string `json:"regex" yaml:"regex"`
}

// Job is an opaque handle to a registered job.
type Job interface {
	// Name identifies the job in logs and run records.
	Name() string
	// TriggerConfig returns the job's trigger configuration, if it has one.
	TriggerConfig() (*TriggerConfig, bool)
	// Repositories returns the repositories the job is bound to.
	Repositories() []tagpush.RepoRef
	// DefaultParameters returns the job's statically configured parameters.
	DefaultParameters() []Parameter
}

// Privilege is the level at which the registry is queried.
type Privilege int

const (
	// PrivilegeUser sees only jobs visible to ordinary principals.
	PrivilegeUser Privilege = iota
	// PrivilegeSystem sees every registered job.
	PrivilegeSystem
)

func (p Privilege) String() string {
	if p == PrivilegeSystem {
		return "system"
	}
	return "user"
}

// ExecutionContext carries the privilege a registry query runs under.
type ExecutionContext struct {
	Privilege Privilege
}

// SystemContext is the execution context used for dispatch passes.
// Scheduling a build is deferred work any push could cause, so matching ignores per-principal visibility.
var SystemContext = ExecutionContext{Privilege: PrivilegeSystem}

// Registry enumerates registered jobs.
type Registry interface {
	// Snapshot returns the jobs visible under ectx, in registry order.
	// The returned slice is not modified by later registration changes.
	Snapshot(ctx context.Context, ectx ExecutionContext) ([]Job, error)
}

// WithTrigger returns the jobs of snapshot that carry a trigger configuration, preserving order.
func WithTrigger(snapshot []Job) []Job {
	out := make([]Job, 0, len(snapshot))
	for _, job := range snapshot {
		if _, ok := job.TriggerConfig(); ok {
			out = append(out, job)
		}
	}
	return out
}
