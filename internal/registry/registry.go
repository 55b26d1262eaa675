package registry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// Option configures a registry.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: helpers.NewNoopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// jobs holds the current job list. Writers publish a fresh slice; readers never see a slice change.
type jobs struct {
	current atomic.Pointer[[]*Job]
}

func (j *jobs) load() []*Job {
	if p := j.current.Load(); p != nil {
		return *p
	}
	return nil
}

func (j *jobs) publish(list []*Job) {
	j.current.Store(&list)
}

// Static is an in-memory registry.
type Static struct {
	jobs
	mu sync.Mutex
}

// NewStatic creates a registry holding jobs, in order.
func NewStatic(list ...*Job) *Static {
	s := &Static{}
	s.publish(slices.Clone(list))
	return s
}

// Register appends job, replacing any job with the same name in place.
func (s *Static) Register(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := slices.Clone(s.load())
	if i := slices.IndexFunc(list, func(j *Job) bool { return j.name == job.name }); i >= 0 {
		list[i] = job
	} else {
		list = append(list, job)
	}
	s.publish(list)
}

// Remove unregisters the job called name.
func (s *Static) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(slices.DeleteFunc(slices.Clone(s.load()), func(j *Job) bool { return j.name == name }))
}

// Snapshot implements trigger.Registry.
func (s *Static) Snapshot(_ context.Context, ectx trigger.ExecutionContext) ([]trigger.Job, error) {
	return visible(s.load(), ectx), nil
}

// document is the layout of a job file.
type document struct {
	Jobs []Definition `yaml:"jobs"`
}

// File is a registry loaded from a YAML job file. Reload swaps the job list atomically,
// so a dispatch pass keeps evaluating the snapshot it started with.
type File struct {
	jobs
	path   string
	logger *slog.Logger
}

// NewFile loads the job file at path.
func NewFile(path string, opts ...Option) (*File, error) {
	o := newOptions(opts)
	f := &File{path: path, logger: o.logger.With(slog.String("registry", path))}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the job file. On error the previous job list stays in place.
func (f *File) Reload() error {
	content, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		return errors.Wrapf(err, "failed to read job file %s", f.path)
	}
	list, err := Decode(content)
	if err != nil {
		return errors.Wrapf(err, "failed to load job file %s", f.path)
	}

	for _, job := range list {
		if job.trigger == nil {
			continue
		}
		if _, err := regexp.Compile(job.trigger.Regex); err != nil {
			f.logger.Warn("job has an invalid tag pattern; it will not match any event",
				slog.String("job", job.name), slog.String("pattern", job.trigger.Regex), slog.Any("error", err))
		}
	}

	f.publish(list)
	f.logger.Info("job file loaded", slog.Int("jobs", len(list)))
	return nil
}

// Snapshot implements trigger.Registry.
func (f *File) Snapshot(_ context.Context, ectx trigger.ExecutionContext) ([]trigger.Job, error) {
	return visible(f.load(), ectx), nil
}

// Decode parses a YAML job document. Job names must be unique.
func Decode(content []byte) ([]*Job, error) {
	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal job document")
	}

	list := make([]*Job, 0, len(doc.Jobs))
	seen := make(map[string]struct{}, len(doc.Jobs))
	for i, def := range doc.Jobs {
		job, err := NewJob(def)
		if err != nil {
			return nil, errors.Wrapf(err, "jobs[%d]", i)
		}
		if _, dup := seen[job.name]; dup {
			return nil, errors.Errorf("jobs[%d]: duplicate job name %s", i, job.name)
		}
		seen[job.name] = struct{}{}
		list = append(list, job)
	}
	return list, nil
}
