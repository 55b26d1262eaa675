package builds

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
)

// WorkflowTarget names the GitHub Actions workflow a job starts.
type WorkflowTarget struct {
	// Repository is owner/name.
	Repository string `yaml:"repository" json:"repository"`
	// File is the workflow file name, e.g. release.yml.
	File string `yaml:"file" json:"file"`
	// Ref is the branch or tag the workflow runs on.
	Ref string `yaml:"ref" json:"ref"`
}

func (w WorkflowTarget) split() (string, string, error) {
	owner, name, ok := strings.Cut(w.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", errors.Errorf("invalid workflow repository %q", w.Repository)
	}
	return owner, name, nil
}

type workflowJob interface {
	Workflow() (WorkflowTarget, bool)
}

// ClientProvider supplies an authenticated GitHub client.
type ClientProvider interface {
	Client(ctx context.Context) (*github.Client, error)
}

// GitHubActionsLauncher starts runs by firing a workflow_dispatch event. Parameters become workflow inputs.
// Jobs without a workflow target are only logged.
type GitHubActionsLauncher struct {
	clients  ClientProvider
	logger   *slog.Logger
	fallback Launcher
}

func NewGitHubActionsLauncher(clients ClientProvider, logger *slog.Logger) *GitHubActionsLauncher {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	logger = logger.With(slog.String("launcher", "github-actions"))
	return &GitHubActionsLauncher{
		clients:  clients,
		logger:   logger,
		fallback: NewLogLauncher(logger),
	}
}

func (l *GitHubActionsLauncher) Launch(ctx context.Context, job trigger.Job, run trigger.ScheduledRun) error {
	wj, ok := job.(workflowJob)
	if !ok {
		return l.fallback.Launch(ctx, job, run)
	}
	target, ok := wj.Workflow()
	if !ok {
		return l.fallback.Launch(ctx, job, run)
	}
	owner, repo, err := target.split()
	if err != nil {
		return err
	}

	client, err := l.clients.Client(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to obtain GitHub client")
	}

	inputs := make(map[string]any, len(run.Parameters))
	for _, p := range run.Parameters {
		inputs[p.Name] = p.Value
	}
	event := github.CreateWorkflowDispatchEventRequest{Ref: target.Ref, Inputs: inputs}
	if _, _, err = client.Actions.CreateWorkflowDispatchEventByFileName(ctx, owner, repo, target.File, event); err != nil {
		l.reportRateLimit(err)
		return errors.Wrapf(err, "failed to dispatch workflow %s in %s", target.File, target.Repository)
	}

	l.logger.Info("workflow dispatched",
		slog.String("job", job.Name()),
		slog.String("run", run.ID),
		slog.String("repository", target.Repository),
		slog.String("workflow", target.File),
		slog.String("ref", target.Ref),
	)
	return nil
}

func (l *GitHubActionsLauncher) reportRateLimit(err error) {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr):
		helpers.OnceAMinute.Do(func() {
			l.logger.Warn("GitHub rate limit exceeded",
				slog.Int("limit", rateErr.Rate.Limit),
				slog.Time("reset", rateErr.Rate.Reset.Time))
		})
	case errors.As(err, &abuseErr):
		helpers.OnceAMinute.Do(func() {
			l.logger.Warn("GitHub secondary rate limit hit", slog.Duration("retryAfter", abuseErr.GetRetryAfter()))
		})
	}
}
