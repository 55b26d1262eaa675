package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/isometry/gh-tag-trigger/internal/builds"
	"github.com/isometry/gh-tag-trigger/internal/config"
	awsctl "github.com/isometry/gh-tag-trigger/internal/controllers/aws"
	ghctl "github.com/isometry/gh-tag-trigger/internal/controllers/github"
	"github.com/isometry/gh-tag-trigger/internal/dispatch"
	"github.com/isometry/gh-tag-trigger/internal/handler"
	"github.com/isometry/gh-tag-trigger/internal/handler/processor"
	"github.com/isometry/gh-tag-trigger/internal/payload"
	"github.com/isometry/gh-tag-trigger/internal/registry"
	"github.com/isometry/gh-tag-trigger/internal/runtime"
	"github.com/isometry/gh-tag-trigger/internal/trigger"
	"github.com/pkg/errors"
)

// Payload backends.
const (
	payloadBackendFile = "file"
	payloadBackendS3   = "s3"
	payloadBackendGCS  = "gcs"
)

// Launchers.
const (
	launcherLog           = "log"
	launcherGitHubActions = "github-actions"
)

// app holds the components shared by every runtime mode.
type app struct {
	registry *registry.File
	matcher  *trigger.Matcher
	queue    *builds.Queue
	payloads payload.Store
	handler  *handler.Handler

	aws     *awsctl.Controller
	github  *ghctl.Controller
	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{}
	var err error

	logger.Debug("loading job registry...", slog.String("path", config.Trigger.Registry))
	a.registry, err = registry.NewFile(config.Trigger.Registry,
		registry.WithLogger(logger.With("component", "registry")))
	if err != nil {
		return nil, err
	}
	a.matcher = trigger.NewMatcher(
		trigger.WithMatcherLogger(logger.With("component", "matcher")),
		trigger.WithPatternCache(config.Trigger.CacheSize))

	if a.payloads, err = a.newPayloadStore(ctx); err != nil {
		return nil, err
	}
	launcher, err := a.newLauncher(ctx)
	if err != nil {
		return nil, err
	}

	a.queue = builds.NewQueue(
		builds.WithLogger(logger.With("component", "queue")),
		builds.WithLauncher(launcher),
		builds.WithAnnotator(payload.NewAnnotator(a.payloads, logger)),
		builds.WithAnnotateTimeout(config.Trigger.Timeout))
	a.closers = append(a.closers, a.queue.Close)

	dispatcher := dispatch.NewDispatcher(a.queue,
		dispatch.WithLogger(logger.With("component", "dispatcher")),
		dispatch.WithQuietPeriod(config.Trigger.QuietPeriod),
		dispatch.WithTimeout(config.Trigger.Timeout),
		dispatch.WithConcurrency(config.Trigger.Concurrency))

	processors := []processor.Processor{
		processor.NewParseProcessor(),
		processor.NewFilterProcessor(),
	}
	if config.Global.Archive.Enabled {
		aws, err := a.awsController(ctx)
		if err != nil {
			return nil, err
		}
		processors = append(processors, processor.NewArchiveProcessor(aws, config.Global.Archive.BucketName, config.Global.Archive.Prefix))
	}
	processors = append(processors,
		processor.NewMatchProcessor(a.registry, a.matcher),
		processor.NewDispatchProcessor(dispatcher))
	if a.github != nil {
		processors = append(processors, processor.NewRateLimitsPostProcessor(a.github))
	}

	a.handler = handler.NewHandler(processors,
		handler.WithLogger(logger.With("component", "handler")))
	return a, nil
}

func (a *app) awsController(ctx context.Context) (*awsctl.Controller, error) {
	if a.aws != nil {
		return a.aws, nil
	}
	aws, err := awsctl.NewController(
		awsctl.WithContext(ctx),
		awsctl.WithLogger(logger.With("component", "aws")))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS controller")
	}
	a.aws = aws
	return aws, nil
}

func (a *app) newPayloadStore(ctx context.Context) (payload.Store, error) {
	switch config.Payload.Backend {
	case payloadBackendFile:
		return payload.NewFileStore(config.Payload.Directory), nil
	case payloadBackendS3:
		aws, err := a.awsController(ctx)
		if err != nil {
			return nil, err
		}
		return payload.NewS3Store(aws, config.Payload.Bucket, config.Payload.Prefix), nil
	case payloadBackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create GCS client")
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return payload.NewGCSStore(client, config.Payload.Bucket, config.Payload.Prefix), nil
	default:
		return nil, errors.Errorf("unsupported payload backend: %s", config.Payload.Backend)
	}
}

func (a *app) newLauncher(ctx context.Context) (builds.Launcher, error) {
	switch config.Builds.Launcher {
	case launcherLog:
		return builds.NewLogLauncher(logger.With("component", "launcher")), nil
	case launcherGitHubActions:
		gh, err := a.githubController(ctx)
		if err != nil {
			return nil, err
		}
		return builds.NewGitHubActionsLauncher(gh, logger.With("component", "launcher")), nil
	default:
		return nil, errors.Errorf("unsupported launcher: %s", config.Builds.Launcher)
	}
}

func (a *app) githubController(ctx context.Context) (*ghctl.Controller, error) {
	opts := []ghctl.GHOption{
		ghctl.WithAuthMode(config.GitHub.AuthMode),
		ghctl.WithToken(os.Getenv("GITHUB_TOKEN")),
		ghctl.WithSSMKey(config.GitHub.SSMKey),
		ghctl.WithBaseURL(config.GitHub.BaseURL),
		ghctl.WithLogger(logger.With("component", "github")),
	}
	switch config.GitHub.AuthMode {
	case ghctl.AuthModeSSM:
		aws, err := a.awsController(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ghctl.WithSecretSource(aws))
	case ghctl.AuthModeApp:
		appID, err := parseID(config.GitHub.AppID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid GitHub App id")
		}
		installationID, err := parseID(config.GitHub.InstallationID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid GitHub App installation id")
		}
		opts = append(opts, ghctl.WithApp(appID, installationID, config.GitHub.PrivateKeyPath))
	}

	gh, err := ghctl.NewController(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GitHub controller")
	}
	if err = gh.RetrieveCredentials(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to retrieve GitHub credentials")
	}
	a.github = gh
	return gh, nil
}

func parseID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (a *app) runtime() *runtime.Runtime {
	return runtime.NewRuntime(a.handler,
		runtime.WithLogger(logger.With("component", "runtime")),
		runtime.WithPath(config.Service.Path),
		runtime.WithLambdaPayloadType(config.Lambda.PayloadType),
		runtime.WithRuns(a.queue),
		runtime.WithPayloads(a.payloads))
}

// reloadOnHangup reloads the job registry on SIGHUP until ctx is done.
func (a *app) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := a.registry.Reload(); err != nil {
					logger.Error("failed to reload job registry", slog.Any("error", err))
					continue
				}
				logger.Info("job registry reloaded")
			}
		}
	}()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
