// Package github provides a Controller for GitHub client creation and credentials management.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Supported authentication modes.
const (
	AuthModeToken = "token"
	AuthModeSSM   = "ssm"
	AuthModeApp   = "app"
)

// SecretSource fetches secrets, e.g. from AWS SSM Parameter Store.
type SecretSource interface {
	GetSecret(ctx context.Context, key string, encrypted bool) (string, error)
}

// Credentials is a helper struct to hold the GitHub credentials.
type Credentials struct {
	AppID          int64  `json:"app_id,omitempty"`
	InstallationID int64  `json:"installation_id,omitempty"`
	PrivateKey     string `json:"private_key,omitempty"`
	Token          string `json:"token,omitempty"`
}

// Controller encapsulates GitHub client creation and credentials management for various authentication modes.
type Controller struct {
	Credentials

	authMode       string
	ssmKey         string
	privateKeyPath string
	baseURL        string
	logger         *slog.Logger
	secrets        SecretSource
	transport      http.RoundTripper

	mu     sync.Mutex
	loaded bool
	client *github.Client
}

// GHOption is a functional option used to configure or modify the properties of a Controller instance.
type GHOption func(*Controller)

// NewController initializes a new Controller with the provided options, setting defaults where necessary.
func NewController(opts ...GHOption) (*Controller, error) {
	_inst := new(Controller)
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	if _inst.transport == nil {
		_inst.transport = http.DefaultTransport
	}
	_inst.authMode = strings.TrimSpace(strings.ToLower(_inst.authMode))
	_inst.logger = _inst.logger.With(slog.String("controller", "github"), slog.String("authMode", _inst.authMode))
	return _inst, nil
}

// RetrieveCredentials completes the credentials for the configured auth mode.
func (g *Controller) RetrieveCredentials(ctx context.Context) error {
	switch g.authMode {
	case AuthModeToken:
		if g.Token == "" {
			return errors.New("missing [GITHUB_TOKEN]")
		}
	case AuthModeSSM:
		if g.secrets == nil {
			return errors.New("ssm auth mode requires an AWS controller")
		}
		g.logger.Debug("retrieving credentials from SSM...")
		secret, err := g.secrets.GetSecret(ctx, g.ssmKey, true)
		if err != nil {
			return errors.Wrap(err, "failed to fetch credentials from SSM")
		}
		var creds Credentials
		if err = json.Unmarshal([]byte(secret), &creds); err != nil {
			return errors.Wrap(err, "failed to unmarshal credentials")
		}
		g.merge(creds)
		if g.Token == "" && (g.AppID == 0 || g.InstallationID == 0 || g.PrivateKey == "") {
			return errors.New("SSM credentials hold neither a token nor complete app credentials")
		}
	case AuthModeApp:
		if g.PrivateKey == "" && g.privateKeyPath != "" {
			key, err := os.ReadFile(g.privateKeyPath)
			if err != nil {
				return errors.Wrap(err, "failed to read GitHub App private key")
			}
			g.PrivateKey = string(key)
		}
		if g.AppID == 0 || g.InstallationID == 0 || g.PrivateKey == "" {
			return errors.New("app auth mode requires an app id, an installation id and a private key")
		}
	default:
		return errors.Errorf("unsupported auth mode: %s", g.authMode)
	}
	return nil
}

func (g *Controller) merge(creds Credentials) {
	if creds.AppID != 0 {
		g.AppID = creds.AppID
	}
	if creds.InstallationID != 0 {
		g.InstallationID = creds.InstallationID
	}
	if creds.PrivateKey != "" {
		g.PrivateKey = creds.PrivateKey
	}
	if creds.Token != "" {
		g.Token = creds.Token
	}
}

// Client returns the GitHub client, creating it on first use.
func (g *Controller) Client(ctx context.Context) (*github.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if !g.loaded {
		if err := g.RetrieveCredentials(ctx); err != nil {
			return nil, err
		}
		g.loaded = true
	}

	base := &loggingRoundTripper{logger: g.logger, next: g.transport}
	var client *github.Client
	switch {
	case g.AppID != 0 && g.PrivateKey != "":
		g.logger.Debug("spawning client using GitHub App credentials...", slog.Int64("installationId", g.InstallationID))
		transport, err := ghinstallation.New(base, g.AppID, g.InstallationID, []byte(g.PrivateKey))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create installation transport")
		}
		if g.baseURL != "" {
			transport.BaseURL = strings.TrimSuffix(g.baseURL, "/")
		}
		client = github.NewClient(github_ratelimit.NewClient(transport))
	case g.Token != "":
		g.logger.Debug("spawning client using token...")
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.Token})
		authed := &oauth2.Transport{Source: src, Base: base}
		client = github.NewClient(github_ratelimit.NewClient(authed))
	default:
		return nil, errors.New("no valid credentials found")
	}
	if g.baseURL != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(g.baseURL, g.baseURL); err != nil {
			return nil, errors.Wrap(err, "invalid GitHub API URL")
		}
	}
	g.client = client
	return client, nil
}

// RateLimits fetches the current core rate limit of the client.
func (g *Controller) RateLimits(ctx context.Context) (*github.Rate, error) {
	client, err := g.Client(ctx)
	if err != nil {
		return nil, err
	}
	limits, _, err := client.RateLimit.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch rate limits")
	}
	return limits.GetCore(), nil
}

type loggingRoundTripper struct {
	logger *slog.Logger
	next   http.RoundTripper
}

// RoundTrip logs the request and response.
func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var buf bytes.Buffer
	if req.Body != nil {
		_, _ = io.ReadAll(io.TeeReader(req.Body, &buf))
		req.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
	}
	var container map[string]any
	_ = json.NewDecoder(&buf).Decode(&container)
	l.logger.Log(req.Context(), slog.Level(-8), "sending request", slog.String("method", req.Method), slog.String("url", req.URL.String()), slog.Any("body", container))
	resp, err := l.next.RoundTrip(req)
	if err != nil {
		l.logger.Log(req.Context(), slog.Level(-8), "failed to send request", slog.Any("error", err))
		return nil, err
	}
	l.logger.Log(req.Context(), slog.Level(-8), "received response", slog.Any("status", resp.Status))
	return resp, nil
}
