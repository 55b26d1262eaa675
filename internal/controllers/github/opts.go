package github

import (
	"log/slog"
	"net/http"
)

// WithToken sets the authentication token for the Controller instance.
func WithToken(token string) GHOption {
	return func(a *Controller) {
		a.Token = token
	}
}

// WithAuthMode sets the authentication mode for a Controller instance using the given mode string.
func WithAuthMode(mode string) GHOption {
	return func(a *Controller) {
		a.authMode = mode
	}
}

// WithSecretSource sets the source SSM credentials are read from.
func WithSecretSource(secrets SecretSource) GHOption {
	return func(a *Controller) {
		a.secrets = secrets
	}
}

// WithSSMKey sets the SSM key used for fetching credentials and applies it to the Controller instance.
func WithSSMKey(key string) GHOption {
	return func(a *Controller) {
		a.ssmKey = key
	}
}

// WithApp configures GitHub App credentials. The private key is read from privateKeyPath.
func WithApp(appID, installationID int64, privateKeyPath string) GHOption {
	return func(a *Controller) {
		a.AppID = appID
		a.InstallationID = installationID
		a.privateKeyPath = privateKeyPath
	}
}

// WithBaseURL points the client at a GitHub Enterprise API.
func WithBaseURL(url string) GHOption {
	return func(a *Controller) {
		a.baseURL = url
	}
}

// WithTransport sets the HTTP transport under the authentication layers.
func WithTransport(transport http.RoundTripper) GHOption {
	return func(a *Controller) {
		a.transport = transport
	}
}

// WithLogger sets a custom logger for the Controller instance to use for logging operations.
func WithLogger(logger *slog.Logger) GHOption {
	return func(a *Controller) {
		a.logger = logger
	}
}
