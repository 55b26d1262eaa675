// Package config provides a centralized entrypoint for the application parameters.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"go.yaml.in/yaml/v3"
)

// Runtime modes.
const (
	ModeService     = "service"
	ModeLambdaHTTP  = "lambda-http"
	ModeLambdaEvent = "lambda-event"
	ModeKafka       = "kafka"
)

var (
	// Global is a struct that contains the global configuration.
	Global global
	// GitHub is a struct that contains the configuration for GitHub.
	GitHub github
	// Trigger is a struct that contains the configuration for trigger matching and dispatch.
	Trigger trigger
	// Payload is a struct that contains the configuration for the cause payload store.
	Payload payload
	// Builds is a struct that contains the configuration for the build queue.
	Builds builds
	// Service is a struct that contains the configuration for the service mode.
	Service service
	// Lambda is a struct that contains the configuration for the lambda mode.
	Lambda lambda
	// Kafka is a struct that contains the configuration for the kafka mode.
	Kafka kafka
)

type global struct {
	// Mode is the runtime mode of the application.
	Mode string `yaml:"mode,omitempty" default:"lambda-http"`
	// Logging is a struct that contains the logging configuration.
	Logging struct {
		// Verbosity is the verbosity level of the application. It represents slog levels.
		Verbosity int `yaml:"verbosity,omitempty"`
		// CallerTrace is a flag that enables the caller trace in the logger.
		CallerTrace bool `yaml:"callerTrace,omitempty"`
	} `yaml:"logging,omitempty"`
	// Archive keeps an audit copy of every relevant delivery in S3.
	Archive struct {
		BucketName string `yaml:"bucketName,omitempty"`
		Prefix     string `yaml:"prefix,omitempty" default:"deliveries"`
		Enabled    bool   `yaml:"enabled,omitempty"`
	} `yaml:"archive,omitempty"`
}

type github struct {
	AuthMode       string `yaml:"authMode,omitempty" default:"token"`
	SSMKey         string `yaml:"ssmKey,omitempty"`
	AppID          string `yaml:"appId,omitempty"`
	InstallationID string `yaml:"installationId,omitempty"`
	PrivateKeyPath string `yaml:"privateKeyPath,omitempty"`
	// BaseURL points at a GitHub Enterprise Server API. Empty means github.com.
	BaseURL string `yaml:"baseUrl,omitempty"`
}

type trigger struct {
	// Registry is the path of the YAML job definitions.
	Registry    string        `yaml:"registry,omitempty" default:"jobs.yaml"`
	QuietPeriod time.Duration `yaml:"quietPeriod,omitempty" default:"3s"`
	// Timeout bounds a single schedule call.
	Timeout     time.Duration `yaml:"timeout,omitempty" default:"30s"`
	Concurrency int           `yaml:"concurrency,omitempty" default:"1"`
	CacheSize   int           `yaml:"cacheSize,omitempty" default:"128"`
}

type payload struct {
	// Backend is one of 'file', 's3' or 'gcs'.
	Backend   string `yaml:"backend,omitempty" default:"file"`
	Directory string `yaml:"directory,omitempty" default:"payloads"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

type builds struct {
	// Launcher is one of 'log' or 'github-actions'.
	Launcher string `yaml:"launcher,omitempty" default:"log"`
}

type service struct {
	Path    string        `yaml:"path,omitempty" default:"/"`
	Addr    string        `yaml:"addr,omitempty"`
	Port    string        `yaml:"port,omitempty" default:"8080"`
	Timeout time.Duration `yaml:"timeout,omitempty" default:"5s"`
}

type lambda struct {
	PayloadType string `yaml:"payloadType,omitempty" default:"api-gateway-v2"`
}

type kafka struct {
	Brokers       []string `yaml:"brokers,omitempty"`
	Group         string   `yaml:"group,omitempty" default:"gh-tag-trigger"`
	Topics        []string `yaml:"topics,omitempty" default:"[\"github-push\"]"`
	OffsetReset   string   `yaml:"offsetReset,omitempty" default:"earliest"`
	SASLMechanism string   `yaml:"saslMechanism,omitempty"`
	Username      string   `yaml:"username,omitempty"`
	Password      string   `yaml:"password,omitempty"`
	TLS           bool     `yaml:"tls,omitempty"`
}

// SetDefaults sets the default values for the configuration.
func SetDefaults() error {
	return errors.Join(
		defaults.Set(&Global),
		defaults.Set(&GitHub),
		defaults.Set(&Trigger),
		defaults.Set(&Payload),
		defaults.Set(&Builds),
		defaults.Set(&Service),
		defaults.Set(&Lambda),
		defaults.Set(&Kafka),
	)
}

// LoadFromFile loads the configuration from a file.
func LoadFromFile(path string) error {
	if len(path) == 0 {
		return nil
	}
	fstat, err := os.Stat(path)
	if err != nil {
		return nil //nolint:nilerr // If the file does not exist, we ignore it.
	}
	if fstat.IsDir() {
		return fmt.Errorf("configuration file %s is a directory", path)
	}
	if !fstat.Mode().IsRegular() {
		return fmt.Errorf("configuration file %s is not a regular file", path)
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	type all struct {
		Global  global  `yaml:"global,omitempty"`
		GitHub  github  `yaml:"github,omitempty"`
		Trigger trigger `yaml:"trigger,omitempty"`
		Payload payload `yaml:"payload,omitempty"`
		Builds  builds  `yaml:"builds,omitempty"`
		Service service `yaml:"service,omitempty"`
		Lambda  lambda  `yaml:"lambda,omitempty"`
		Kafka   kafka   `yaml:"kafka,omitempty"`
	}
	var a all
	if err = yaml.Unmarshal(content, &a); err != nil {
		return fmt.Errorf("failed to unmarshal configuration file %s: %w", path, err)
	}
	Global = a.Global
	GitHub = a.GitHub
	Trigger = a.Trigger
	Payload = a.Payload
	Builds = a.Builds
	Service = a.Service
	Lambda = a.Lambda
	Kafka = a.Kafka

	return nil
}
