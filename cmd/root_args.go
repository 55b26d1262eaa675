package cmd

import (
	"time"

	"github.com/isometry/gh-tag-trigger/internal/config"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
)

var envMapString = map[*string]boundEnvVar[string]{
	&config.Global.Mode: {
		Name:        "mode",
		Description: "The application runtime mode. Possible values are 'service', 'lambda-http', 'lambda-event' and 'kafka'",
		Short:       helpers.Ptr("m"),
	},
	&config.Global.Archive.BucketName: {
		Name:        "archive-s3-bucket",
		Description: "The S3 bucket receiving an audit copy of every relevant delivery",
	},
	&config.Global.Archive.Prefix: {
		Name:        "archive-s3-prefix",
		Description: "The key prefix of archived deliveries",
	},
	&config.GitHub.AuthMode: {
		Name:        "github-auth-mode",
		Description: "Authentication credentials provider. Supported values are 'token', 'ssm' and 'app'",
		Short:       helpers.Ptr("A"),
	},
	&config.GitHub.SSMKey: {
		Name:        "github-app-ssm-arn",
		Description: "The SSM parameter key to use when fetching GitHub credentials",
	},
	&config.GitHub.AppID: {
		Name:        "github-app-id",
		Description: "The GitHub App id used in 'app' auth mode",
	},
	&config.GitHub.InstallationID: {
		Name:        "github-app-installation-id",
		Description: "The GitHub App installation id used in 'app' auth mode",
	},
	&config.GitHub.PrivateKeyPath: {
		Name:        "github-app-private-key",
		Description: "Path of the GitHub App private key used in 'app' auth mode",
	},
	&config.GitHub.BaseURL: {
		Name:        "github-base-url",
		Description: "The GitHub Enterprise Server API URL. Empty means github.com",
	},
	&config.Trigger.Registry: {
		Name:        "trigger-registry",
		Description: "Path of the YAML job definitions",
		Short:       helpers.Ptr("r"),
	},
	&config.Payload.Backend: {
		Name:        "payload-backend",
		Description: "Where cause payloads are stored. Supported values are 'file', 's3' and 'gcs'",
	},
	&config.Payload.Directory: {
		Name:        "payload-directory",
		Description: "The directory of the 'file' payload backend",
	},
	&config.Payload.Bucket: {
		Name:        "payload-bucket",
		Description: "The bucket of the 's3' and 'gcs' payload backends",
	},
	&config.Payload.Prefix: {
		Name:        "payload-prefix",
		Description: "The object key prefix of the 's3' and 'gcs' payload backends",
	},
	&config.Builds.Launcher: {
		Name:        "builds-launcher",
		Description: "What happens when a scheduled run leaves its quiet period. Supported values are 'log' and 'github-actions'",
	},
	&config.Service.Addr: {
		Name:        "service-host-addr",
		Description: "The address to serve the service on (default all interfaces in dual-stack mode)",
		Short:       helpers.Ptr("H"),
	},
	&config.Service.Port: {
		Name:        "service-host-port",
		Description: "The port to serve the service on",
		Short:       helpers.Ptr("p"),
	},
	&config.Service.Path: {
		Name:        "service-host-path",
		Description: "The path to accept webhook deliveries on",
		Short:       helpers.Ptr("P"),
	},
	&config.Lambda.PayloadType: {
		Name:        "lambda-payload-type",
		Description: "The payload type to expect when running in Lambda mode. Supported values are 'api-gateway-v1', 'api-gateway-v2' and 'lambda-url'",
	},
	&config.Kafka.Group: {
		Name:        "kafka-group",
		Description: "The Kafka consumer group",
	},
	&config.Kafka.OffsetReset: {
		Name:        "kafka-offset-reset",
		Description: "Where a new consumer group starts. Supported values are 'earliest' and 'latest'",
	},
	&config.Kafka.SASLMechanism: {
		Name:        "kafka-sasl-mechanism",
		Description: "The SASL mechanism. Supported values are 'PLAIN', 'SCRAM-SHA-256' and 'SCRAM-SHA-512'. Empty disables SASL",
	},
	&config.Kafka.Username: {
		Name:        "kafka-username",
		Description: "The SASL username",
	},
	&config.Kafka.Password: {
		Name:        "kafka-password",
		Description: "The SASL password",
		Hidden:      true,
	},
}

var envMapBool = map[*bool]boundEnvVar[bool]{
	&config.Global.Logging.CallerTrace: {
		Name:        "verbosity-caller-trace",
		Description: "Enable caller trace in logs",
		Short:       helpers.Ptr("V"),
	},
	&config.Global.Archive.Enabled: {
		Name:        "archive-s3",
		Description: "Enable S3 archiving of relevant deliveries",
	},
	&config.Kafka.TLS: {
		Name:        "kafka-tls",
		Description: "Connect to Kafka over TLS",
	},
}

var envMapCount = map[*int]boundEnvVar[int]{
	&config.Global.Logging.Verbosity: {
		Name:        "verbosity",
		Description: "Increase logger verbosity (default WarnLevel)",
		Short:       helpers.Ptr("v"),
		Count:       true,
	},
}

var envMapInt = map[*int]boundEnvVar[int]{
	&config.Trigger.Concurrency: {
		Name:        "trigger-concurrency",
		Description: "How many jobs of a single push are scheduled concurrently",
	},
	&config.Trigger.CacheSize: {
		Name:        "trigger-pattern-cache-size",
		Description: "How many compiled tag patterns are kept. 0 disables the cache",
	},
}

var envMapDuration = map[*time.Duration]boundEnvVar[time.Duration]{
	&config.Trigger.QuietPeriod: {
		Name:        "trigger-quiet-period",
		Description: "The quiet period of scheduled builds",
		Short:       helpers.Ptr("q"),
	},
	&config.Trigger.Timeout: {
		Name:        "trigger-schedule-timeout",
		Description: "The upper bound of a single schedule call",
	},
	&config.Service.Timeout: {
		Name:        "service-io-timeout",
		Description: "The timeout for I/O operations",
		Short:       helpers.Ptr("t"),
	},
}

var envMapStringSlice = map[*[]string]boundEnvVar[[]string]{
	&config.Kafka.Brokers: {
		Name:        "kafka-brokers",
		Description: "The Kafka seed brokers",
	},
	&config.Kafka.Topics: {
		Name:        "kafka-topics",
		Description: "The Kafka topics carrying push payloads",
	},
}
