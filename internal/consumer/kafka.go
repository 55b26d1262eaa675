// Package consumer runs dispatch passes for push payloads read from Kafka.
package consumer

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"

	"github.com/google/go-github/v84/github"
	"github.com/isometry/gh-tag-trigger/internal/handler/processor"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// Supported SASL mechanisms.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismScramSHA512 = "SCRAM-SHA-512"
)

// Supported offset reset strategies.
const (
	OffsetEarliest = "earliest"
	OffsetLatest   = "latest"
)

// Handler runs one pass over a push payload.
type Handler interface {
	Handle(ctx context.Context, deliveryID string, body []byte) *processor.Bus
}

// Config describes the Kafka connection.
type Config struct {
	Brokers       []string
	Group         string
	Topics        []string
	OffsetReset   string
	SASLMechanism string
	Username      string
	Password      string
	TLS           bool
}

// Kafka consumes push payloads from a topic, one pass per record.
type Kafka struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// NewKafka creates a consumer. No connection is made until Run is called.
func NewKafka(cfg Config, handler Handler, opts ...Option) (*Kafka, error) {
	_inst := &Kafka{handler: handler}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}

	clientOpts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	_inst.client, err = kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kafka client")
	}
	return _inst, nil
}

func clientOptions(cfg Config) ([]kgo.Opt, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one Kafka topic is required")
	}
	if cfg.Group == "" {
		return nil, errors.New("a Kafka consumer group is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
	}
	switch cfg.OffsetReset {
	case "", OffsetEarliest:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	case OffsetLatest:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		return nil, errors.Errorf("unsupported offset reset strategy: %s", cfg.OffsetReset)
	}

	if cfg.SASLMechanism != "" {
		mechanism, err := saslMechanism(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	}
	if cfg.TLS {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	return opts, nil
}

func saslMechanism(cfg Config) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.SASLMechanism) {
	case MechanismPlain:
		return plain.Auth{User: cfg.Username, Pass: cfg.Password}.AsMechanism(), nil
	case MechanismScramSHA256:
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case MechanismScramSHA512:
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha512Mechanism(), nil
	default:
		return nil, errors.Errorf("unsupported SASL mechanism: %s", cfg.SASLMechanism)
	}
}

// Run polls until ctx is done or the client is closed.
func (k *Kafka) Run(ctx context.Context) error {
	k.logger.Info("consuming...")
	for {
		fetches := k.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			k.logger.Info("consumer stopped")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			k.logger.Error("fetch failed", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})
		fetches.EachRecord(func(record *kgo.Record) {
			k.HandleRecord(ctx, record)
		})
	}
}

// HandleRecord runs a pass over the record value.
// The delivery id comes from the X-GitHub-Delivery record header, or else the record key.
func (k *Kafka) HandleRecord(ctx context.Context, record *kgo.Record) *processor.Bus {
	deliveryID := string(record.Key)
	for _, h := range record.Headers {
		if strings.EqualFold(h.Key, github.DeliveryIDHeader) {
			deliveryID = string(h.Value)
			break
		}
	}
	k.logger.Debug("record received",
		slog.String("topic", record.Topic),
		slog.Int("partition", int(record.Partition)),
		slog.Int64("offset", record.Offset))
	return k.handler.Handle(ctx, deliveryID, record.Value)
}

// Close leaves the consumer group and closes the client.
func (k *Kafka) Close() {
	k.client.Close()
}
