package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
)

// ObjectWriter stores an object, e.g. in S3.
type ObjectWriter interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

type archiveProcessor struct {
	logger *slog.Logger
	writer ObjectWriter
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiveProcessor creates the processor keeping an audit copy of every relevant push in bucket.
// Failures are logged and never end the chain.
func NewArchiveProcessor(writer ObjectWriter, bucket, prefix string, opts ...Option) Processor {
	_inst := &archiveProcessor{
		writer: writer,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
	applyOpts(_inst, opts...)
	return _inst
}

func (p *archiveProcessor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *archiveProcessor) Process(ctx context.Context, bus *Bus) error {
	logger := loggerFor(p.logger, bus, "processor:archive")
	id := bus.DeliveryID
	if id == "" {
		id = uuid.NewString()
	}
	key := path.Join(p.prefix, fmt.Sprintf("%s.%s.json", p.now().UTC().Format(time.RFC3339Nano), id))
	if err := p.writer.PutObject(ctx, p.bucket, key, bus.Body, "application/json"); err != nil {
		logger.Warn("failed to archive push event", slog.String("bucket", p.bucket), slog.Any("error", err))
		return nil
	}
	logger.Debug("archived push event", slog.String("bucket", p.bucket), slog.String("key", key))
	return nil
}
