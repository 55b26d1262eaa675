// Package payload stores the raw push notification that caused each scheduled run and serves it back.
package payload

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/isometry/gh-tag-trigger/internal/controllers/aws"
	"github.com/pkg/errors"
)

// FileName is the name of the stored payload under each run.
const FileName = "payload.json"

// ContentType is the content type payloads are stored and served with.
const ContentType = "application/json;charset=UTF-8"

// ErrNotFound is returned by Get when no payload exists for the run.
var ErrNotFound = errors.New("payload not found")

// Store persists one payload per run. A stored payload is never modified.
type Store interface {
	Put(ctx context.Context, runID string, payload []byte) error
	Get(ctx context.Context, runID string) (io.ReadCloser, error)
}

func validRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return errors.Errorf("invalid run id %q", runID)
	}
	return nil
}

func objectKey(prefix, runID string) string {
	return path.Join(prefix, runID, FileName)
}

// FileStore keeps payloads at <dir>/<runID>/payload.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Put(_ context.Context, runID string, payload []byte) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	runDir := filepath.Join(s.dir, runID)
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return errors.Wrap(err, "failed to create run directory")
	}
	// write then rename so readers never observe a partial file
	tmp, err := os.CreateTemp(runDir, FileName+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create payload file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err = tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write payload")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write payload")
	}
	return errors.Wrap(os.Rename(tmp.Name(), filepath.Join(runDir, FileName)), "failed to store payload")
}

func (s *FileStore) Get(_ context.Context, runID string) (io.ReadCloser, error) {
	if err := validRunID(runID); err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	f, err := os.Open(filepath.Join(s.dir, runID, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open payload")
	}
	return f, nil
}

// ObjectStore is the object API of the AWS controller.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Store keeps payloads at s3://<bucket>/<prefix>/<runID>/payload.json.
type S3Store struct {
	objects ObjectStore
	bucket  string
	prefix  string
}

func NewS3Store(objects ObjectStore, bucket, prefix string) *S3Store {
	return &S3Store{objects: objects, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Put(ctx context.Context, runID string, payload []byte) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	return s.objects.PutObject(ctx, s.bucket, objectKey(s.prefix, runID), payload, ContentType)
}

func (s *S3Store) Get(ctx context.Context, runID string) (io.ReadCloser, error) {
	if err := validRunID(runID); err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	rc, err := s.objects.GetObject(ctx, s.bucket, objectKey(s.prefix, runID))
	if errors.Is(err, aws.ErrNotFound) {
		return nil, errors.Wrap(ErrNotFound, runID)
	}
	return rc, err
}

// GCSStore keeps payloads at gs://<bucket>/<prefix>/<runID>/payload.json.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Put(ctx context.Context, runID string, payload []byte) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	obj := s.client.Bucket(s.bucket).Object(objectKey(s.prefix, runID))
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = ContentType
	if _, err := io.Copy(w, bytes.NewReader(payload)); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "failed to write payload to GCS")
	}
	return errors.Wrap(w.Close(), "failed to store payload in GCS")
}

func (s *GCSStore) Get(ctx context.Context, runID string) (io.ReadCloser, error) {
	if err := validRunID(runID); err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	r, err := s.client.Bucket(s.bucket).Object(objectKey(s.prefix, runID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.Wrap(ErrNotFound, runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read payload from GCS")
	}
	return r, nil
}
