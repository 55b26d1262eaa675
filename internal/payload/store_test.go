package payload_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/isometry/gh-tag-trigger/internal/controllers/aws"
	"github.com/isometry/gh-tag-trigger/internal/payload"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = "{\"ref\":\"refs/tags/v1.0.0\",\n  \"pusher\": {\"name\": \"octocat\"}}\n"

type memObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) PutObject(_ context.Context, bucket, key string, body []byte, contentType string) error {
	m.objects[bucket+"/"+key] = body
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *memObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.Wrap(aws.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func read(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestStores(t *testing.T) {
	testCases := []struct {
		Name  string
		Store func(t *testing.T) payload.Store
	}{
		{
			Name:  "file",
			Store: func(t *testing.T) payload.Store { return payload.NewFileStore(t.TempDir()) },
		},
		{
			Name:  "s3",
			Store: func(*testing.T) payload.Store { return payload.NewS3Store(newMemObjects(), "bucket", "payloads") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			store := tc.Store(t)
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, "run-1", []byte(body)))
			rc, err := store.Get(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, body, read(t, rc))

			_, err = store.Get(ctx, "run-2")
			assert.True(t, errors.Is(err, payload.ErrNotFound))

			for _, id := range []string{"", ".", "..", "../etc", `a\b`} {
				assert.Error(t, store.Put(ctx, id, []byte(body)), id)
				_, err = store.Get(ctx, id)
				assert.True(t, errors.Is(err, payload.ErrNotFound), id)
			}
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := payload.NewFileStore(dir)
	require.NoError(t, store.Put(context.Background(), "run-1", []byte(body)))

	b, err := os.ReadFile(filepath.Join(dir, "run-1", "payload.json"))
	require.NoError(t, err)
	assert.Equal(t, body, string(b))

	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestS3Store_Layout(t *testing.T) {
	objects := newMemObjects()
	store := payload.NewS3Store(objects, "bucket", "payloads")
	require.NoError(t, store.Put(context.Background(), "run-1", []byte(body)))

	assert.Equal(t, body, string(objects.objects["bucket/payloads/run-1/payload.json"]))
	assert.Equal(t, payload.ContentType, objects.types["bucket/payloads/run-1/payload.json"])
}
