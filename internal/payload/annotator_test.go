package payload_test

import (
	"context"
	"io"
	"testing"

	"github.com/isometry/gh-tag-trigger/internal/payload"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	puts int
}

func (s *failingStore) Put(context.Context, string, []byte) error {
	s.puts++
	return errors.New("disk full")
}

func (s *failingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, payload.ErrNotFound
}

func TestAnnotator_Attach(t *testing.T) {
	store := payload.NewFileStore(t.TempDir())
	a := payload.NewAnnotator(store, nil)

	a.Attach(context.Background(), "run-1", []byte(body))

	rc, err := store.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, body, read(t, rc))
}

func TestAnnotator_NilPayload(t *testing.T) {
	store := &failingStore{}
	a := payload.NewAnnotator(store, nil)

	assert.NotPanics(t, func() { a.Attach(context.Background(), "run-1", nil) })
	assert.Equal(t, 0, store.puts)
}

func TestAnnotator_StoreFailure(t *testing.T) {
	store := &failingStore{}
	a := payload.NewAnnotator(store, nil)

	assert.NotPanics(t, func() { a.Attach(context.Background(), "run-1", []byte(body)) })
	assert.Equal(t, 1, store.puts)
}
