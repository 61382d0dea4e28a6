package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"docvault_backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir(), BaseURL: "/api/v1/files/"})
	require.NoError(t, err)

	n, err := s.Save(ctx, "user-1/doc.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	ok, err := s.Exists(ctx, "user-1/doc.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, "user-1/doc.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	url, err := s.GetSignedURL(ctx, "user-1/doc.txt", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/files/user-1/doc.txt", url)

	require.NoError(t, s.Delete(ctx, "user-1/doc.txt"))
	require.NoError(t, s.Delete(ctx, "user-1/doc.txt"), "deleting a missing object is not an error")

	_, err = s.Get(ctx, "user-1/doc.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestLocalStorage_KeysStayInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := storage.NewLocalStorage(storage.Config{BasePath: base})
	require.NoError(t, err)

	_, err = s.Save(ctx, "../../escape.txt", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "escape.txt")
	require.NoError(t, err)
	assert.True(t, ok, "traversal is clamped to the base directory")

	_, err = s.Save(ctx, "", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s, err := storage.NewLocalStorage(storage.Config{BasePath: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "k", strings.NewReader("data"), 4, "")
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := s.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStorage_UnknownType(t *testing.T) {
	_, err := storage.NewStorage(context.Background(), storage.Config{Type: "ftp"})
	assert.Error(t, err)
}
