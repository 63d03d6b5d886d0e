package storage

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAzureArchiveRequiresContainer(t *testing.T) {
	_, err := NewAzureArchive(AzureOptions{AccountName: "acct", AccountKey: base64.StdEncoding.EncodeToString([]byte("key"))})
	assert.Error(t, err)
}

func TestNewAzureArchiveRejectsBadKey(t *testing.T) {
	_, err := NewAzureArchive(AzureOptions{AccountName: "acct", AccountKey: "not base64!", Container: "captures"})
	assert.Error(t, err)
}

func TestNewAzureArchive(t *testing.T) {
	archive, err := NewAzureArchive(AzureOptions{
		AccountName: "acct",
		AccountKey:  base64.StdEncoding.EncodeToString([]byte("key")),
		Container:   "captures",
	})
	require.NoError(t, err)
	assert.NotNil(t, archive)
}

func TestNoopArchive(t *testing.T) {
	url, err := NewNoopArchive().Store(context.Background(), "a.jpg", []byte{1}, "image/jpeg")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestMemoryArchive(t *testing.T) {
	archive := NewMemoryArchive()
	data := []byte{0xff, 0xd8}

	url, err := archive.Store(context.Background(), "2026-01-02/s1/c1.jpg", data, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "mem://2026-01-02/s1/c1.jpg", url)

	data[0] = 0
	got, contentType, ok := archive.Get("2026-01-02/s1/c1.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8}, got, "stored bytes are copied")
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, 1, archive.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = archive.Store(ctx, "x", nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAzureArchiveRetriesContainerCreation(t *testing.T) {
	var creates, uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Query().Get("restype") == "container" {
			creates.Add(1)
		} else {
			uploads.Add(1)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	archive, err := NewAzureArchive(AzureOptions{
		AccountName: "acct",
		AccountKey:  base64.StdEncoding.EncodeToString([]byte("key")),
		Container:   "captures",
		ServiceURL:  server.URL,
	})
	require.NoError(t, err)

	// A cancelled first attempt must not disable the archive
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = archive.Store(ctx, "a.jpg", []byte{0xff}, "image/jpeg")
	require.Error(t, err)

	url, err := archive.Store(context.Background(), "a.jpg", []byte{0xff}, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/captures/a.jpg"), url)

	_, err = archive.Store(context.Background(), "b.jpg", []byte{0xff}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int32(1), creates.Load(), "container is created once after success")
	assert.Equal(t, int32(2), uploads.Load())
}
