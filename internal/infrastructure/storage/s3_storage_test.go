package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realty/backend/internal/infrastructure/config"
)

func validConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Enabled:      true,
		Endpoint:     endpoint,
		Bucket:       "idx-archive",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
		Prefix:       "/pages/",
	}
}

func TestNewS3PageArchive_Validation(t *testing.T) {
	_, err := NewS3PageArchive(nil)
	assert.ErrorContains(t, err, "configuration is required")

	tests := []struct {
		name   string
		mutate func(*config.StorageConfig)
		want   string
	}{
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = "" }, "bucket is required"},
		{"missing access key", func(c *config.StorageConfig) { c.AccessKey = "" }, "access key is required"},
		{"missing secret key", func(c *config.StorageConfig) { c.SecretKey = "" }, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig("http://localhost:9000")
			tt.mutate(cfg)
			_, err := NewS3PageArchive(cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	a, err := NewS3PageArchive(validConfig("localhost:9000"))
	require.NoError(t, err)
	assert.Equal(t, "idx-archive", a.Bucket())
	assert.Equal(t, "pages", a.prefix)
}

func TestNormalizeEndpoint(t *testing.T) {
	got, err := normalizeEndpoint("", false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", got)

	got, err = normalizeEndpoint("minio:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got)

	got, err = normalizeEndpoint("s3.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com", got)

	got, err = normalizeEndpoint("https://s3.example.com", false)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com", got)
}

func TestS3PageArchive_PageKey(t *testing.T) {
	cfg := validConfig("http://localhost:9000")
	cfg.Prefix = ""
	a, err := NewS3PageArchive(cfg)
	require.NoError(t, err)

	runID := uuid.MustParse("7f9c1a52-5d3e-4b7a-9a39-1c2d3e4f5a6b")
	assert.Equal(t, "idx-pages/7f9c1a52-5d3e-4b7a-9a39-1c2d3e4f5a6b/page-0003.json", a.PageKey(runID, 3))
	assert.Equal(t, "idx-pages/7f9c1a52-5d3e-4b7a-9a39-1c2d3e4f5a6b/page-1200.json", a.PageKey(runID, 1200))
}

// fakeS3 serves the handful of path-style calls the archive makes
type fakeS3 struct {
	mu            sync.Mutex
	bucketExists  bool
	objects       map[string][]byte
	contentTypes  map[string]string
	createdBucket bool
}

func newFakeS3(t *testing.T, bucketExists bool) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{
		bucketExists: bucketExists,
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		if !f.bucketExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key == "":
		f.bucketExists = true
		f.createdBucket = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3PageArchive_ArchivePage(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t, true)

	a, err := NewS3PageArchive(validConfig(srv.URL), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	runID := uuid.New()
	body := []byte(`[{"mlsId":"A1","listPrice":450000}]`)
	require.NoError(t, a.ArchivePage(ctx, runID, 1, body))

	key := a.PageKey(runID, 1)
	fake.mu.Lock()
	stored, ok := fake.objects[key]
	contentType := fake.contentTypes[key]
	fake.mu.Unlock()
	require.True(t, ok, "object stored under %s", key)
	assert.True(t, bytes.Contains(stored, body))
	assert.Equal(t, "application/json", contentType)

	exists, err := a.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.ObjectExists(ctx, a.PageKey(runID, 2))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = a.ObjectExists(ctx, "")
	assert.Error(t, err)
	assert.Error(t, a.ArchivePage(ctx, runID, 0, body))
}

func TestS3PageArchive_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a missing bucket", func(t *testing.T) {
		fake, srv := newFakeS3(t, false)
		a, err := NewS3PageArchive(validConfig(srv.URL))
		require.NoError(t, err)

		require.NoError(t, a.EnsureBucket(ctx))
		assert.True(t, fake.createdBucket)
	})

	t.Run("leaves an existing bucket alone", func(t *testing.T) {
		fake, srv := newFakeS3(t, true)
		a, err := NewS3PageArchive(validConfig(srv.URL))
		require.NoError(t, err)

		require.NoError(t, a.EnsureBucket(ctx))
		assert.False(t, fake.createdBucket)
	})
}

func TestS3PageArchive_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a, err := NewS3PageArchive(validConfig(srv.URL))
	require.NoError(t, err)

	err = a.ArchivePage(context.Background(), uuid.New(), 1, []byte(`[]`))
	assert.ErrorContains(t, err, "failed to upload object")
}
