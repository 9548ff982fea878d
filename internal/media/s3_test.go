package media_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/media"
)

// fakeS3 is a path-style bucket that keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(b)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = io.WriteString(w, body)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeBucket(t *testing.T) (*media.S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := media.NewS3(context.Background(), media.S3Options{
		Bucket:   "shop",
		Region:   "us-east-1",
		Endpoint: srv.URL,
		Key:      "test",
		Secret:   "test",
		BaseURL:  "https://cdn.example.com/",
	})
	require.NoError(t, err)
	return store, fake
}

func TestS3PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, fake := newFakeBucket(t)

	require.NoError(t, store.Put(ctx, "products/p1/a.png", strings.NewReader("PNG"), "image/png"))
	fake.mu.Lock()
	stored := fake.objects["/shop/products/p1/a.png"]
	ct := fake.types["/shop/products/p1/a.png"]
	fake.mu.Unlock()
	assert.Contains(t, stored, "PNG")
	assert.Equal(t, "image/png", ct)

	_, err := store.Open(ctx, "products/p1/missing.png")
	assert.ErrorIs(t, err, media.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "products/p1/a.png"))
	_, err = store.Open(ctx, "products/p1/a.png")
	assert.ErrorIs(t, err, media.ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, "../x.png", strings.NewReader(""), ""), media.ErrBadKey)
	assert.Equal(t, "https://cdn.example.com/products/p1/a.png", store.URL("products/p1/a.png"))
}

func TestS3Config(t *testing.T) {
	_, err := media.NewS3(context.Background(), media.S3Options{})
	assert.Error(t, err, "bucket is required")

	store, err := media.NewS3(context.Background(), media.S3Options{Bucket: "shop", Region: "eu-west-1", Key: "k", Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.s3.eu-west-1.amazonaws.com/k.png", store.URL("k.png"))
}
