package output

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu          sync.Mutex
	method      string
	path        string
	contentType string
	body        []byte
	status      int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.method = r.Method
	f.path = r.URL.Path
	f.contentType = r.Header.Get("Content-Type")
	f.body, _ = io.ReadAll(r.Body)

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func newTestUploader(t *testing.T, fake *fakeS3, prefix string) *S3Uploader {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	uploader, err := NewS3Uploader(S3Config{
		Bucket:    "renders",
		Region:    "us-east-1",
		Endpoint:  server.URL,
		Prefix:    prefix,
		AccessKey: "test-key",
		SecretKey: "test-secret",
	}, nil)
	require.NoError(t, err)
	return uploader
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{}
	uploader := newTestUploader(t, fake, "scenes/default")

	key, err := uploader.Upload(context.Background(), "render.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "scenes/default/render.png", key)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, http.MethodPut, fake.method)
	assert.Equal(t, "/renders/scenes/default/render.png", fake.path)
	assert.Equal(t, "image/png", fake.contentType)
	assert.Equal(t, []byte("png-bytes"), fake.body)
}

func TestS3Uploader_ServerError(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	uploader := newTestUploader(t, fake, "")

	_, err := uploader.Upload(context.Background(), "render.png", []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestS3Uploader_Key(t *testing.T) {
	fake := &fakeS3{}
	assert.Equal(t, "out.webp", newTestUploader(t, fake, "").Key("out.webp"))
	assert.Equal(t, "a/b/out.webp", newTestUploader(t, fake, "a/b/").Key("out.webp"))
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(S3Config{Region: "us-east-1"}, nil)
	assert.Error(t, err)
}
