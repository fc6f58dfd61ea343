package images

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ketohub/internal/errors"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F'}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/main.jpg", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ketohub-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpegBytes)
	})
	mux.HandleFunc("/params.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "Image/JPEG; charset=binary")
		_, _ = w.Write(jpegBytes)
	})
	mux.HandleFunc("/main.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_JPEG(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.Client(), Options{UserAgent: "ketohub-test"})

	data, err := f.Fetch(context.Background(), srv.URL+"/main.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestFetch_BodyOverLimit(t *testing.T) {
	srv := newServer(t)

	f := NewFetcher(srv.Client(), Options{UserAgent: "ketohub-test", MaxBodyBytes: int64(len(jpegBytes)) - 1})
	_, err := f.Fetch(context.Background(), srv.URL+"/main.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
	assert.EqualValues(t, len(jpegBytes)-1, errors.GetContext(err)["limit"])
	assert.Equal(t, srv.URL+"/main.jpg", errors.GetContext(err)["url"])

	f = NewFetcher(srv.Client(), Options{UserAgent: "ketohub-test", MaxBodyBytes: int64(len(jpegBytes))})
	data, err := f.Fetch(context.Background(), srv.URL+"/main.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestFetch_MediaTypeParamsIgnored(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.Client(), Options{})

	data, err := f.Fetch(context.Background(), srv.URL+"/params.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
}

func TestFetch_PNGRejected(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.Client(), Options{})

	data, err := f.Fetch(context.Background(), srv.URL+"/main.png")
	assert.Nil(t, data)

	var target *errors.UnexpectedImageTypeError
	require.True(t, stderrors.As(err, &target))
	assert.Equal(t, "image/png", target.DeclaredType)
	assert.Equal(t, srv.URL+"/main.png", target.URL)
}

func TestFetch_NotFound(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.Client(), Options{})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.jpg")
	var target *errors.ImageDownloadError
	require.True(t, stderrors.As(err, &target))
	assert.Equal(t, http.StatusNotFound, target.StatusCode)
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := newServer(t)
	addr := srv.URL
	srv.Close()

	f := NewFetcher(nil, Options{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), addr+"/main.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := newServer(t)
	f := NewFetcher(srv.Client(), Options{RatePerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL+"/main.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
}

func TestHostLimiter_PerHost(t *testing.T) {
	h := newHostLimiter(1000)
	require.NoError(t, h.wait(context.Background(), "a.example"))
	require.NoError(t, h.wait(context.Background(), "B.example"))
	assert.Len(t, h.limiters, 2)

	var disabled *hostLimiter
	assert.NoError(t, disabled.wait(context.Background(), "a.example"))
}
