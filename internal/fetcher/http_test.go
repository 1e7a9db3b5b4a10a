package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T) (*HTTPFetcher, *Session) {
	t.Helper()
	cfg := config.DefaultConfig().Fetcher
	session, err := NewSession(testLogger())
	require.NoError(t, err)
	f := NewHTTPFetcher(&cfg, session, testLogger())
	t.Cleanup(func() { _ = f.Close() })
	return f, session
}

func TestFetchPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip, deflate, br", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, "text/html", resp.ContentType)
	assert.True(t, resp.IsSuccess())
}

func TestFetchDecodesCompressedBodies(t *testing.T) {
	payload := []byte("<html><p class=\"comment_body\">圧縮</p></html>")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(payload)
	require.NoError(t, gw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write(payload)
	require.NoError(t, bw.Close())

	encoded := map[string][]byte{"gzip": gz.Bytes(), "br": br.Bytes()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := r.URL.Query().Get("enc")
		w.Header().Set("Content-Encoding", enc)
		_, _ = w.Write(encoded[enc])
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)
	for _, enc := range []string{"gzip", "br"} {
		t.Run(enc, func(t *testing.T) {
			resp, err := f.Fetch(context.Background(), srv.URL+"/?enc="+enc)
			require.NoError(t, err)
			assert.Equal(t, payload, resp.Body)
		})
	}
}

func TestFetchNonSuccessIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "gone", http.StatusNotFound)
		case "/busy":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.IsRetryable())

	_, err = f.Fetch(context.Background(), srv.URL+"/busy")
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	assert.True(t, fe.IsRetryable())
	assert.Equal(t, 7*time.Second, fe.RetryAfter)
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, types.ErrEmptyResponse)
}

func TestFetchSendsImportedCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("voted")
		if err != nil {
			_, _ = w.Write([]byte("no cookie"))
			return
		}
		_, _ = w.Write([]byte("cookie=" + c.Value))
	}))
	defer srv.Close()

	f, session := newTestFetcher(t)
	require.NoError(t, session.Import(srv.URL, []*http.Cookie{{Name: "voted", Value: "1", Path: "/"}}))

	resp, err := f.Fetch(context.Background(), srv.URL+"/board")
	require.NoError(t, err)
	assert.Equal(t, "cookie=1", string(resp.Body))
	assert.Len(t, session.Cookies(srv.URL), 1)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL)
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	assert.False(t, fe.Retryable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, 120*time.Second, parseRetryAfter("600"))
	assert.Equal(t, 5*time.Second, parseRetryAfter("soon"))
}
