package engine_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/extractor"
	"github.com/IshaanNene/commentgoat/internal/fetcher"
	"github.com/IshaanNene/commentgoat/internal/pacing"
	"github.com/IshaanNene/commentgoat/internal/storage"
	"github.com/IshaanNene/commentgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// board serves three pages of two comments each. Page 2 is vote-gated until
// unlocked is set.
type board struct {
	gated    bool
	unlocked atomic.Bool
	hits     atomic.Int32
}

func (b *board) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.hits.Add(1)
	n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/board/"))
	if err != nil || n < 1 || n > 3 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if n == 2 && b.gated && !b.unlocked.Load() {
		fmt.Fprint(w, `<html><body><button class="vote-submit">好き</button>
<ul class="pagination"><li class="page-item next-page"><a href="/board/3?nxc=20">Next</a></li></ul></body></html>`)
		return
	}

	var sb strings.Builder
	sb.WriteString("<html><body>")
	if n < 3 {
		fmt.Fprintf(&sb, `<ul class="pagination"><li class="page-item first-page"><a href="/board/1">First</a></li>`+
			`<li class="page-item next-page"><a href="/board/%d?nxc=%d">Next</a></li></ul>`, n+1, (3-n)*20)
	}
	for i := 2; i >= 1; i-- {
		id := (3-n)*2 + i
		fmt.Fprintf(&sb, `<div class="comment-container"><div class="comment_info">%d: anon 03-15 12:%02d</div>`+
			`<p class="comment_body">comment %d</p></div>`, id, id, id)
	}
	sb.WriteString("</body></html>")
	fmt.Fprint(w, sb.String())
}

type unlockGate struct {
	b     *board
	opens int
}

func (g *unlockGate) Open(ctx context.Context, url string) error {
	g.opens++
	g.b.unlocked.Store(true)
	return nil
}

func newController(t *testing.T, opts ...engine.Option) *engine.Controller {
	t.Helper()
	session, err := fetcher.NewSession(testLogger)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	f := fetcher.NewHTTPFetcher(&cfg.Fetcher, session, testLogger)
	t.Cleanup(func() { _ = f.Close() })

	base := []engine.Option{
		engine.WithCommentsPerPage(2),
		engine.WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	return engine.New(f, extractor.New(config.DefaultSelectors(), testLogger),
		engine.StaticPacer(pacing.New(pacing.Config{})), testLogger, append(base, opts...)...)
}

func TestEndToEndUnboundedExport(t *testing.T) {
	srv := httptest.NewServer(&board{})
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.txt")
	sink, err := storage.NewTextSink(path, testLogger)
	require.NoError(t, err)

	state, err := newController(t).Run(context.Background(), srv.URL, types.PolicyAll(), srv.URL+"/board/1", sink)
	require.NoError(t, err)
	assert.Equal(t, engine.StateCompleted, state.State)
	assert.Equal(t, 3, state.Pages)
	assert.Equal(t, 6, state.Records)
	assert.Equal(t, srv.URL+"/board/3?nxc=20", state.LastURL)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "6: anon 03-15 12:06\ncomment 6\n\n5: anon"))
	assert.True(t, strings.HasSuffix(string(data), "1: anon 03-15 12:01\ncomment 1\n\n"))
	assert.Equal(t, 6, strings.Count(string(data), "\n\n"))
}

func TestEndToEndPageCountExport(t *testing.T) {
	b := &board{}
	srv := httptest.NewServer(b)
	defer srv.Close()

	sink := storage.NewStagingSink(testLogger)
	state, err := newController(t).Run(context.Background(), srv.URL, types.PolicyByCount(4, 2), srv.URL+"/board/1", sink)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Pages)
	assert.Len(t, sink.Records(), 4)
	assert.True(t, sink.Closed())
	assert.EqualValues(t, 2, b.hits.Load())
}

func TestEndToEndGatedPage(t *testing.T) {
	b := &board{gated: true}
	srv := httptest.NewServer(b)
	defer srv.Close()

	gate := &unlockGate{b: b}
	sink := storage.NewStagingSink(testLogger)
	state, err := newController(t, engine.WithGate(gate)).Run(context.Background(), srv.URL, types.PolicyAll(), srv.URL+"/board/1", sink)
	require.NoError(t, err)

	assert.Equal(t, 1, gate.opens)
	assert.Equal(t, 1, state.Handshakes)
	assert.Equal(t, 6, state.Records)
	assert.EqualValues(t, 4, b.hits.Load(), "the gated page is fetched again after the handshake")
}

func TestEndToEndMissingPage(t *testing.T) {
	srv := httptest.NewServer(&board{})
	defer srv.Close()

	sink := storage.NewStagingSink(testLogger)
	state, err := newController(t).Run(context.Background(), srv.URL, types.PolicyAll(), srv.URL+"/board/9", sink)
	require.Error(t, err)

	var fetchErr *types.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, engine.StateAborted, state.State)
	assert.True(t, sink.Closed())
	assert.Empty(t, sink.Records())
}
