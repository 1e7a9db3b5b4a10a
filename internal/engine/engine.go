package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// State is the lifecycle state of one run.
type State int32

const (
	StateIdle      State = 0
	StateRunning   State = 1
	StateCompleted State = 2
	StateAborted   State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Response, error)
}

// Extractor turns a page body into records and a next link.
type Extractor interface {
	Extract(body []byte, pageURL string) (*types.PageResult, error)
}

// Gate clears a vote-gated page. It returns once the page can be fetched
// again, or with an error when it cannot be cleared.
type Gate interface {
	Open(ctx context.Context, url string) error
}

// Pacer decides how long to wait before each fetch.
type Pacer interface {
	NextDelay() float64
	AverageDelay() float64
}

// PacerFactory builds the pacer of one run. It is called once at run start.
type PacerFactory func(ctx context.Context) Pacer

// StaticPacer returns a factory that always yields p.
func StaticPacer(p Pacer) PacerFactory {
	return func(context.Context) Pacer { return p }
}

// Sink receives the records of a run.
type Sink interface {
	Append(records []types.Record) error
	Close() error
}

// Metrics receives run counters. A nil Metrics is ignored.
type Metrics interface {
	PageFetched()
	RecordsAppended(n int)
	RecordSkipped()
	RunStarted()
	RunFinished(policy, result string)
}

// Reporter receives progress after every page.
type Reporter interface {
	Progress(p Progress)
}

// Notifier receives exactly one terminal notice per run.
type Notifier interface {
	Done(state *RunState)
	Failed(state *RunState, err error)
}

// RunState is the cursor and counters of one run.
type RunState struct {
	Origin     string
	Policy     types.Policy
	State      State
	StartURL   string
	CurrentURL string
	// LastURL is the last page that yielded records.
	LastURL    string
	Fetches    int
	Pages      int
	Records    int
	Skipped    int
	Handshakes int
	Remaining  int
	LatestDate time.Time
	LastDiff   int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Elapsed returns the run duration so far.
func (s *RunState) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Controller drives paginated runs. Runs execute on the caller's goroutine;
// at most one run per origin is active at a time.
type Controller struct {
	fetcher     Fetcher
	extractor   Extractor
	pacers      PacerFactory
	gate        Gate
	reporter    Reporter
	notifier    Notifier
	metrics     Metrics
	checkpoints *CheckpointManager

	perPage    int
	maxBlocked int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithGate sets the handler for vote-gated pages. Without one a gated page
// fails the run.
func WithGate(g Gate) Option { return func(c *Controller) { c.gate = g } }

// WithReporter sets the progress sink.
func WithReporter(r Reporter) Option { return func(c *Controller) { c.reporter = r } }

// WithNotifier sets the terminal notice sink.
func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option { return func(c *Controller) { c.metrics = m } }

// WithCheckpoints persists the cursor of aborted runs.
func WithCheckpoints(cm *CheckpointManager) Option {
	return func(c *Controller) { c.checkpoints = cm }
}

// WithCommentsPerPage sets the page size used by progress estimates.
func WithCommentsPerPage(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithMaxBlockedRetries bounds consecutive gated fetches of one page.
func WithMaxBlockedRetries(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxBlocked = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithSleep replaces the pacing wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// New creates a Controller.
func New(f Fetcher, x Extractor, pacers PacerFactory, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		fetcher:    f,
		extractor:  x,
		pacers:     pacers,
		perPage:    20,
		maxBlocked: 3,
		now:        time.Now,
		sleep:      sleepCtx,
		logger:     logger.With("component", "controller"),
		active:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = NewLogReporter(logger)
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(logger)
	}
	return c
}

// Busy reports whether a run for origin is in progress.
func (c *Controller) Busy(origin string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[origin]
	return ok
}

func (c *Controller) acquire(origin string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[origin]; ok {
		return false
	}
	c.active[origin] = struct{}{}
	return true
}

func (c *Controller) release(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, origin)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
