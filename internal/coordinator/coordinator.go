package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// Tab is one auxiliary page that answers vote and close requests.
type Tab interface {
	ID() string
	Send(ctx context.Context, msg Message) (Message, error)
	Close() error
}

// TabOpener creates hidden tabs.
type TabOpener interface {
	Open(ctx context.Context, url string) (Tab, error)
}

// Metrics receives handshake outcomes. A nil Metrics is ignored.
type Metrics interface {
	ObserveHandshake(result string)
}

// Phase is the progress of one handshake.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseTriggering      Phase = "triggering"
	PhaseConfirmingClose Phase = "confirming_close"
	PhaseDone            Phase = "done"
)

// HandshakeState tracks one open request.
type HandshakeState struct {
	TabID         string
	Phase         Phase
	CloseAttempts int
}

// Config bounds the handshake.
type Config struct {
	// PollInterval is the wait before each vote and close request, and
	// after each denied close.
	PollInterval time.Duration

	// MaxCloseAttempts caps the number of close requests per handshake.
	MaxCloseAttempts int
}

var (
	errCloseDenied   = errors.New("close denied")
	errReplyMismatch = errors.New("reply does not match request")
)

// Coordinator serves open requests from a Bus.
type Coordinator struct {
	bus     *Bus
	opener  TabOpener
	cfg     Config
	metrics Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
	tabSeq  atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records handshake outcomes.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New creates a coordinator.
func New(bus *Bus, opener TabOpener, cfg Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if cfg.MaxCloseAttempts <= 0 {
		cfg.MaxCloseAttempts = 10
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	c := &Coordinator{
		bus:    bus,
		opener: opener,
		cfg:    cfg,
		logger: logger.With("component", "coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Serve consumes requests until ctx is done. Each open request is handled
// on its own goroutine; Serve waits for them before returning.
func (c *Coordinator) Serve(ctx context.Context) error {
	c.logger.Info("coordinator started")
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return ctx.Err()
		case msg := <-c.bus.Requests():
			if msg.Op != OpOpen {
				c.logger.Debug("unknown request", "msg", msg.String())
				c.bus.Respond(msg.Reply(OpDeny))
				continue
			}
			c.wg.Add(1)
			go func(msg Message) {
				defer c.wg.Done()
				c.handleOpen(ctx, msg)
			}(msg)
		}
	}
}

func (c *Coordinator) handleOpen(ctx context.Context, msg Message) {
	c.logger.Debug("receive", "msg", msg.String())

	state, err := c.Handshake(ctx, msg.URL)
	if err != nil {
		c.logger.Error("handshake failed",
			"url", msg.URL,
			"phase", state.Phase,
			"close_attempts", state.CloseAttempts,
			"error", err,
		)
		c.bus.Respond(msg.Reply(OpDeny))
		return
	}
	c.bus.Respond(msg.Reply(OpAck))
}

// Open asks the serving coordinator to run the handshake for url and waits
// for the outcome.
func (c *Coordinator) Open(ctx context.Context, url string) error {
	resp, err := c.bus.Request(ctx, Message{Op: OpOpen, URL: url})
	if err != nil {
		return &types.HandshakeError{URL: url, Phase: string(PhaseIdle), Err: err}
	}
	if resp.Op != OpAck {
		return &types.HandshakeError{URL: url, Phase: string(PhaseDone), Err: types.ErrHandshakeDenied}
	}
	return nil
}

// Handshake runs the vote/close exchange against a fresh tab for url. The
// returned state is always non-nil.
func (c *Coordinator) Handshake(ctx context.Context, url string) (*HandshakeState, error) {
	state := &HandshakeState{Phase: PhaseIdle}

	tab, err := c.opener.Open(ctx, url)
	if err != nil {
		c.observe("open_failed")
		return state, &types.HandshakeError{URL: url, Phase: string(state.Phase), Err: err}
	}
	state.TabID = tab.ID()

	closed := false
	closeTab := func() error {
		if closed {
			return nil
		}
		closed = true
		return tab.Close()
	}
	defer func() { _ = closeTab() }()

	policy := retrypolicy.NewBuilder[any]().
		WithDelay(c.cfg.PollInterval).
		WithMaxRetries(c.cfg.MaxCloseAttempts - 1).
		HandleIf(func(_ any, err error) bool {
			return errors.Is(err, errCloseDenied)
		}).
		Build()

	_, err = failsafe.With[any](policy).WithContext(ctx).Get(func() (any, error) {
		return nil, c.attempt(ctx, tab, state)
	})

	switch {
	case err == nil:
	case ctx.Err() != nil:
		c.observe("canceled")
		return state, &types.HandshakeError{URL: url, Phase: string(state.Phase), Attempts: state.CloseAttempts, Err: ctx.Err()}
	case errors.Is(err, errCloseDenied) || state.CloseAttempts >= c.cfg.MaxCloseAttempts:
		c.observe("denied")
		return state, &types.HandshakeError{URL: url, Phase: string(state.Phase), Attempts: state.CloseAttempts, Err: types.ErrHandshakeDenied}
	default:
		c.observe("error")
		return state, &types.HandshakeError{URL: url, Phase: string(state.Phase), Attempts: state.CloseAttempts, Err: err}
	}

	if err := closeTab(); err != nil {
		c.logger.Warn("tab close failed", "tab", state.TabID, "error", err)
	}
	state.Phase = PhaseDone
	c.observe("ack")
	c.logger.Info("handshake complete", "url", url, "tab", state.TabID, "close_attempts", state.CloseAttempts)
	return state, nil
}

// attempt sends one vote followed by one close.
func (c *Coordinator) attempt(ctx context.Context, tab Tab, state *HandshakeState) error {
	state.Phase = PhaseTriggering
	if err := sleep(ctx, c.cfg.PollInterval); err != nil {
		return err
	}
	if _, err := c.send(ctx, tab, OpVote); err != nil {
		return fmt.Errorf("vote: %w", err)
	}

	state.Phase = PhaseConfirmingClose
	if err := sleep(ctx, c.cfg.PollInterval); err != nil {
		return err
	}
	state.CloseAttempts++
	resp, err := c.send(ctx, tab, OpClose)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if resp.Op != OpAck {
		c.logger.Debug("close denied, retrying", "tab", state.TabID, "attempt", state.CloseAttempts)
		return errCloseDenied
	}
	return nil
}

// send issues one tab request under a fresh correlation id and rejects a
// reply that answers some other request.
func (c *Coordinator) send(ctx context.Context, tab Tab, op Op) (Message, error) {
	req := Message{ID: int(c.tabSeq.Add(1)), Type: TypeRequest, Op: op}
	resp, err := tab.Send(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.ID != req.ID || resp.Type != TypeResponse {
		return resp, fmt.Errorf("%w: sent %s, got %s", errReplyMismatch, req, resp)
	}
	return resp, nil
}

func (c *Coordinator) observe(result string) {
	if c.metrics != nil {
		c.metrics.ObserveHandshake(result)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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
