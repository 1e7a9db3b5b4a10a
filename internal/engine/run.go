package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/IshaanNene/commentgoat/internal/extractor"
	"github.com/IshaanNene/commentgoat/internal/pacing"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// Run pages through the feed from startURL under policy, appending records
// to sink. Once the run is accepted the controller owns sink and closes it
// exactly once before returning. A second run for a busy origin returns
// ErrRunInProgress and leaves sink alone.
func (c *Controller) Run(ctx context.Context, origin string, policy types.Policy, startURL string, sink Sink) (*RunState, error) {
	return c.run(ctx, origin, policy, startURL, sink, nil)
}

// Resume continues the checkpointed run of origin, appending to sink.
func (c *Controller) Resume(ctx context.Context, origin string, sink Sink) (*RunState, error) {
	if c.checkpoints == nil {
		return nil, errors.New("checkpoints are not enabled")
	}
	cp, err := c.checkpoints.Load(origin)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint for %s", origin)
	}
	return c.run(ctx, origin, cp.Policy, cp.NextURL, sink, cp)
}

func (c *Controller) run(ctx context.Context, origin string, policy types.Policy, startURL string, sink Sink, resume *Checkpoint) (state *RunState, err error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if !c.acquire(origin) {
		return nil, types.ErrRunInProgress
	}
	defer c.release(origin)

	state = &RunState{
		Origin:     origin,
		Policy:     policy,
		State:      StateRunning,
		StartURL:   startURL,
		CurrentURL: startURL,
		StartedAt:  c.now(),
	}
	if resume != nil {
		resume.restore(state)
	}

	if c.metrics != nil {
		c.metrics.RunStarted()
	}
	c.logger.Info("run started", "origin", origin, "policy", policy.String(), "url", startURL)

	// The sink is closed and one notice sent on every exit, panics included.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("run panicked", "origin", origin, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", types.ErrRunPanicked, r)
		}
		err = c.finish(policy, sink, state, err)
	}()

	return state, c.loop(ctx, policy, sink, state)
}

// finish closes the sink, records the outcome and sends the notice.
func (c *Controller) finish(policy types.Policy, sink Sink, state *RunState, err error) error {
	if closeErr := sink.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	state.FinishedAt = c.now()
	if err != nil {
		state.State = StateAborted
		state.Err = err
		c.saveCheckpoint(state)
		c.notifier.Failed(state, err)
	} else {
		state.State = StateCompleted
		c.cleanCheckpoint(state.Origin)
		c.notifier.Done(state)
	}
	if c.metrics != nil {
		c.metrics.RunFinished(policy.Kind.String(), state.State.String())
	}
	return err
}

func (c *Controller) loop(ctx context.Context, policy types.Policy, sink Sink, state *RunState) error {
	pacer := c.pacers(ctx)
	url := state.CurrentURL
	blocked := 0

	for {
		delay := pacer.NextDelay()
		c.logger.Info("waiting to reduce request rate", "seconds", delay)
		if err := c.sleep(ctx, pacing.Duration(delay)); err != nil {
			return err
		}

		state.CurrentURL = url
		page, err := c.fetchPage(ctx, url)
		if err != nil {
			return err
		}
		state.Fetches++
		if c.metrics != nil {
			c.metrics.PageFetched()
		}

		if page.Blocked {
			blocked++
			if err := c.clearGate(ctx, url, blocked); err != nil {
				return err
			}
			state.Handshakes++
			// Same URL again on the next paced iteration.
			continue
		}
		blocked = 0
		state.Pages++

		keep := page.Records
		if policy.Kind == types.ByAgeWindow {
			keep = c.filterAge(page.Records, policy.Hours, state)
		}

		if len(keep) > 0 {
			if err := sink.Append(keep); err != nil {
				return err
			}
			state.Records += len(keep)
			if c.metrics != nil {
				c.metrics.RecordsAppended(len(keep))
			}
		}
		if len(page.Records) > 0 {
			state.LastURL = url
		}
		state.Remaining = page.Remaining

		done := c.finished(policy, page, state)
		c.reporter.Progress(c.progress(policy, page, state, pacer.AverageDelay(), done))
		if done {
			return nil
		}
		url = page.NextURL
		state.CurrentURL = url
	}
}

func (c *Controller) fetchPage(ctx context.Context, url string) (*types.PageResult, error) {
	c.logger.Info("fetching", "url", url)
	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		var fe *types.FetchError
		if !errors.As(err, &fe) && ctx.Err() == nil {
			err = &types.FetchError{URL: url, Err: err}
		}
		return nil, err
	}

	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = url
	}
	page, err := c.extractor.Extract(resp.Body, pageURL)
	if err != nil {
		var pe *types.ParseError
		if !errors.As(err, &pe) {
			err = &types.ParseError{URL: url, Err: err}
		}
		return nil, err
	}
	return page, nil
}

// clearGate runs the vote handshake for a gated page. attempt counts the
// consecutive gated fetches of url.
func (c *Controller) clearGate(ctx context.Context, url string, attempt int) error {
	if c.gate == nil {
		return fmt.Errorf("%s: %w", url, types.ErrStillBlocked)
	}
	if attempt > c.maxBlocked {
		return fmt.Errorf("%s after %d handshakes: %w", url, c.maxBlocked, types.ErrStillBlocked)
	}
	c.logger.Info("page requires a vote, opening auxiliary tab", "url", url, "attempt", attempt)
	return c.gate.Open(ctx, url)
}

// filterAge keeps records within hours of the newest post of the run and
// updates the run's latest date and last diff.
func (c *Controller) filterAge(records []types.Record, hours int, state *RunState) []types.Record {
	keep := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if state.LatestDate.IsZero() {
			latest, err := c.latestFrom(rec.Header)
			if err != nil {
				c.skip(rec, err, state)
				continue
			}
			state.LatestDate = latest
		}

		post, err := extractor.PostTimeRelative(rec.Header, state.LatestDate)
		if err != nil {
			c.skip(rec, err, state)
			continue
		}
		diff := int(math.Floor(state.LatestDate.Sub(post).Hours()))
		state.LastDiff = diff
		if diff <= hours {
			keep = append(keep, rec)
		}
	}
	return keep
}

// latestFrom derives the run's reference date from the first header. Dates
// that would land in the future belong to the previous year.
func (c *Controller) latestFrom(header string) (time.Time, error) {
	now := c.now()
	t, err := extractor.ParsePostTime(header, now.Year(), now.Location())
	if err != nil {
		return t, err
	}
	if t.After(now) {
		return extractor.ParsePostTime(header, now.Year()-1, now.Location())
	}
	return t, nil
}

func (c *Controller) skip(rec types.Record, err error, state *RunState) {
	state.Skipped++
	if c.metrics != nil {
		c.metrics.RecordSkipped()
	}
	c.logger.Warn("record skipped", "error", &types.ExtractionMismatch{Header: rec.Header, Err: err})
}

// finished decides whether the run stops after page.
func (c *Controller) finished(policy types.Policy, page *types.PageResult, state *RunState) bool {
	if !page.HasNext() {
		return true
	}
	remainLow := page.HasRemaining && page.Remaining <= 1

	switch policy.Kind {
	case types.ByPageCount:
		return remainLow || state.Pages >= policy.DepthPages
	case types.ByAgeWindow:
		return remainLow || state.LastDiff > policy.Hours
	default:
		if len(page.Records) == 0 {
			return true
		}
		return state.Records > 0 && remainLow
	}
}

func (c *Controller) saveCheckpoint(state *RunState) {
	if c.checkpoints == nil || state.CurrentURL == "" {
		return
	}
	if errors.Is(state.Err, types.ErrRunInProgress) {
		return
	}
	if err := c.checkpoints.Save(newCheckpoint(state, c.now())); err != nil {
		c.logger.Warn("checkpoint save failed", "origin", state.Origin, "error", err)
	}
}

func (c *Controller) cleanCheckpoint(origin string) {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.Clean(origin); err != nil {
		c.logger.Warn("checkpoint clean failed", "origin", origin, "error", err)
	}
}

// ResolveNext fetches url without pacing and returns its next link. Preload
// runs start from the page after the one being read.
func (c *Controller) ResolveNext(ctx context.Context, url string) (string, error) {
	page, err := c.fetchPage(ctx, url)
	if err != nil {
		return "", err
	}
	if !page.HasNext() {
		return "", fmt.Errorf("%s has no next page", url)
	}
	return page.NextURL, nil
}
