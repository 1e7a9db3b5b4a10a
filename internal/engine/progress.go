package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/IshaanNene/commentgoat/internal/pacing"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// Progress is the estimate reported after each page.
type Progress struct {
	Origin    string
	Policy    types.Policy
	URL       string
	Pages     int
	Records   int
	Remaining int
	// Diff and Hours are set for age-window runs.
	Diff    int
	Hours   int
	Percent float64
	ETA     time.Duration
	Done    bool
}

func (c *Controller) progress(policy types.Policy, page *types.PageResult, state *RunState, avg float64, done bool) Progress {
	p := Progress{
		Origin:    state.Origin,
		Policy:    policy,
		URL:       state.CurrentURL,
		Pages:     state.Pages,
		Records:   state.Records,
		Remaining: page.Remaining,
		Hours:     policy.Hours,
		Diff:      state.LastDiff,
		Done:      done,
	}
	if done {
		p.Percent = 100
		return p
	}
	pct, eta := estimate(policy, state.Pages, state.Records, page.Remaining, page.HasRemaining, state.LastDiff, c.perPage, avg)
	p.Percent = pct
	p.ETA = pacing.Duration(eta)
	return p
}

// estimate returns the completion percentage (floored to one decimal) and
// the remaining time in seconds. Without a count hint only the page-count
// policy can estimate anything.
func estimate(policy types.Policy, pages, saved, remain int, hint bool, diff, per int, avg float64) (float64, float64) {
	pagesLeftByHint := float64(remain/per + 1)

	var frac, etaPages float64
	switch policy.Kind {
	case types.ByPageCount:
		depth := policy.DepthPages
		if !hint || pages*per+remain >= depth*per {
			etaPages = float64(depth - pages)
			frac = float64(pages) / float64(depth)
		} else {
			etaPages = pagesLeftByHint
			frac = float64(pages*per) / float64(pages*per+remain)
		}
	case types.ByAgeWindow:
		hours := policy.Hours
		etaPages = pagesLeftByHint
		if diff > 0 {
			byRate := math.Floor(float64((hours-diff)*saved) / float64(diff) / float64(per))
			etaPages = math.Min(byRate, pagesLeftByHint)
		}
		frac = float64(diff) / float64(hours)
	default:
		etaPages = pagesLeftByHint
		if hint && saved+remain > 0 {
			frac = float64(saved) / float64(saved+remain)
		}
	}

	frac = math.Max(0, math.Min(1, frac))
	return math.Floor(frac*1000) / 10, math.Max(0, etaPages) * avg
}

// LogReporter writes progress to a logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter that logs at info level.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "progress")}
}

func (r *LogReporter) Progress(p Progress) {
	if p.Done {
		r.logger.Info("run complete", "pages", p.Pages, "records", p.Records)
		return
	}
	attrs := []any{
		"eta", p.ETA.Round(time.Second).String(),
		"progress", p.Percent,
		"pages", p.Pages,
		"records", p.Records,
		"remaining", p.Remaining,
	}
	if p.Policy.Kind == types.ByAgeWindow {
		attrs = append(attrs, "hours", p.Diff, "window", p.Hours)
	}
	r.logger.Info("estimated remaining time", attrs...)
}

// LogNotifier writes the terminal notice to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs the outcome.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Done(s *RunState) {
	n.logger.Info("finished",
		"origin", s.Origin,
		"policy", s.Policy.String(),
		"pages", s.Pages,
		"records", s.Records,
		"skipped", s.Skipped,
		"last_url", s.LastURL,
		"elapsed", s.Elapsed().Round(time.Millisecond),
	)
}

func (n *LogNotifier) Failed(s *RunState, err error) {
	n.logger.Error("run interrupted",
		"origin", s.Origin,
		"url", s.CurrentURL,
		"pages", s.Pages,
		"records", s.Records,
		"error", err,
	)
}

// Reporters fans progress out to several reporters in order.
type Reporters []Reporter

func (rs Reporters) Progress(p Progress) {
	for _, r := range rs {
		r.Progress(p)
	}
}
