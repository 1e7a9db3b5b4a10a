package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// spinnerReporter shows run progress on a terminal spinner while the
// controller waits between pages.
type spinnerReporter struct {
	s *spinner.Spinner
}

func newSpinnerReporter() *spinnerReporter {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " starting"
	return &spinnerReporter{s: s}
}

func (r *spinnerReporter) Start() { r.s.Start() }
func (r *spinnerReporter) Stop()  { r.s.Stop() }

func (r *spinnerReporter) Progress(p engine.Progress) {
	suffix := fmt.Sprintf(" %5.1f%%  pages %d  comments %d  eta %s",
		p.Percent, p.Pages, p.Records, p.ETA.Round(time.Second))
	if p.Policy.Kind == types.ByAgeWindow {
		suffix += fmt.Sprintf("  %dh/%dh", p.Diff, p.Hours)
	}
	if p.Done {
		suffix = fmt.Sprintf(" done  pages %d  comments %d", p.Pages, p.Records)
	}

	r.s.Lock()
	r.s.Suffix = suffix
	r.s.Unlock()
}
