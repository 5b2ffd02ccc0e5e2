package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/drummonds/pdfembed/engine/conversion"
)

var (
	_ conversion.ProgressSink = (*progress)(nil)
	_ conversion.FailureSink  = (*failureReport)(nil)
)

// progress shows conversion fractions as a percentage bar
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer, description string) *progress {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &progress{bar: bar}
}

func (p *progress) Report(fraction float64) {
	_ = p.bar.Set(int(fraction*100 + 0.5))
}

// failureReport collects page failures so they print after the bar is done
type failureReport struct {
	mu       sync.Mutex
	failures []*conversion.PageRenderError
}

func (r *failureReport) PageFailed(err *conversion.PageRenderError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *failureReport) Print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) == 0 {
		return
	}
	warn := color.New(color.FgYellow)
	failed := color.New(color.FgRed)
	warn.Fprintf(w, "%d page(s) could not be converted:\n", len(r.failures))
	for _, err := range r.failures {
		failed.Fprintf(w, "  page %d (%s): %v\n", err.Page, err.Stage, err.Err)
	}
}
