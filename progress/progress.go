package progress

import (
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mail-graph/stats"
)

// Bar shows how many corpus documents have been scanned.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	enabled bool
}

// New creates a progress bar over total documents. The bar is only drawn for
// the "info" log level, so it does not interleave with debug output.
func New(total int, logLevel string, w io.Writer) *Bar {
	bar := &Bar{
		total:   total,
		enabled: logLevel == "info" && total > 0,
	}
	if !bar.enabled {
		return bar
	}

	printer := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Scanning corpus").
		WithShowElapsedTime(true).
		WithElapsedTimeRoundingFactor(time.Second)
	if w != nil {
		printer = printer.WithWriter(w)
	}

	pb, err := printer.Start()
	if err != nil {
		bar.enabled = false
		return bar
	}
	bar.pb = pb
	return bar
}

// Update advances the bar once per scanned document and prints read errors
// above it.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
	case stats.EventTypeReadError:
		if evt.Err != nil {
			pterm.Error.Printf("Error reading %s: %v\n", evt.Path, evt.Err)
		}
	}
}

// Stop finalizes the bar. A nil scanErr fills the bar and prints the graph
// size; otherwise the bar is left where the scan stopped and the error is
// printed.
func (b *Bar) Stop(identities, edges int, scanErr error) {
	if !b.enabled || b.pb == nil || !b.pb.IsActive {
		return
	}

	if scanErr != nil {
		_, _ = b.pb.Stop()
		pterm.Error.Printf("Scan aborted after %d documents: %v\n", b.pb.Current, scanErr)
		return
	}

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	_, _ = b.pb.Stop()
	pterm.Success.Printf("Scan complete: %d identities, %d edges\n", identities, edges)
}
