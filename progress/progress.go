// Package progress renders the progress bar and the end-of-run
// summaries.
package progress

import (
	"time"

	"github.com/pterm/pterm"

	"github.com/pvesely/mbox-absence/stats"
)

// Bar tracks message processing on the terminal. Disabled bars (batch
// logs, debug runs) turn every method into a no-op.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	enabled bool
}

// NewBar creates a progress bar when enabled is true.
func NewBar(total int, title string, enabled bool) *Bar {
	bar := &Bar{total: total, enabled: enabled}
	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(title).
			Start()
		bar.pb = pb
	}
	return bar
}

// Increment advances the bar by one message and shows its name.
func (b *Bar) Increment(label string) {
	if !b.enabled || b.pb == nil {
		return
	}
	b.pb.Increment()
	if label != "" {
		if len(label) > 40 {
			label = label[:37] + "..."
		}
		b.pb.UpdateTitle("Processing: " + label)
	}
}

// Stop finalizes the bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}
	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

// ExtractSummary prints the end-of-run figures for the keyword
// extraction stage.
func ExtractSummary(snap stats.Snapshot, outputDir string, dryRun bool) {
	pterm.Println()
	pterm.DefaultSection.Println("Extraction Summary")
	pterm.Info.Printf("Duration: %v\n", snap.Elapsed.Round(time.Second))
	pterm.Info.Printf("Processed: %d\n", snap.Processed)
	pterm.Info.Printf("Matched: %d\n", snap.Matched)
	pterm.Info.Printf("Skipped by identity: %d\n", snap.Skipped)
	pterm.Info.Printf("Failed: %d\n", snap.Failed)
	if dryRun {
		pterm.Warning.Println("Dry run: no files were written")
		return
	}
	pterm.Success.Printf("Output directory: %s\n", outputDir)
}

// FilterSummary prints the end-of-run figures for the classifier
// stage, including token and cost totals.
func FilterSummary(snap stats.Snapshot, outputDir string) {
	pterm.Println()
	pterm.DefaultSection.Println("Filter Summary")
	pterm.Info.Printf("Duration: %v\n", snap.Elapsed.Round(time.Second))
	pterm.Info.Printf("Processed: %d\n", snap.Processed)
	pterm.Info.Printf("Matched: %d\n", snap.Matched)
	pterm.Info.Printf("Rejected: %d\n", snap.Rejected)
	pterm.Info.Printf("Failed: %d\n", snap.Failed)
	pterm.Info.Printf("Tokens: %d in / %d out\n", snap.PromptTokens, snap.CompletionTokens)
	pterm.Info.Printf("Cost: $%.4f\n", snap.CostUSD)
	if snap.Processed > 0 {
		pterm.Info.Printf("Throughput: %.2f msg/s\n", snap.Throughput())
	}
	pterm.Success.Printf("Output directory: %s\n", outputDir)
}

// Interrupted prints the partial tally after a signal stopped the run.
func Interrupted(snap stats.Snapshot) {
	pterm.Println()
	pterm.Warning.Println("Interrupted — partial results kept")
	pterm.Info.Printf("Processed so far: %d (matched %d, rejected %d, failed %d)\n",
		snap.Processed, snap.Matched, snap.Rejected, snap.Failed)
	if snap.TotalTokens() > 0 {
		pterm.Info.Printf("Tokens so far: %d, cost $%.4f\n", snap.TotalTokens(), snap.CostUSD)
	}
}
