// Package stats collects per-run counters. The batch loop records one
// outcome per message; the interrupt handler reads a snapshot at any
// time and always sees whole-message consistency.
package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pvesely/mbox-absence/router"
)

// Outcome carries everything one processed message contributes to the
// tally so all fields advance under a single lock acquisition.
type Outcome struct {
	Decision         router.Decision
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Tally is the process-wide running total for one batch run.
type Tally struct {
	mu        sync.Mutex
	startedAt time.Time
	snapshot  Snapshot
}

// Snapshot is a self-consistent copy of the tally.
type Snapshot struct {
	Processed        int
	Matched          int
	Rejected         int
	Failed           int
	Skipped          int
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Elapsed          time.Duration
}

// NewTally starts a fresh tally; elapsed time counts from here.
func NewTally() *Tally {
	return &Tally{startedAt: time.Now()}
}

// Record adds one processed message to the tally.
func (t *Tally) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot.Processed++
	switch o.Decision {
	case router.DecisionMatched:
		t.snapshot.Matched++
	case router.DecisionRejected:
		t.snapshot.Rejected++
	case router.DecisionFailed:
		t.snapshot.Failed++
	}
	t.snapshot.PromptTokens += o.PromptTokens
	t.snapshot.CompletionTokens += o.CompletionTokens
	t.snapshot.CostUSD += o.CostUSD
}

// RecordSkip counts a message rejected by the identity gate before any
// body work was done.
func (t *Tally) RecordSkip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Skipped++
}

// Snapshot returns a consistent copy of the current counters.
func (t *Tally) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.snapshot
	s.Elapsed = time.Since(t.startedAt)
	return s
}

// TotalTokens is the combined prompt and completion token count.
func (s Snapshot) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// Throughput returns messages per second over the elapsed run time.
func (s Snapshot) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Processed) / secs
}

// LogValue lets a snapshot be logged as a single structured attribute.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("processed", s.Processed),
		slog.Int("matched", s.Matched),
		slog.Int("rejected", s.Rejected),
		slog.Int("failed", s.Failed),
		slog.Int("skipped", s.Skipped),
		slog.Int("total_tokens", s.TotalTokens()),
		slog.Float64("cost_usd", s.CostUSD),
		slog.Duration("elapsed", s.Elapsed),
	)
}
