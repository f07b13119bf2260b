// Package output persists routed results: EML files, the per-run CSV
// logs and the aggregate JSON report.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pvesely/mbox-absence/stats"
)

const (
	reasoningMaxChars = 200
	headerMaxChars    = 100
)

// SaveEML writes one message verbatim, creating the directory if
// needed.
func SaveEML(dir, name string, raw []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

type csvLog struct {
	file *os.File
	w    *csv.Writer
}

func newCSVLog(path string, header []string) (*csvLog, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log %s: %w", path, err)
	}
	l := &csvLog{file: file, w: csv.NewWriter(file)}
	if err := l.w.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}
	return l, nil
}

func (l *csvLog) write(row []string) error {
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("write log row: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *csvLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// ExtractLog records one CSV row per matched message in the keyword
// extraction stage.
type ExtractLog struct {
	*csvLog
}

// ExtractRow carries the fields of one extraction log entry.
type ExtractRow struct {
	Filename         string
	OriginalFilename string
	Collision        bool
	Date             string
	From             string
	To               string
	Subject          string
	Keywords         []string
	Positions        []int
}

func NewExtractLog(path string) (*ExtractLog, error) {
	l, err := newCSVLog(path, []string{
		"filename", "original_filename", "collision", "date",
		"from_address", "to", "subject", "matched_keywords",
		"match_positions",
	})
	if err != nil {
		return nil, err
	}
	return &ExtractLog{csvLog: l}, nil
}

func (l *ExtractLog) Log(row ExtractRow) error {
	positions := make([]string, len(row.Positions))
	for i, p := range row.Positions {
		positions[i] = strconv.Itoa(p)
	}
	return l.write([]string{
		row.Filename,
		row.OriginalFilename,
		strconv.FormatBool(row.Collision),
		row.Date,
		row.From,
		row.To,
		row.Subject,
		strings.Join(row.Keywords, ", "),
		strings.Join(positions, ", "),
	})
}

// FilterLog records one CSV row per message in the classifier stage,
// successes and failures alike.
type FilterLog struct {
	*csvLog
}

// FilterRow carries the fields of one classifier log entry. Reasoning
// is truncated to 200 characters, from-address and subject to 100.
type FilterRow struct {
	Filename         string
	ProcessedAt      time.Time
	Decision         string
	Confidence       float64
	Reasoning        string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	ErrorMessage     string
	Retried          bool
	From             string
	Subject          string
	OutputFilename   string
}

func NewFilterLog(path string) (*FilterLog, error) {
	l, err := newCSVLog(path, []string{
		"filename", "processed_at", "llm_decision", "confidence",
		"reasoning", "prompt_tokens", "completion_tokens",
		"total_tokens", "processing_time_ms", "error_message",
		"retried", "from_address", "subject", "output_filename",
	})
	if err != nil {
		return nil, err
	}
	return &FilterLog{csvLog: l}, nil
}

func (l *FilterLog) Log(row FilterRow) error {
	return l.write([]string{
		row.Filename,
		row.ProcessedAt.Format(time.RFC3339),
		row.Decision,
		strconv.FormatFloat(row.Confidence, 'f', -1, 64),
		Truncate(row.Reasoning, reasoningMaxChars),
		strconv.Itoa(row.PromptTokens),
		strconv.Itoa(row.CompletionTokens),
		strconv.Itoa(row.PromptTokens + row.CompletionTokens),
		strconv.FormatInt(row.LatencyMS, 10),
		row.ErrorMessage,
		strconv.FormatBool(row.Retried),
		Truncate(row.From, headerMaxChars),
		Truncate(row.Subject, headerMaxChars),
		row.OutputFilename,
	})
}

// Truncate caps text at max characters without splitting a rune.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// ReportConfig echoes the run's configuration into the report for
// audit.
type ReportConfig struct {
	InputDir     string `json:"input_dir"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	OutputDir    string `json:"output_dir"`
	Model        string `json:"model"`
	Timestamp    string `json:"timestamp"`
}

type reportSummary struct {
	TotalProcessed int     `json:"total_processed"`
	Matched        int     `json:"matched"`
	Rejected       int     `json:"rejected"`
	Failed         int     `json:"failed"`
	TotalTokens    int     `json:"total_tokens"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	ProcessingSecs float64 `json:"processing_time_seconds"`
	AvgPerSec      float64 `json:"average_speed_emails_per_sec"`
}

type report struct {
	Summary       reportSummary `json:"summary"`
	Configuration ReportConfig  `json:"configuration"`
}

// WriteReport writes the aggregate JSON report for one run.
func WriteReport(path string, snap stats.Snapshot, cfg ReportConfig) error {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format(time.RFC3339)
	}
	r := report{
		Summary: reportSummary{
			TotalProcessed: snap.Processed,
			Matched:        snap.Matched,
			Rejected:       snap.Rejected,
			Failed:         snap.Failed,
			TotalTokens:    snap.TotalTokens(),
			InputTokens:    snap.PromptTokens,
			OutputTokens:   snap.CompletionTokens,
			TotalCostUSD:   round(snap.CostUSD, 4),
			ProcessingSecs: round(snap.Elapsed.Seconds(), 2),
			AvgPerSec:      round(snap.Throughput(), 2),
		},
		Configuration: cfg,
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func round(v float64, places int) float64 {
	pow := math.Pow10(places)
	return math.Round(v*pow) / pow
}
