package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvesely/mbox-absence/stats"
)

func TestSaveEML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "matched", "deep")
	raw := []byte("From: a@x\r\n\r\nbody\r\n")

	require.NoError(t, SaveEML(dir, "one.eml", raw))

	got, err := os.ReadFile(filepath.Join(dir, "one.eml"))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExtractLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extraction_log.csv")
	log, err := NewExtractLog(path)
	require.NoError(t, err)

	err = log.Log(ExtractRow{
		Filename:         "20240115_103000_jan_abc_ooo_001.eml",
		OriginalFilename: "20240115_103000_jan_abc_ooo.eml",
		Collision:        true,
		Date:             "Mon, 15 Jan 2024 10:30:00 +0100",
		From:             "jan.novak@firma.cz",
		To:               "hr@firma.cz",
		Subject:          "Re: OOO",
		Keywords:         []string{"dovolene", "od 15.1"},
		Positions:        []int{8, 20},
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"filename", "original_filename", "collision", "date",
		"from_address", "to", "subject", "matched_keywords",
		"match_positions",
	}, rows[0])
	assert.Equal(t, "true", rows[1][2])
	assert.Equal(t, "dovolene, od 15.1", rows[1][7])
	assert.Equal(t, "8, 20", rows[1][8])
}

func TestFilterLogTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter_log.csv")
	log, err := NewFilterLog(path)
	require.NoError(t, err)

	err = log.Log(FilterRow{
		Filename:         "a.eml",
		ProcessedAt:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Decision:         "true",
		Confidence:       0.92,
		Reasoning:        strings.Repeat("r", 300),
		PromptTokens:     1000,
		CompletionTokens: 50,
		LatencyMS:        420,
		Retried:          true,
		From:             strings.Repeat("f", 150),
		Subject:          strings.Repeat("s", 150),
		OutputFilename:   "92_a.eml",
	})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Len(t, row[4], 200)  // reasoning
	assert.Len(t, row[11], 100) // from_address
	assert.Len(t, row[12], 100) // subject
	assert.Equal(t, "1050", row[7])
	assert.Equal(t, "true", row[10])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "abcde", Truncate("abcdefg", 5))
	// Rune-safe on multi-byte text.
	assert.Equal(t, "áéí", Truncate("áéíóú", 3))
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter_report.json")
	snap := stats.Snapshot{
		Processed:        10,
		Matched:          4,
		Rejected:         5,
		Failed:           1,
		PromptTokens:     12000,
		CompletionTokens: 600,
		CostUSD:          0.00216,
		Elapsed:          25 * time.Second,
	}
	cfg := ReportConfig{
		InputDir:  "./extracted",
		OutputDir: "./filtered",
		Model:     "gpt-4o-mini",
		Timestamp: "2024-01-15T10:30:00Z",
	}

	require.NoError(t, WriteReport(path, snap, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(10), got["summary"]["total_processed"])
	assert.Equal(t, float64(4), got["summary"]["matched"])
	assert.Equal(t, float64(12600), got["summary"]["total_tokens"])
	assert.Equal(t, 0.0022, got["summary"]["total_cost_usd"])
	assert.Equal(t, 0.4, got["summary"]["average_speed_emails_per_sec"])
	assert.Equal(t, "gpt-4o-mini", got["configuration"]["model"])
	assert.Equal(t, "2024-01-15T10:30:00Z", got["configuration"]["timestamp"])
}
