package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/evidence"
	"github.com/pvesely/mbox-absence/llm"
	"github.com/pvesely/mbox-absence/mbox"
	"github.com/pvesely/mbox-absence/output"
	"github.com/pvesely/mbox-absence/progress"
	"github.com/pvesely/mbox-absence/state"
	"github.com/pvesely/mbox-absence/stats"
	"github.com/pvesely/mbox-absence/textnorm"
)

const testMbox = "From jan.novak@firma.cz Mon Jan 15 10:30:00 2024\n" +
	"From: jan.novak@firma.cz\n" +
	"To: hr@firma.cz\n" +
	"Date: Mon, 15 Jan 2024 10:30:00 +0100\n" +
	"Message-Id: <vac-1@firma.cz>\n" +
	"Subject: Re: OOO\n" +
	"Content-Type: text/plain; charset=utf-8\n" +
	"\n" +
	"Jsem na dovolené do 31.8., vratím se v září.\n" +
	"\n" +
	"From jan.novak@firma.cz Mon Jan 15 11:00:00 2024\n" +
	"From: jan.novak@firma.cz\n" +
	"Date: Mon, 15 Jan 2024 11:00:00 +0100\n" +
	"Message-Id: <mtg-1@firma.cz>\n" +
	"Subject: Re: porada\n" +
	"Content-Type: text/plain; charset=utf-8\n" +
	"\n" +
	"Potvrzuji termin porady, budu tam osobne.\n" +
	"\n" +
	"From petra@firma.cz Mon Jan 15 12:00:00 2024\n" +
	"From: petra@firma.cz\n" +
	"To: ucetni@firma.cz\n" +
	"Date: Mon, 15 Jan 2024 12:00:00 +0100\n" +
	"Message-Id: <other-1@firma.cz>\n" +
	"Subject: Faktura\n" +
	"Content-Type: text/plain; charset=utf-8\n" +
	"\n" +
	"V priloze posilam fakturu za leden.\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newExtractor(t *testing.T, cfg config.Extract, mboxContent string) (*Extractor, *stats.Tally) {
	t.Helper()

	mboxPath := filepath.Join(t.TempDir(), "archive.mbox")
	require.NoError(t, os.WriteFile(mboxPath, []byte(mboxContent), 0o644))
	source, err := mbox.NewScanner(mboxPath, testLogger())
	require.NoError(t, err)

	var log *output.ExtractLog
	if !cfg.DryRun {
		log, err = output.NewExtractLog(filepath.Join(cfg.OutputDir, "extraction_log.csv"))
		require.NoError(t, err)
		t.Cleanup(func() { log.Close() })
	}

	tally := stats.NewTally()
	return &Extractor{
		Cfg:       cfg,
		Source:    source,
		Patterns:  evidence.Default(),
		Converter: textnorm.NewDOMConverter(),
		Tracker:   state.NewMemoryTracker(),
		Log:       log,
		Bar:       progress.NewBar(0, "", false),
		Tally:     tally,
		Logger:    testLogger(),
	}, tally
}

func TestExtractorRun(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Extract{
		TargetEmail: "jan.novak@firma.cz",
		OutputDir:   outDir,
	}
	ext, tally := newExtractor(t, cfg, testMbox)

	require.NoError(t, ext.Run(context.Background()))

	snap := tally.Snapshot()
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, 1, snap.Matched)
	assert.Equal(t, 1, snap.Rejected)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 0, snap.Failed)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var emls []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".eml") {
			emls = append(emls, entry.Name())
		}
	}
	require.Len(t, emls, 1)
	assert.Contains(t, emls[0], "jan.novak")
	assert.Contains(t, emls[0], "vac1")

	logData, err := os.ReadFile(filepath.Join(outDir, "extraction_log.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "dovolene")
}

func TestExtractorDryRunWritesNothing(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Extract{
		TargetEmail: "jan.novak@firma.cz",
		OutputDir:   outDir,
		DryRun:      true,
	}
	ext, tally := newExtractor(t, cfg, testMbox)

	require.NoError(t, ext.Run(context.Background()))

	assert.Equal(t, 1, tally.Snapshot().Matched)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractorLimit(t *testing.T) {
	cfg := config.Extract{
		OutputDir: t.TempDir(),
		Limit:     1,
		DryRun:    true,
	}
	ext, tally := newExtractor(t, cfg, testMbox)

	require.NoError(t, ext.Run(context.Background()))

	snap := tally.Snapshot()
	assert.Equal(t, 1, snap.Processed+snap.Skipped)
}

func TestExtractorNoTargetProcessesAll(t *testing.T) {
	cfg := config.Extract{
		OutputDir: t.TempDir(),
		DryRun:    true,
	}
	ext, tally := newExtractor(t, cfg, testMbox)

	require.NoError(t, ext.Run(context.Background()))

	snap := tally.Snapshot()
	assert.Equal(t, 3, snap.Processed)
	assert.Equal(t, 0, snap.Skipped)
}

func TestExtractorResumeSkipsRouted(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Extract{
		TargetEmail: "jan.novak@firma.cz",
		OutputDir:   outDir,
		Resume:      true,
	}
	ext, tally := newExtractor(t, cfg, testMbox)
	tracker, err := state.NewFileTracker(filepath.Join(outDir, ".state"))
	require.NoError(t, err)
	ext.Tracker = tracker

	require.NoError(t, ext.Run(context.Background()))
	require.NoError(t, tracker.Close())
	assert.Equal(t, 1, tally.Snapshot().Matched)

	// Second run over the same archive and state: the routed message is
	// skipped, nothing new is written.
	ext2, tally2 := newExtractor(t, cfg, testMbox)
	tracker2, err := state.NewFileTracker(filepath.Join(outDir, ".state"))
	require.NoError(t, err)
	defer tracker2.Close()
	ext2.Tracker = tracker2

	require.NoError(t, ext2.Run(context.Background()))
	snap := tally2.Snapshot()
	assert.Equal(t, 0, snap.Matched)
	assert.Equal(t, 2, snap.Skipped) // routed + not-involved
}

func TestExtractorCanceledKeepsRoutedRecords(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Extract{OutputDir: outDir, DryRun: true}
	ext, tally := newExtractor(t, cfg, testMbox)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ext.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tally.Snapshot().Processed)
}

// scriptedClient replays canned classifier responses per file.
type scriptedClient struct {
	responses []scriptedResponse
}

type scriptedResponse struct {
	content string
	err     error
}

func (s *scriptedClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(s.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.err != nil {
		return openai.ChatCompletionResponse{}, next.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: next.content}},
		},
		Usage: openai.Usage{PromptTokens: 100, CompletionTokens: 10},
	}, nil
}

func writeEML(t *testing.T, dir, name, body string) {
	t.Helper()
	raw := "From: jan.novak@firma.cz\r\n" +
		"Date: Mon, 15 Jan 2024 10:30:00 +0100\r\n" +
		"Subject: Re: OOO\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(raw), 0o644))
}

func newFilter(t *testing.T, client llm.ChatClient, inputDir string) (*Filter, *stats.Tally, string) {
	t.Helper()

	outDir := t.TempDir()
	source, err := mbox.NewEMLDir(inputDir, testLogger())
	require.NoError(t, err)

	log, err := output.NewFilterLog(filepath.Join(outDir, "filter_log.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	adj := llm.New(client, "gpt-4o-mini", llm.Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60})
	adj.Backoff = 0

	tally := stats.NewTally()
	return &Filter{
		Cfg:         config.Filter{InputDir: inputDir, OutputDir: outDir},
		Source:      source,
		Adjudicator: adj,
		Converter:   textnorm.NewDOMConverter(),
		Log:         log,
		Bar:         progress.NewBar(0, "", false),
		Tally:       tally,
		Logger:      testLogger(),
	}, tally, outDir
}

func TestFilterRun(t *testing.T) {
	inputDir := t.TempDir()
	writeEML(t, inputDir, "a.eml", "Jsem na dovolene do 31.8., piste kolegovi.")
	writeEML(t, inputDir, "b.eml", "Potvrzuji termin porady, budu tam.")

	client := &scriptedClient{responses: []scriptedResponse{
		{content: `{"is_vacation_response": true, "confidence": 0.92, "reasoning": "absence with return date"}`},
		{content: `{"is_vacation_response": false, "confidence": 0.30, "reasoning": "regular reply"}`},
	}}
	filter, tally, outDir := newFilter(t, client, inputDir)

	require.NoError(t, filter.Run(context.Background()))

	snap := tally.Snapshot()
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, 1, snap.Matched)
	assert.Equal(t, 1, snap.Rejected)
	assert.Equal(t, 200, snap.PromptTokens)
	assert.Greater(t, snap.CostUSD, 0.0)

	_, err := os.Stat(filepath.Join(outDir, "matched", "92_a.eml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "rejected", "30_b.eml"))
	assert.NoError(t, err)

	logData, err := os.ReadFile(filepath.Join(outDir, "filter_log.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "92_a.eml")
	assert.Contains(t, string(logData), "absence with return date")
}

func TestFilterTerminalFailureGoesToFailedArea(t *testing.T) {
	inputDir := t.TempDir()
	writeEML(t, inputDir, "a.eml", "Jsem na dovolene.")

	client := &scriptedClient{responses: []scriptedResponse{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
	}}
	filter, tally, outDir := newFilter(t, client, inputDir)

	require.NoError(t, filter.Run(context.Background()))

	snap := tally.Snapshot()
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Matched)

	_, err := os.Stat(filepath.Join(outDir, "failed", "failed_a.eml"))
	assert.NoError(t, err)

	logData, err := os.ReadFile(filepath.Join(outDir, "filter_log.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "error")
	assert.Contains(t, string(logData), "connection refused")
}

func TestFilterLimit(t *testing.T) {
	inputDir := t.TempDir()
	writeEML(t, inputDir, "a.eml", "Jsem na dovolene.")
	writeEML(t, inputDir, "b.eml", "Jsem na dovolene.")

	client := &scriptedClient{responses: []scriptedResponse{
		{content: `{"is_vacation_response": true, "confidence": 0.9}`},
	}}
	filter, tally, _ := newFilter(t, client, inputDir)
	filter.Cfg.Limit = 1

	require.NoError(t, filter.Run(context.Background()))
	assert.Equal(t, 1, tally.Snapshot().Processed)
}

func TestConvert(t *testing.T) {
	emlDir := t.TempDir()
	writeEML(t, emlDir, "a.eml", "prvni zprava")
	writeEML(t, emlDir, "b.eml", "druha zprava")

	mboxPath := filepath.Join(t.TempDir(), "out.mbox")
	written, err := Convert(context.Background(), config.Convert{
		EMLDir:   emlDir,
		MboxPath: mboxPath,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	scanner, err := mbox.NewScanner(mboxPath, testLogger())
	require.NoError(t, err)
	count, err := scanner.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
