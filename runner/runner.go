// Package runner drives the batch loops. Messages are processed
// strictly one at a time; a cancellation stops the run before the next
// message, and everything already routed stays on disk.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pvesely/mbox-absence/body"
	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/evidence"
	"github.com/pvesely/mbox-absence/identity"
	"github.com/pvesely/mbox-absence/llm"
	"github.com/pvesely/mbox-absence/mbox"
	"github.com/pvesely/mbox-absence/model"
	"github.com/pvesely/mbox-absence/output"
	"github.com/pvesely/mbox-absence/progress"
	"github.com/pvesely/mbox-absence/router"
	"github.com/pvesely/mbox-absence/state"
	"github.com/pvesely/mbox-absence/stats"
	"github.com/pvesely/mbox-absence/textnorm"
)

// errLimitReached stops the source iteration without failing the run.
var errLimitReached = errors.New("message limit reached")

// minBodyChars is the threshold below which the assembled body is
// considered unusable and the subject alone is searched.
const minBodyChars = 10

// Extractor runs the deterministic keyword stage over an mbox archive.
type Extractor struct {
	Cfg       config.Extract
	Source    mbox.Source
	Patterns  *evidence.Set
	Converter textnorm.HTMLConverter
	Tracker   state.Tracker
	Log       *output.ExtractLog
	Bar       *progress.Bar
	Tally     *stats.Tally
	Logger    *slog.Logger

	seen   int
	failed int
}

// Run processes the archive until it is exhausted, the limit is
// reached, or ctx is canceled. Records routed before a cancellation
// are kept.
func (e *Extractor) Run(ctx context.Context) error {
	err := e.Source.Each(ctx, e.handle)
	if errors.Is(err, errLimitReached) {
		e.Logger.Info("message limit reached", "limit", e.Cfg.Limit)
		return nil
	}
	return err
}

func (e *Extractor) handle(env model.Envelope) error {
	if e.Cfg.Limit > 0 && e.seen >= e.Cfg.Limit {
		return errLimitReached
	}
	e.seen++
	e.Bar.Increment(env.Name)

	if env.Err != nil {
		e.fail(env, env.Err)
		return nil
	}
	msg := env.Message

	if e.Cfg.Resume && e.Tracker.Seen(msg.Hash) {
		e.Logger.Debug("already routed in a previous run", "name", env.Name, "id", msg.ID)
		e.Tally.RecordSkip()
		return nil
	}

	if e.Cfg.TargetEmail != "" && !identity.Involves(msg, e.Cfg.TargetEmail, e.Cfg.FromOnly) {
		e.Tally.RecordSkip()
		return nil
	}

	subject := strings.TrimSpace(identity.DecodeHeader(msg.Header("Subject")))
	if subject == "" {
		subject = "(No Subject)"
	}

	entity, err := msg.Entity()
	if err != nil {
		e.fail(env, fmt.Errorf("parse mime structure: %w", err))
		return nil
	}
	bodyText := body.Assemble(entity, e.Converter)
	if e.Cfg.ReplyOnly {
		bodyText = body.ImmediateReply(bodyText)
	}

	searchText := subject
	if len(strings.TrimSpace(bodyText)) >= minBodyChars {
		searchText = subject + " " + bodyText
	}

	hits := e.Patterns.Find(textnorm.Normalize(searchText))
	record, ok := router.RouteEvidence(env.Name, hits)
	if !ok {
		e.Tally.Record(stats.Outcome{Decision: router.DecisionRejected})
		return nil
	}

	if e.Cfg.DryRun {
		e.Logger.Info("match (dry run)", "name", env.Name, "keywords", evidence.Tokens(hits))
		e.Tally.Record(stats.Outcome{Decision: record.Decision})
		return nil
	}

	baseName := router.EMLName(msg)
	uniqueName := router.UniqueName(e.Cfg.OutputDir, baseName)
	if uniqueName != baseName {
		e.Logger.Warn("filename collision", "base", baseName, "resolved", uniqueName)
	}
	if err := output.SaveEML(e.Cfg.OutputDir, uniqueName, msg.Raw); err != nil {
		e.fail(env, err)
		return nil
	}

	if err := e.Log.Log(output.ExtractRow{
		Filename:         uniqueName,
		OriginalFilename: baseName,
		Collision:        uniqueName != baseName,
		Date:             msg.Header("Date"),
		From:             identity.DecodeHeader(msg.Header("From")),
		To:               identity.DecodeHeader(msg.Header("To")),
		Subject:          subject,
		Keywords:         evidence.Tokens(hits),
		Positions:        evidence.Offsets(hits),
	}); err != nil {
		e.Logger.Error("log write failed", "name", env.Name, "err", err)
	}

	if err := e.Tracker.Mark(msg.Hash, uniqueName); err != nil {
		e.Logger.Error("state write failed", "name", env.Name, "err", err)
	}

	e.Tally.Record(stats.Outcome{Decision: record.Decision})
	return nil
}

// fail preserves the raw message in the failed area and counts it; the
// batch continues.
func (e *Extractor) fail(env model.Envelope, cause error) {
	e.failed++
	e.Logger.Error("message failed", "name", env.Name, "stage", "extract", "err", cause)
	e.Tally.Record(stats.Outcome{Decision: router.DecisionFailed})

	if e.Cfg.DryRun || env.Message == nil || len(env.Message.Raw) == 0 {
		return
	}
	failedDir := filepath.Join(e.Cfg.OutputDir, "failed")
	name := fmt.Sprintf("failed_email_%04d.eml", e.failed)
	if err := output.SaveEML(failedDir, name, env.Message.Raw); err != nil {
		e.Logger.Error("failed-area write failed", "name", env.Name, "err", err)
	}
}

// Filter runs the classifier stage over a directory of EML files.
type Filter struct {
	Cfg         config.Filter
	Source      mbox.Source
	Adjudicator *llm.Adjudicator
	Converter   textnorm.HTMLConverter
	Log         *output.FilterLog
	Bar         *progress.Bar
	Tally       *stats.Tally
	Logger      *slog.Logger

	seen int
}

// Run classifies every message in the source. Each message yields
// exactly one decision record: matched, rejected, or failed.
func (f *Filter) Run(ctx context.Context) error {
	err := f.Source.Each(ctx, func(env model.Envelope) error {
		if f.Cfg.Limit > 0 && f.seen >= f.Cfg.Limit {
			return errLimitReached
		}
		f.seen++
		f.Bar.Increment(env.Name)
		f.classify(ctx, env)
		return nil
	})
	if errors.Is(err, errLimitReached) {
		f.Logger.Info("message limit reached", "limit", f.Cfg.Limit)
		return nil
	}
	return err
}

func (f *Filter) classify(ctx context.Context, env model.Envelope) {
	started := time.Now()

	if env.Err != nil {
		f.fail(env, started, llm.Verdict{}, env.Err)
		return
	}
	msg := env.Message

	from := identity.DecodeHeader(msg.Header("From"))
	subject := identity.DecodeHeader(msg.Header("Subject"))

	entity, err := msg.Entity()
	if err != nil {
		f.fail(env, started, llm.Verdict{}, fmt.Errorf("parse mime structure: %w", err))
		return
	}
	reply := body.ImmediateReply(body.Assemble(entity, f.Converter))

	if f.Cfg.Debug {
		f.Logger.Debug("classifier input", "name", env.Name,
			"chars", len(reply), "text", llm.TruncateBody(reply))
	}

	verdict := f.Adjudicator.Classify(ctx, llm.Email{
		From:    from,
		Date:    msg.Header("Date"),
		Subject: subject,
		Body:    reply,
	})

	record := router.RouteVerdict(env.Name, verdict)
	if record.Decision == router.DecisionFailed {
		f.fail(env, started, verdict, verdict.Err)
		return
	}

	destDir := filepath.Join(f.Cfg.OutputDir, string(record.Decision))
	prefixed := router.PrefixedName(verdict.Confidence, env.Name)
	uniqueName := router.UniqueName(destDir, prefixed)
	if err := output.SaveEML(destDir, uniqueName, msg.Raw); err != nil {
		f.fail(env, started, verdict, err)
		return
	}

	decision := "false"
	if verdict.IsMatch {
		decision = "true"
	}
	if err := f.Log.Log(output.FilterRow{
		Filename:         env.Name,
		ProcessedAt:      time.Now(),
		Decision:         decision,
		Confidence:       verdict.Confidence,
		Reasoning:        verdict.Reasoning,
		PromptTokens:     verdict.PromptTokens,
		CompletionTokens: verdict.CompletionTokens,
		LatencyMS:        time.Since(started).Milliseconds(),
		Retried:          verdict.Attempts > 1,
		From:             from,
		Subject:          subject,
		OutputFilename:   uniqueName,
	}); err != nil {
		f.Logger.Error("log write failed", "name", env.Name, "err", err)
	}

	f.Tally.Record(stats.Outcome{
		Decision:         record.Decision,
		PromptTokens:     verdict.PromptTokens,
		CompletionTokens: verdict.CompletionTokens,
		CostUSD:          verdict.CostUSD,
	})
}

// fail copies the message into the failed area, logs a row, and counts
// it; the batch continues.
func (f *Filter) fail(env model.Envelope, started time.Time, verdict llm.Verdict, cause error) {
	f.Logger.Error("message failed", "name", env.Name, "stage", "filter", "err", cause)

	outputName := "failed_" + env.Name
	if env.Message != nil && len(env.Message.Raw) > 0 {
		failedDir := filepath.Join(f.Cfg.OutputDir, "failed")
		if err := output.SaveEML(failedDir, outputName, env.Message.Raw); err != nil {
			f.Logger.Error("failed-area write failed", "name", env.Name, "err", err)
		}
	}

	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	if err := f.Log.Log(output.FilterRow{
		Filename:       env.Name,
		ProcessedAt:    time.Now(),
		Decision:       "error",
		LatencyMS:      time.Since(started).Milliseconds(),
		ErrorMessage:   errMsg,
		Retried:        verdict.Attempts > 1,
		OutputFilename: outputName,
	}); err != nil {
		f.Logger.Error("log write failed", "name", env.Name, "err", err)
	}

	f.Tally.Record(stats.Outcome{
		Decision:         router.DecisionFailed,
		PromptTokens:     verdict.PromptTokens,
		CompletionTokens: verdict.CompletionTokens,
		CostUSD:          verdict.CostUSD,
	})
}

// Convert packs a directory of EML files into one mbox archive and
// returns how many messages were written.
func Convert(ctx context.Context, cfg config.Convert, logger *slog.Logger) (int, error) {
	source, err := mbox.NewEMLDir(cfg.EMLDir, logger)
	if err != nil {
		return 0, err
	}
	writer, err := mbox.NewWriter(cfg.MboxPath)
	if err != nil {
		return 0, err
	}

	written := 0
	err = source.Each(ctx, func(env model.Envelope) error {
		if env.Message == nil || len(env.Message.Raw) == 0 {
			logger.Error("skipping unreadable file", "name", env.Name, "err", env.Err)
			return nil
		}
		if err := writer.Append(env.Message.Raw); err != nil {
			return fmt.Errorf("append %s: %w", env.Name, err)
		}
		written++
		return nil
	})
	if cerr := writer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return written, err
}
