// Package router turns evidence or a classifier verdict into the final
// decision record and computes the output file names.
package router

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pvesely/mbox-absence/evidence"
	"github.com/pvesely/mbox-absence/identity"
	"github.com/pvesely/mbox-absence/llm"
	"github.com/pvesely/mbox-absence/model"
)

// Decision is the terminal classification of one candidate.
type Decision string

const (
	DecisionMatched  Decision = "matched"
	DecisionRejected Decision = "rejected"
	DecisionFailed   Decision = "failed"
)

// Record is the routed outcome handed to the persistence layer.
// Exactly one of Evidence and Verdict is populated, depending on which
// path classified the candidate.
type Record struct {
	SourceName string
	Decision   Decision
	Evidence   []evidence.Hit
	Verdict    *llm.Verdict
	OutputName string
}

// RouteEvidence implements the deterministic path: a candidate with
// evidence is matched, one without produces no record at all.
func RouteEvidence(sourceName string, hits []evidence.Hit) (Record, bool) {
	if len(hits) == 0 {
		return Record{}, false
	}
	return Record{
		SourceName: sourceName,
		Decision:   DecisionMatched,
		Evidence:   hits,
	}, true
}

// RouteVerdict maps an adjudicator verdict to a decision. Every
// candidate that reached the adjudicator yields a record; a failed
// classification is never promoted to a match.
func RouteVerdict(sourceName string, verdict llm.Verdict) Record {
	decision := DecisionRejected
	switch {
	case verdict.Err != nil:
		decision = DecisionFailed
	case verdict.IsMatch:
		decision = DecisionMatched
	}
	v := verdict
	return Record{
		SourceName: sourceName,
		Decision:   decision,
		Verdict:    &v,
	}
}

// PrefixedName embeds the confidence as a two-digit integer percentage
// so matched files sort into buckets by name alone: 0.87 → "87_name".
func PrefixedName(confidence float64, name string) string {
	return fmt.Sprintf("%02d_%s", int(confidence*100), name)
}

// UniqueName resolves filename collisions in dir by appending _001,
// _002, ... before the extension. The search is bounded; past 9999 a
// millisecond timestamp suffix is used instead so the loop always
// terminates.
func UniqueName(dir, base string) string {
	if !fileExists(filepath.Join(dir, base)) {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for counter := 1; counter <= 9999; counter++ {
		candidate := fmt.Sprintf("%s_%03d%s", stem, counter, ext)
		if !fileExists(filepath.Join(dir, candidate)) {
			return candidate
		}
	}
	return fmt.Sprintf("%s_%d%s", stem, time.Now().UnixMilli(), ext)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)
var squeeze = regexp.MustCompile(`[\s_]+`)

// EMLName derives a filesystem-safe name for one message:
// {date}_{from}_{msgid}_{subject}.eml.
func EMLName(msg *model.Message) string {
	datePart := "00000000_000000"
	if !msg.ReceivedAt.IsZero() {
		datePart = msg.ReceivedAt.Format("20060102_150405")
	}

	fromPart := "unknown"
	if addrs := identity.ExtractAddresses(msg.Header("From")); len(addrs) > 0 {
		local, _, _ := strings.Cut(addrs[0], "@")
		fromPart = SanitizePart(local, 30)
	}

	idPart := "nomsgid"
	if id := strings.Trim(msg.Header("Message-Id"), "<> "); id != "" {
		id, _, _ = strings.Cut(id, "@")
		if id = nonAlnum.ReplaceAllString(id, ""); id != "" {
			if len(id) > 20 {
				id = id[:20]
			}
			idPart = id
		}
	}

	subjectPart := "no_subject"
	if subject := strings.TrimSpace(identity.DecodeHeader(msg.Header("Subject"))); subject != "" {
		subjectPart = SanitizePart(subject, 30)
	}

	name := fmt.Sprintf("%s_%s_%s_%s.eml", datePart, fromPart, idPart, subjectPart)
	if len(name) > 255 {
		name = name[:251] + ".eml"
	}
	return name
}

// SanitizePart makes text safe for a filename component: Windows
// reserved characters become underscores, whitespace runs collapse,
// and the result is capped at maxLen bytes.
func SanitizePart(text string, maxLen int) string {
	if text == "" {
		return "unknown"
	}
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, text)
	cleaned = squeeze.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_")
	if runes := []rune(cleaned); len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
