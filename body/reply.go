package body

import (
	"regexp"
	"strings"
)

// MinReplyLength is the threshold below which un-markered text is
// treated as a misdetected bottom-posted reply rather than a genuine
// short message. Fixed heuristic carried over from the source data;
// not derived.
const MinReplyLength = 20

// Quote markers of the common mail clients, tested per line, anchored
// to line start, case-insensitively. Ordered roughly by how often they
// occur in the archives this tool was built for.
var quoteMarkers = []*regexp.Regexp{
	// Gmail and friends
	regexp.MustCompile(`(?i)^on\s+.+wrote:\s*$`),

	// Czech Thunderbird
	regexp.MustCompile(`(?i)^dne\s+\d{1,2}\.\d{1,2}\.\d{2,4}.+napsal`),
	regexp.MustCompile(`(?i)^dne\s+.+napsal\(a\):`),

	// Outlook
	regexp.MustCompile(`(?i)^-{3,}.*original.*message.*-{3,}`),
	regexp.MustCompile(`(?i)^_{5,}\s*$`),
	regexp.MustCompile(`(?i)^from:\s*.+$`),

	// Quote prefixes
	regexp.MustCompile(`^\s*>+`),
	regexp.MustCompile(`^\s*\|`),

	// Date-based headers
	regexp.MustCompile(`(?i)^\d{4}-\d{2}-\d{2}\s+\d{1,2}:\d{2}.+wrote:`),
	regexp.MustCompile(`(?i)^\[\d{4}-\d{2}-\d{2}`),
}

// ImmediateReply truncates a body at the start of quoted conversation
// history and returns only the sender's own text. When a quote marker
// is found the retained prefix is returned even if empty; an empty
// result still signals "no usable own text". When no marker is found
// and the retained text is shorter than MinReplyLength, the full
// original body is returned instead: very short un-markered text is
// more likely a misdetection than a true absence of quoting.
func ImmediateReply(bodyText string) string {
	if len(strings.TrimSpace(bodyText)) < 10 {
		return bodyText
	}

	var kept []string
	boundary := false

scan:
	for _, line := range strings.Split(bodyText, "\n") {
		for _, marker := range quoteMarkers {
			if marker.MatchString(line) {
				boundary = true
				break scan
			}
		}
		kept = append(kept, line)
	}

	reply := strings.TrimSpace(strings.Join(kept, "\n"))

	switch {
	case boundary:
		return reply
	case len(reply) < MinReplyLength:
		return bodyText
	default:
		return reply
	}
}
