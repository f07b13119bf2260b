// Package evidence applies an ordered set of absence-keyword patterns
// to normalized message text and reports the deduplicated hits.
package evidence

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Hit is one matched token with its start offset into the normalized
// text that produced it.
type Hit struct {
	Token  string
	Offset int
}

// Set holds patterns compiled once per run, in the order they were
// given. Order affects which pattern claims a duplicate token, not
// whether the token is reported.
type Set struct {
	sources  []string
	compiled []*regexp.Regexp
}

// Default returns the built-in bilingual lexicon.
func Default() *Set {
	set, err := Compile(defaultPatterns)
	if err != nil {
		// The built-in patterns are fixed; a compile failure is a
		// programming error.
		panic(fmt.Sprintf("built-in pattern set: %v", err))
	}
	return set
}

// Compile builds a Set from pattern sources. All patterns are matched
// case-insensitively.
func Compile(patterns []string) (*Set, error) {
	set := &Set{
		sources:  make([]string, 0, len(patterns)),
		compiled: make([]*regexp.Regexp, 0, len(patterns)),
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		set.sources = append(set.sources, pattern)
		set.compiled = append(set.compiled, re)
	}

	if len(set.compiled) == 0 {
		return nil, fmt.Errorf("pattern set is empty")
	}

	return set, nil
}

// LoadFile reads an ordered pattern list, one pattern per line.
// Blank lines and #-comments are skipped.
func LoadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pattern file: %w", err)
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}

	return patterns, nil
}

// Len reports the number of compiled patterns.
func (s *Set) Len() int {
	return len(s.compiled)
}

// Sources returns the pattern sources in compile order.
func (s *Set) Sources() []string {
	return s.sources
}

// Find scans the full text with every pattern and returns all distinct
// matched tokens with their offsets. A token already claimed by an
// earlier pattern is not reported again (first-pattern-wins dedup).
// Positive evidence is a non-empty result.
func (s *Set) Find(normalizedText string) []Hit {
	var hits []Hit
	seen := make(map[string]struct{})

	for _, re := range s.compiled {
		for _, loc := range re.FindAllStringIndex(normalizedText, -1) {
			token := normalizedText[loc[0]:loc[1]]
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			hits = append(hits, Hit{Token: token, Offset: loc[0]})
		}
	}

	return hits
}

// Tokens returns just the matched tokens, in hit order.
func Tokens(hits []Hit) []string {
	tokens := make([]string, len(hits))
	for i, h := range hits {
		tokens[i] = h.Token
	}
	return tokens
}

// Offsets returns the hit offsets, in hit order.
func Offsets(hits []Hit) []int {
	offsets := make([]int, len(hits))
	for i, h := range hits {
		offsets[i] = h.Offset
	}
	return offsets
}
