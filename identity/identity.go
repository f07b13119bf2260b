// Package identity decides whether a target mailbox participates in a
// message. It is the first gate of the pipeline: body assembly is the
// expensive step, so non-matching messages must be rejected before any
// MIME decoding happens.
package identity

import (
	"mime"
	"net/mail"
	"regexp"
	"strings"

	"github.com/pvesely/mbox-absence/textnorm"
)

// HeaderSource provides the raw values of a repeatable header.
type HeaderSource interface {
	Values(key string) []string
}

var wordDecoder = mime.WordDecoder{CharsetReader: textnorm.CharsetReader}

// Loose address scan used when strict RFC 5322 parsing refuses a
// header. Real archives contain plenty of malformed address lists.
var addressRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// DecodeHeader reverses RFC 2047 encoded-word sequences. Each segment
// is decoded with its declared charset, falling back through the
// charset cascade; on total failure the raw value is returned.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ExtractAddresses decodes a header value and returns the address
// portions of its display-name/address pairs, lowercased.
func ExtractAddresses(rawHeader string) []string {
	if rawHeader == "" {
		return nil
	}

	decoded := DecodeHeader(rawHeader)

	addrs, err := mail.ParseAddressList(decoded)
	if err != nil {
		// Malformed list: scan for anything address-shaped.
		var out []string
		for _, match := range addressRegex.FindAllString(decoded, -1) {
			out = append(out, strings.ToLower(match))
		}
		return out
	}

	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Address != "" {
			out = append(out, strings.ToLower(addr.Address))
		}
	}
	return out
}

// Involves reports whether target appears in the message's address
// headers. With fromOnly set only From is checked; otherwise From, To,
// Cc and Reply-To. Pure membership test, no side effects.
func Involves(msg HeaderSource, target string, fromOnly bool) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}

	headers := []string{"From", "To", "Cc", "Reply-To"}
	if fromOnly {
		headers = headers[:1]
	}

	for _, header := range headers {
		for _, value := range msg.Values(header) {
			for _, addr := range ExtractAddresses(value) {
				if addr == target {
					return true
				}
			}
		}
	}

	return false
}
