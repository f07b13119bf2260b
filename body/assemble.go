// Package body turns a parsed MIME message into the single text blob
// the classifier stages operate on.
package body

import (
	"io"
	"strings"

	"github.com/emersion/go-message"

	"github.com/pvesely/mbox-absence/textnorm"
)

// Assemble walks every leaf part of the message and concatenates the
// recovered text with single spaces, in encounter order. text/plain
// leaves are charset-decoded, text/html leaves are converted to plain
// text. A part that fails to decode contributes nothing; a message
// with partially corrupt MIME structure still yields whatever text is
// recoverable.
func Assemble(entity *message.Entity, conv textnorm.HTMLConverter) string {
	var parts []string

	if mr := entity.MultipartReader(); mr != nil {
		collectParts(mr, conv, &parts)
	} else {
		// Single-part message: the sole payload is treated as text,
		// whatever its declared type, with HTML converted first.
		mediaType, params, err := entity.Header.ContentType()
		if err != nil && !message.IsUnknownCharset(err) {
			mediaType, params = "text/plain", nil
		}
		payload, err := io.ReadAll(entity.Body)
		if err == nil && len(payload) > 0 {
			text := textnorm.DecodeBytes(payload, params["charset"])
			if mediaType == "text/html" {
				text = conv.Text(text)
			}
			if text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, " ")
}

func collectParts(mr message.MultipartReader, conv textnorm.HTMLConverter, parts *[]string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			// Corrupt part boundary: keep what was collected so far.
			return
		}

		if nested := part.MultipartReader(); nested != nil {
			collectParts(nested, conv, parts)
			continue
		}

		mediaType, params, err := part.Header.ContentType()
		if err != nil && !message.IsUnknownCharset(err) {
			continue
		}

		switch mediaType {
		case "text/plain", "text/html":
		default:
			continue
		}

		payload, err := io.ReadAll(part.Body)
		if err != nil || len(payload) == 0 {
			continue
		}

		text := textnorm.DecodeBytes(payload, params["charset"])
		if mediaType == "text/html" {
			text = conv.Text(text)
		}
		if text != "" {
			*parts = append(*parts, text)
		}
	}
}
