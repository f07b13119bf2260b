package textnorm

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// Declared charsets in real-world mail are unreliable, so decoding walks
// a fixed cascade and the first charset that decodes cleanly wins:
// declared charset, Windows-1250 (Czech codepage), UTF-8, Latin-1.
// Latin-1 defines all 256 byte values and is the guaranteed last resort.
var fallbackCharsets = []string{"windows-1250", "utf-8", "iso-8859-1"}

var charmaps = map[string]*charmap.Charmap{
	"windows-1250": charmap.Windows1250,
	"cp1250":       charmap.Windows1250,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"latin2":       charmap.ISO8859_2,
}

// DecodeBytes decodes payload using the declared charset with the
// fallback cascade. It is a total function: it never fails, for any
// byte input and any charset name including the empty string.
func DecodeBytes(payload []byte, declared string) string {
	if len(payload) == 0 {
		return ""
	}

	candidates := make([]string, 0, len(fallbackCharsets)+1)
	if declared != "" {
		candidates = append(candidates, declared)
	}
	candidates = append(candidates, fallbackCharsets...)

	for _, cs := range candidates {
		if text, ok := decodeStrict(cs, payload); ok {
			return text
		}
	}

	// Lossy Latin-1: cannot fail.
	text, _ := charmap.ISO8859_1.NewDecoder().Bytes(payload)
	return string(text)
}

func decodeStrict(name string, payload []byte) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "utf-8", "utf8", "us-ascii", "ascii":
		if utf8.Valid(payload) {
			return string(payload), true
		}
		return "", false
	}

	if cm, ok := charmaps[name]; ok {
		decoded, err := cm.NewDecoder().Bytes(payload)
		if err != nil {
			return "", false
		}
		// The replacement rune marks a byte the codepage leaves
		// undefined; treat it as a failed decode so the cascade
		// keeps going.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			return "", false
		}
		return string(decoded), true
	}

	// Exotic but valid IANA names (koi8-r, big5, ...) resolve through
	// the x/text index.
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// CharsetReader adapts the decode cascade for use as a
// mime.WordDecoder charset hook. It never returns an error; an unknown
// or wrong charset still yields best-effort text.
func CharsetReader(cs string, input io.Reader) (io.Reader, error) {
	payload, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(DecodeBytes(payload, cs)), nil
}
