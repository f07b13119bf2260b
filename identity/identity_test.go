package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type headerMap map[string][]string

func (h headerMap) Values(key string) []string { return h[key] }

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "Jan Novak <jan@firma.cz>", "Jan Novak <jan@firma.cz>"},
		{"utf-8 base64", "=?utf-8?b?SmFuIE5vdsOhaw==?= <jan@firma.cz>", "Jan Novák <jan@firma.cz>"},
		{"utf-8 quoted-printable", "=?UTF-8?Q?Dovolen=C3=A1?=", "Dovolená"},
		{"unknown charset decodes best effort", "=?x-unknown?q?Novak?=", "Novak"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.raw))
		})
	}
}

func TestExtractAddresses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "Jan Novak <Jan@Firma.CZ>", []string{"jan@firma.cz"}},
		{"list", "a@x.com, Petr <B@Y.com>", []string{"a@x.com", "b@y.com"}},
		{"bare address", "jan@firma.cz", []string{"jan@firma.cz"}},
		{"malformed falls back to scan", "Novak, Jan jan@firma.cz;;", []string{"jan@firma.cz"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractAddresses(tt.raw)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestInvolves(t *testing.T) {
	msg := headerMap{
		"From": {"odesilatel@firma.cz"},
		"To":   {"a@x.com, b@y.com"},
		"Cc":   {"=?utf-8?b?UGV0cg==?= <petr@firma.cz>"},
	}

	tests := []struct {
		name     string
		target   string
		fromOnly bool
		want     bool
	}{
		{"recipient match", "b@y.com", false, true},
		{"recipient ignored with from-only", "b@y.com", true, false},
		{"sender match with from-only", "odesilatel@firma.cz", true, true},
		{"encoded cc match", "petr@firma.cz", false, true},
		{"case-insensitive target", "B@Y.COM", false, true},
		{"absent address", "nikdo@jinde.cz", false, false},
		{"empty target", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Involves(msg, tt.target, tt.fromOnly))
		})
	}
}

func TestInvolvesRepeatedHeaders(t *testing.T) {
	msg := headerMap{
		"To": {"first@x.com", "second@y.com"},
	}
	assert.True(t, Involves(msg, "second@y.com", false))
}
