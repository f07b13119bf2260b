// Package textnorm reduces arbitrary email content to lowercase ASCII
// text that the keyword patterns can match against.
package textnorm

import "strings"

// foldTable maps accented Latin letters to their unaccented ASCII
// equivalent. Czech letters plus the common Western-European diacritics;
// everything else passes through unchanged. Table-driven on purpose, no
// locale dependency.
var foldTable = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'å': 'a', 'ã': 'a',
	'č': 'c', 'ç': 'c',
	'ď': 'd',
	'é': 'e', 'ě': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ľ': 'l', 'ĺ': 'l',
	'ň': 'n', 'ñ': 'n',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o', 'ø': 'o',
	'ř': 'r', 'ŕ': 'r',
	'š': 's',
	'ť': 't',
	'ú': 'u', 'ů': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
	'ž': 'z',
}

// Normalize folds text to lowercase and strips diacritics. It is pure
// and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	return strings.Map(func(r rune) rune {
		if plain, ok := foldTable[r]; ok {
			return plain
		}
		return r
	}, strings.ToLower(text))
}
