package response

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a question to the form used for fingerprinting:
// lower-case, diacritics removed, every rune that is not a letter, digit,
// underscore or space turned into a space, whitespace collapsed and trimmed.
//
//	Normalize("¿Cuál es el   PRECIO?") == "cual es el precio"
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// transform.Chain is stateful, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fingerprint returns the cache key for a question: the hex SHA-256 of its
// normalized form. Questions that differ only in case, accents,
// punctuation or spacing share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
