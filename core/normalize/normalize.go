package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Package-size tokens embedded in product names. Sizes belong to the
	// product's package field, not its identity, so they are removed:
	// "33cl", "0,5 l", "500ml", "6-pack", "4 x 33cl".
	sizeToken = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s*(?:cl|ml|l|liter|litre)\b`)
	packToken = regexp.MustCompile(`\b\d+\s*(?:[x×]\s*\d+(?:[.,]\d+)?\s*(?:cl|ml|l)|[- ]?pack|[- ]?pk)\b`)

	whitespace = regexp.MustCompile(`\s+`)

	// Strips combining marks after NFD decomposition, turning "é" into "e".
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize canonicalizes a free-text field: lowercase, diacritics folded,
// package-size tokens removed, punctuation reduced to spaces, whitespace
// collapsed. Idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(deaccent, s)
	if err != nil {
		// Fold failures leave the input usable, just unfolded.
		folded = s
	}

	lower := strings.ToLower(folded)
	lower = packToken.ReplaceAllString(lower, " ")
	lower = sizeToken.ReplaceAllString(lower, " ")

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
}

// Tokens returns the normalized form split into its word tokens.
func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// TokenSet returns the normalized tokens as a set.
func TokenSet(s string) map[string]struct{} {
	tokens := Tokens(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
