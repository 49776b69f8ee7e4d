package ragcache

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint canonicalizes raw query text into the tier-1 cache key:
// Unicode NFKC normalization, case folding, punctuation and symbol
// stripping, whitespace collapse. Pure function, deterministic.
//
//	Fingerprint("What is RAG?")   == "what is rag"
//	Fingerprint("  what IS rag ") == "what is rag"
func Fingerprint(query string) string {
	s := norm.NFKC.String(query)
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			// Punctuation separates tokens rather than vanishing, so
			// "cache-aside" and "cacheaside" stay distinct keys.
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
