package text

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// hashLen is the number of hex characters kept from the SHA-256 digest.
// 128 bits is plenty for dedup keys and keeps cache rows readable.
const hashLen = 32

// Normalize prepares raw story text for synthesis and hashing. Quote glyphs
// are stripped because vendors tend to vocalize them ("quote ... unquote");
// apostrophes inside contractions are kept, with curly variants canonicalized
// to ASCII so that hashing is stable across glyph styles. Whitespace runs
// collapse to single spaces.
func Normalize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i, r := range runes {
		switch r {
		case '"', '“', '”', '«', '»':
			// double quotes never survive
		case '\'', '’', '‘':
			// keep only word-internal apostrophes (don't, o'clock)
			if i > 0 && i < len(runes)-1 && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
				b.WriteRune('\'')
			}
		default:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Hash returns the cache key for a piece of story text: a truncated hex
// SHA-256 over the normalized form. Two texts that differ only in quote
// style or whitespace hash identically.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])[:hashLen]
}
