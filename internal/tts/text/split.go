package text

import (
	"strings"
	"unicode/utf8"
)

// DefaultParagraphWords is the target paragraph size for narration. Short
// enough to keep cache granularity useful, long enough to give vendors a
// natural prosody unit.
const DefaultParagraphWords = 30

// Paragraph is one synthesis unit of a story. Paragraphs sharing a Hash are
// semantically identical and are synthesized once.
type Paragraph struct {
	Index int
	Text  string
	Hash  string
}

// SplitParagraphs breaks story text into sentence-preserving paragraphs of
// roughly maxWords words each. Sentences are never broken: a single sentence
// longer than maxWords becomes its own paragraph. Each paragraph carries the
// hash of its normalized text.
func SplitParagraphs(s string, maxWords int) []Paragraph {
	if maxWords <= 0 {
		maxWords = DefaultParagraphWords
	}

	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}

	var paras []Paragraph
	var current strings.Builder
	words := 0

	flush := func() {
		t := strings.TrimSpace(current.String())
		if t == "" {
			return
		}
		paras = append(paras, Paragraph{
			Index: len(paras),
			Text:  t,
			Hash:  Hash(t),
		})
		current.Reset()
		words = 0
	}

	for _, sentence := range splitSentences(normalized) {
		n := len(strings.Fields(sentence))
		if words > 0 && words+n > maxWords {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(strings.TrimSpace(sentence))
		words += n
	}
	flush()

	return paras
}

// SplitForVendor breaks text into pieces no longer than maxChars runes,
// preferring sentence boundaries and falling back to a hard split only when
// a single sentence exceeds the cap.
func SplitForVendor(s string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return []string{s}
	}

	var parts []string
	var current strings.Builder

	appendPiece := func(piece string) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			return
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(piece) > maxChars {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(piece)
	}

	for _, sentence := range splitSentences(s) {
		if utf8.RuneCountInString(sentence) <= maxChars {
			appendPiece(sentence)
			continue
		}
		// sentence alone exceeds the vendor cap, hard-split on runes
		runes := []rune(strings.TrimSpace(sentence))
		for start := 0; start < len(runes); start += maxChars {
			end := start + maxChars
			if end > len(runes) {
				end = len(runes)
			}
			appendPiece(string(runes[start:end]))
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

func splitSentences(s string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ') {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, current.String())
	}

	return sentences
}
