package ingest

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// span is a half-open byte range [start, end) into a text.
type span struct {
	start, end int
}

// abbreviations that should NOT be treated as sentence boundaries.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

// isAbbreviation checks if the word ending at dotPos (the '.') is a common
// abbreviation.
func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	word := strings.ToLower(text[start:dotPos])
	return abbreviations[word]
}

// isDecimalDot checks if the dot at dotPos is part of a number (3.14, $1.50).
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prev, next := text[dotPos-1], text[dotPos+1]
	return prev >= '0' && prev <= '9' && next >= '0' && next <= '9'
}

// sentenceBoundaries returns byte positions where a new sentence starts.
// Handles ASCII punctuation (.!?) with abbreviation and decimal awareness,
// plus CJK sentence-ending punctuation (。！？).
func sentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		// CJK sentence-ending punctuation — always a boundary after.
		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		dotPos := byteOffsets[i]
		if r == '.' && (isDecimalDot(text, dotPos) || isAbbreviation(text, dotPos)) {
			continue
		}

		// Need whitespace after the punctuation for it to end a sentence.
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			boundaries = append(boundaries, byteOffsets[i+2])
		} else if i+1 == n {
			boundaries = append(boundaries, byteOffsets[n])
		}
	}
	return boundaries
}

// paragraphBoundaries returns byte positions immediately after each blank
// line run.
func paragraphBoundaries(text string) []int {
	var boundaries []int
	i := 0
	for {
		idx := strings.Index(text[i:], "\n\n")
		if idx < 0 {
			return boundaries
		}
		pos := i + idx + 2
		// Swallow any further newlines so the boundary lands on content.
		for pos < len(text) && text[pos] == '\n' {
			pos++
		}
		boundaries = append(boundaries, pos)
		i = pos
	}
}

// splitBoundaries merges sentence and paragraph boundaries into one sorted,
// deduplicated list of candidate split points.
func splitBoundaries(text string) []int {
	merged := append(sentenceBoundaries(text), paragraphBoundaries(text)...)
	sort.Ints(merged)
	out := merged[:0]
	var last int = -1
	for _, b := range merged {
		if b != last && b > 0 && b <= len(text) {
			out = append(out, b)
			last = b
		}
	}
	return out
}

// nearestBoundary picks the boundary closest to target within
// [target-slack, target+slack], after start. Returns -1 when the window
// holds none.
func nearestBoundary(bounds []int, start, target, slack int) int {
	best := -1
	for _, b := range bounds {
		if b <= start || b < target-slack {
			continue
		}
		if b > target+slack {
			break
		}
		if best == -1 || abs(b-target) < abs(best-target) {
			best = b
		}
	}
	return best
}

// wordCutNear finds a safe cut at or before pos: after the nearest space
// walking backward, falling back to the nearest rune start. Always > min
// when possible, so the caller makes progress.
func wordCutNear(text string, pos, min int) int {
	if pos >= len(text) {
		return len(text)
	}
	for i := pos; i > min; i-- {
		if text[i-1] == ' ' || text[i-1] == '\n' {
			return i
		}
	}
	// No whitespace in range — cut at a rune start to stay valid UTF-8.
	cut := pos
	for cut > min && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut <= min {
		cut = nextRuneStart(text, min+1)
	}
	return cut
}

func nextRuneStart(text string, pos int) int {
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
