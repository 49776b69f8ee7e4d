package ingest

import (
	"reflect"
	"testing"
)

func TestSentenceBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{"two sentences", "One here. Two here.", []int{10, 19}},
		{"exclamation and question", "Wait! Really? Yes.", []int{6, 14, 18}},
		{"abbreviation not a boundary", "Dr. Smith left.", []int{15}},
		{"decimal not a boundary", "Pi is 3.14 here.", []int{16}},
		{"no trailing space no boundary", "ver1.2continues on", nil},
		{"none", "no punctuation at all", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sentenceBoundaries(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("sentenceBoundaries(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSentenceBoundariesCJK(t *testing.T) {
	in := "これは文です。次の文。"
	got := sentenceBoundaries(in)
	if len(got) != 2 {
		t.Fatalf("got %d boundaries, want 2: %v", len(got), got)
	}
	// Boundaries must land on rune starts.
	for _, b := range got {
		if b > len(in) {
			t.Errorf("boundary %d past end", b)
		}
	}
	if in[:got[0]] != "これは文です。" {
		t.Errorf("first sentence = %q", in[:got[0]])
	}
}

func TestParagraphBoundaries(t *testing.T) {
	in := "para one\n\npara two\n\n\npara three"
	got := paragraphBoundaries(in)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 boundaries", got)
	}
	if in[got[0]:got[0]+8] != "para two" {
		t.Errorf("first boundary lands at %q", in[got[0]:])
	}
	// Extra newlines are swallowed so the boundary lands on content.
	if in[got[1]:] != "para three" {
		t.Errorf("second boundary lands at %q", in[got[1]:])
	}
}

func TestNearestBoundary(t *testing.T) {
	bounds := []int{10, 25, 40}
	tests := []struct {
		start, target, slack int
		want                 int
	}{
		{0, 24, 5, 25},  // closest in window
		{0, 16, 10, 10}, // 10 is closer than 25
		{0, 17, 3, -1},  // nothing within slack
		{25, 25, 10, -1}, // boundaries at or before start excluded
		{0, 33, 10, 40}, // 40 is one closer to target than 25
	}
	for _, tt := range tests {
		if got := nearestBoundary(bounds, tt.start, tt.target, tt.slack); got != tt.want {
			t.Errorf("nearestBoundary(start=%d target=%d slack=%d) = %d, want %d",
				tt.start, tt.target, tt.slack, got, tt.want)
		}
	}
}

func TestWordCutNear(t *testing.T) {
	text := "alpha beta gamma"
	if got := wordCutNear(text, 9, 0); got != 6 {
		t.Errorf("cut = %d, want 6 (after the space before beta)", got)
	}
	if got := wordCutNear(text, 100, 0); got != len(text) {
		t.Errorf("cut past end = %d, want len", got)
	}
	// No whitespace in range: cut must still make progress past min.
	long := "abcdefghij"
	got := wordCutNear(long, 5, 0)
	if got <= 0 || got > 5 {
		t.Errorf("cut = %d, want progress within (0,5]", got)
	}
}

func TestWordCutNearMultibyte(t *testing.T) {
	// No spaces: the cut must land on a rune start, never mid-encoding.
	text := "日本語のテキスト"
	for pos := 1; pos < len(text); pos++ {
		cut := wordCutNear(text, pos, 0)
		if cut <= 0 || cut > len(text) {
			t.Fatalf("cut = %d out of range for pos %d", cut, pos)
		}
		if cut < len(text) && (text[cut]&0xC0) == 0x80 {
			t.Errorf("pos %d: cut %d lands mid-rune", pos, cut)
		}
	}
}

func TestChildSpansCoverText(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve"
	spans := childSpans(text, 20, 5)
	if len(spans) < 2 {
		t.Fatalf("got %d spans, want several", len(spans))
	}
	if spans[0].start != 0 {
		t.Errorf("first span starts at %d", spans[0].start)
	}
	if spans[len(spans)-1].end != len(text) {
		t.Errorf("last span ends at %d, want %d", spans[len(spans)-1].end, len(text))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].start > spans[i-1].end {
			t.Errorf("gap between spans %d and %d", i-1, i)
		}
		if spans[i].start <= spans[i-1].start {
			t.Errorf("span %d does not advance", i)
		}
	}
}
