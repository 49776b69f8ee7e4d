package ragcache

import "testing"

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "what is go", "what is go"},
		{"case folded", "What Is GO", "what is go"},
		{"punctuation stripped", "what, is go?!", "what is go"},
		{"whitespace collapsed", "  what \t is\n\ngo  ", "what is go"},
		{"digits kept", "top 10 results", "top 10 results"},
		{"unicode folded", "Größe", "grösse"},
		{"fullwidth normalized", "ｗｈａｔ", "what"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(tt.input); got != tt.want {
				t.Errorf("Fingerprint(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFingerprintIdempotent(t *testing.T) {
	inputs := []string{"What IS go?", "  spaced   out  ", "Größe: 10"}
	for _, in := range inputs {
		once := Fingerprint(in)
		if twice := Fingerprint(once); twice != once {
			t.Errorf("Fingerprint not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestFingerprintEquivalentQueriesCollide(t *testing.T) {
	a := Fingerprint("What is the capital of France?")
	b := Fingerprint("what is the capital of france")
	if a != b {
		t.Errorf("equivalent queries fingerprint differently: %q vs %q", a, b)
	}
}
