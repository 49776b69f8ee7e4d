package ingest

import (
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{"md", TypeMarkdown},
		{"markdown", TypeMarkdown},
		{"MD", TypeMarkdown},
		{"html", TypeHTML},
		{"htm", TypeHTML},
		{"pdf", TypePDF},
		{"txt", TypePlainText},
		{"", TypePlainText},
		{"docx", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestPlainTextExtractorPassesThrough(t *testing.T) {
	in := "# Heading\n\nbody text"
	got, err := ExtractorFor(TypeMarkdown).Extract([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	// Markdown is not stripped: the structural strategy needs the headings.
	if got != in {
		t.Errorf("Extract = %q, want unchanged input", got)
	}
}

func TestHTMLExtractorStripsMarkup(t *testing.T) {
	page := `<html><head><title>T</title><script>var x=1;</script></head>
<body><nav>skip me</nav><article><p>The actual article text lives here and
continues with several sentences so the extractor treats it as content.
It has more than one paragraph of meaningful prose to work with.</p>
<p>A second paragraph adds further substance to the extracted body.</p>
</article></body></html>`

	got, err := ExtractorFor(TypeHTML).Extract([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "actual article text") {
		t.Errorf("extracted text missing article body: %q", got)
	}
	if strings.Contains(got, "<p>") || strings.Contains(got, "var x=1") {
		t.Errorf("markup or script leaked into output: %q", got)
	}
}
