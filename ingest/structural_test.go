package ingest

import (
	"strings"
	"testing"

	ragcache "github.com/fnusatvik07/rag-project2"
)

const markdownDoc = `# Introduction

This is the opening section. It sets the stage for everything after it.

# Methods

We describe the approach here. Several sentences explain the procedure in
enough detail to reproduce it. The text keeps going for a while.

## Data collection

Samples were gathered over six months from three sites.

# Results

The findings were surprising and are summarized below in plain prose.
`

func TestStructuralSplitsAtHeadings(t *testing.T) {
	// Tiny parent budget so every heading section becomes its own parent.
	b := NewStructuralBuilder(WithParentTokens(10), WithChildTokens(10), WithOverlapTokens(2))
	doc := ragcache.Document{ID: "md", Content: markdownDoc}

	parents, _, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) < 4 {
		t.Fatalf("got %d parents, want one per heading section", len(parents))
	}
	if !strings.HasPrefix(parents[0].Text, "# Introduction") {
		t.Errorf("first parent starts %q", firstLine(parents[0].Text))
	}
	// Every parent after the first begins at a heading line.
	for i, p := range parents[1:] {
		if !strings.HasPrefix(p.Text, "#") {
			t.Errorf("parent %d starts mid-section: %q", i+1, firstLine(p.Text))
		}
	}
}

func TestStructuralParentsPartitionDocument(t *testing.T) {
	b := NewStructuralBuilder(WithParentTokens(10), WithChildTokens(10), WithOverlapTokens(2))
	doc := ragcache.Document{ID: "md", Content: markdownDoc}

	parents, children, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	var rebuilt strings.Builder
	prevEnd := 0
	for i, p := range parents {
		if p.Start != prevEnd {
			t.Errorf("parent %d starts at %d, want %d", i, p.Start, prevEnd)
		}
		rebuilt.WriteString(p.Text)
		prevEnd = p.End
	}
	if rebuilt.String() != doc.Content {
		t.Error("parents do not reconstruct the document")
	}
	if _, err := ragcache.NewHierarchy(doc.ID, parents, children); err != nil {
		t.Errorf("hierarchy fails validation: %v", err)
	}
}

func TestStructuralGroupsSmallSectionsUnderBudget(t *testing.T) {
	// Generous budget: all sections fit into a single parent.
	b := NewStructuralBuilder(WithParentTokens(400), WithChildTokens(50))
	doc := ragcache.Document{ID: "md", Content: markdownDoc}

	parents, _, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 {
		t.Errorf("got %d parents, want all sections grouped into 1", len(parents))
	}
}

func TestStructuralFallsBackToParagraphs(t *testing.T) {
	plain := "First paragraph with a couple of sentences in it.\n\n" +
		"Second paragraph carries on with more prose here.\n\n" +
		"Third paragraph wraps the little document up nicely."
	b := NewStructuralBuilder(WithParentTokens(13), WithChildTokens(10), WithOverlapTokens(2))

	parents, _, err := b.Build(ragcache.Document{ID: "plain", Content: plain})
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) < 2 {
		t.Fatalf("got %d parents, want paragraph-based split", len(parents))
	}
	if !strings.HasPrefix(parents[1].Text, "Second paragraph") {
		t.Errorf("second parent starts %q, want a paragraph start", firstLine(parents[1].Text))
	}
}

func TestStructuralDeterministic(t *testing.T) {
	b := NewStructuralBuilder(WithParentTokens(10), WithChildTokens(10), WithOverlapTokens(2))
	doc := ragcache.Document{ID: "md", Content: markdownDoc}

	p1, c1, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	p2, c2, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	for i := range p1 {
		if p1[i].ID != p2[i].ID || p1[i].Start != p2[i].Start {
			t.Fatalf("parent %d differs across rebuilds", i)
		}
	}
	if len(c1) != len(c2) {
		t.Fatalf("child counts differ: %d vs %d", len(c1), len(c2))
	}
}

func TestStructuralEmptyDocument(t *testing.T) {
	b := NewStructuralBuilder()
	if _, _, err := b.Build(ragcache.Document{ID: "d", Content: "\n\n  "}); err != ErrEmptyDocument {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
