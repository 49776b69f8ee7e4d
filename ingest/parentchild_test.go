package ingest

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// sampleDoc is roughly 200 tokens of sentence-structured text.
func sampleDoc() ragcache.Document {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river. ")
	}
	return ragcache.Document{ID: "doc-1", Content: strings.TrimSpace(b.String())}
}

func TestParentChildBuildDeterministic(t *testing.T) {
	b := NewParentChildBuilder(WithParentTokens(50), WithChildTokens(10), WithOverlapTokens(2), WithSlackTokens(5))
	doc := sampleDoc()

	p1, c1, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p2, c2, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(p1, p2) || !reflect.DeepEqual(c1, c2) {
		t.Error("identical input produced different chunks")
	}
}

func TestParentChildCoversWholeDocument(t *testing.T) {
	b := NewParentChildBuilder(WithParentTokens(50), WithChildTokens(10), WithOverlapTokens(2), WithSlackTokens(5))
	doc := sampleDoc()

	parents, _, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) < 2 {
		t.Fatalf("got %d parents, want a multi-parent split", len(parents))
	}

	// Parents partition the content: concatenating their spans in order
	// reconstructs the document exactly.
	var rebuilt strings.Builder
	prevEnd := 0
	for i, p := range parents {
		if p.OrderIndex != i {
			t.Errorf("parent %d has order index %d", i, p.OrderIndex)
		}
		if p.Start != prevEnd {
			t.Errorf("parent %d starts at %d, want %d (no gaps, no overlap)", i, p.Start, prevEnd)
		}
		if p.Text != doc.Content[p.Start:p.End] {
			t.Errorf("parent %d text does not match its span", i)
		}
		rebuilt.WriteString(p.Text)
		prevEnd = p.End
	}
	if rebuilt.String() != doc.Content {
		t.Error("concatenated parents do not reconstruct the document")
	}
}

func TestParentChildLinkage(t *testing.T) {
	b := NewParentChildBuilder(WithParentTokens(50), WithChildTokens(10), WithOverlapTokens(2), WithSlackTokens(5))
	doc := sampleDoc()

	parents, children, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) < 4 {
		t.Fatalf("got %d children, want at least 4", len(children))
	}

	byID := make(map[string]ragcache.ParentChunk, len(parents))
	for _, p := range parents {
		byID[p.ID] = p
	}
	for _, c := range children {
		p, ok := byID[c.ParentID]
		if !ok {
			t.Fatalf("child %s references unknown parent %s", c.ID, c.ParentID)
		}
		if c.Start < p.Start || c.End > p.End {
			t.Errorf("child %s span [%d,%d) escapes parent [%d,%d)", c.ID, c.Start, c.End, p.Start, p.End)
		}
		if c.Text != doc.Content[c.Start:c.End] {
			t.Errorf("child %s text does not match its span", c.ID)
		}
		if !strings.Contains(p.Text, c.Text) {
			t.Errorf("child %s text not contained in parent", c.ID)
		}
	}

	// The hierarchy the builder emits must pass full link validation.
	if _, err := ragcache.NewHierarchy(doc.ID, parents, children); err != nil {
		t.Errorf("built hierarchy fails validation: %v", err)
	}
}

func TestParentChildAdjacentChildrenOverlap(t *testing.T) {
	b := NewParentChildBuilder(WithParentTokens(100), WithChildTokens(10), WithOverlapTokens(3), WithSlackTokens(10))
	doc := sampleDoc()

	_, children, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	overlapping := 0
	for i := 1; i < len(children); i++ {
		prev, cur := children[i-1], children[i]
		if cur.ParentID != prev.ParentID {
			continue
		}
		if cur.Start < prev.End {
			overlapping++
		}
		if cur.Start < prev.Start {
			t.Errorf("children out of order at %d", i)
		}
	}
	if overlapping == 0 {
		t.Error("no adjacent children overlap despite configured overlap")
	}
}

func TestParentChildEmptyDocument(t *testing.T) {
	b := NewParentChildBuilder()
	for _, content := range []string{"", "   \n\t  "} {
		_, _, err := b.Build(ragcache.Document{ID: "d", Content: content})
		if !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("Build(%q) err = %v, want ErrEmptyDocument", content, err)
		}
	}
}

func TestParentChildInvalidSizes(t *testing.T) {
	doc := sampleDoc()
	tests := []struct {
		name string
		opts []BuilderOption
	}{
		{"zero parent", []BuilderOption{WithParentTokens(0)}},
		{"negative child", []BuilderOption{WithChildTokens(-1)}},
		{"child exceeds parent", []BuilderOption{WithParentTokens(10), WithChildTokens(20)}},
		{"overlap equals child", []BuilderOption{WithChildTokens(10), WithOverlapTokens(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewParentChildBuilder(tt.opts...)
			_, _, err := b.Build(doc)
			var sizeErr *ErrInvalidSize
			if !errors.As(err, &sizeErr) {
				t.Errorf("err = %v, want *ErrInvalidSize", err)
			}
		})
	}
}

func TestParentChildSingleParentForShortDoc(t *testing.T) {
	b := NewParentChildBuilder()
	doc := ragcache.Document{ID: "short", Content: "Just one small sentence."}

	parents, children, err := b.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 {
		t.Fatalf("got %d parents, want 1", len(parents))
	}
	if parents[0].Text != doc.Content {
		t.Errorf("parent text = %q", parents[0].Text)
	}
	if len(children) != 1 || children[0].Text != doc.Content {
		t.Errorf("children = %+v, want one covering the document", children)
	}
}

func TestChunkIDsStableAcrossStrategConfigs(t *testing.T) {
	// IDs depend only on document ID and position, so the same position
	// always gets the same ID.
	if parentChunkID("doc", 0) != parentChunkID("doc", 0) {
		t.Error("parent IDs unstable")
	}
	if parentChunkID("doc", 0) == parentChunkID("doc", 1) {
		t.Error("distinct positions share an ID")
	}
	if parentChunkID("doc", 0) == parentChunkID("other", 0) {
		t.Error("distinct documents share an ID")
	}
	if childChunkID("doc", 0, 1) == childChunkID("doc", 1, 0) {
		t.Error("child ID ignores position structure")
	}
}
