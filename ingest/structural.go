package ingest

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// StructuralBuilder cuts parents at document structure instead of at a
// size target: Markdown headings when present, paragraph breaks otherwise.
// Consecutive sections are grouped into one parent until the parent-size
// budget is reached, so a run of short sections does not produce a run of
// tiny parents.
type StructuralBuilder struct {
	cfg builderConfig
	md  goldmark.Markdown
}

var _ HierarchyBuilder = (*StructuralBuilder)(nil)

// NewStructuralBuilder creates the builder. Size options bound parent
// grouping and child splitting; the cut points themselves come from the
// document.
func NewStructuralBuilder(opts ...BuilderOption) *StructuralBuilder {
	cfg := defaultBuilderConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &StructuralBuilder{cfg: cfg, md: goldmark.New()}
}

func (b *StructuralBuilder) Name() string { return StrategyStructural }

// Build splits doc at heading or paragraph boundaries. Deterministic for
// identical input and parameters.
func (b *StructuralBuilder) Build(doc ragcache.Document) ([]ragcache.ParentChunk, []ragcache.ChildChunk, error) {
	if err := validateSizes(b.cfg); err != nil {
		return nil, nil, err
	}
	text := doc.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyDocument
	}

	parentChars := b.cfg.parentTokens * charsPerToken
	childChars := b.cfg.childTokens * charsPerToken
	overlapChars := b.cfg.overlapTokens * charsPerToken

	sections := b.sections(text)
	parentSpans := groupSections(sections, parentChars)

	var parents []ragcache.ParentChunk
	var children []ragcache.ChildChunk
	for pi, ps := range parentSpans {
		parent := ragcache.ParentChunk{
			ID:         parentChunkID(doc.ID, pi),
			DocumentID: doc.ID,
			Text:       text[ps.start:ps.end],
			OrderIndex: pi,
			Strategy:   StrategyStructural,
			Start:      ps.start,
			End:        ps.end,
		}
		for ci, cs := range childSpans(parent.Text, childChars, overlapChars) {
			child := ragcache.ChildChunk{
				ID:         childChunkID(doc.ID, pi, ci),
				ParentID:   parent.ID,
				DocumentID: doc.ID,
				Text:       parent.Text[cs.start:cs.end],
				OrderIndex: ci,
				Start:      ps.start + cs.start,
				End:        ps.start + cs.end,
			}
			parent.ChildIDs = append(parent.ChildIDs, child.ID)
			children = append(children, child)
		}
		parents = append(parents, parent)
	}
	return parents, children, nil
}

// sections splits text into contiguous spans starting at each heading
// line, falling back to paragraph breaks when the document has no
// headings. The first section always starts at 0, so sections partition
// the text.
func (b *StructuralBuilder) sections(text string) []span {
	cuts := b.headingOffsets(text)
	if len(cuts) == 0 {
		cuts = paragraphBoundaries(text)
	}

	sort.Ints(cuts)
	starts := []int{0}
	for _, c := range cuts {
		if c > starts[len(starts)-1] && c < len(text) {
			starts = append(starts, c)
		}
	}

	spans := make([]span, len(starts))
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		spans[i] = span{s, end}
	}
	return spans
}

// headingOffsets parses text as Markdown and returns the byte offset of
// the line start of every heading.
func (b *StructuralBuilder) headingOffsets(text string) []int {
	src := []byte(text)
	root := b.md.Parser().Parse(gmtext.NewReader(src))

	var offsets []int
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		offsets = append(offsets, lineStart(text, h.Lines().At(0).Start))
		return ast.WalkContinue, nil
	})
	return offsets
}

// lineStart walks back from pos to the start of its line.
func lineStart(text string, pos int) int {
	for pos > 0 && text[pos-1] != '\n' {
		pos--
	}
	return pos
}

// groupSections greedily packs consecutive sections into parents of at
// most budget bytes, always taking at least one section per parent.
func groupSections(sections []span, budget int) []span {
	var out []span
	for i := 0; i < len(sections); {
		start := sections[i].start
		end := sections[i].end
		i++
		for i < len(sections) && sections[i].end-start <= budget {
			end = sections[i].end
			i++
		}
		out = append(out, span{start, end})
	}
	return out
}
