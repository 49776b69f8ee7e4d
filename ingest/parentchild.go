package ingest

import (
	"strings"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// ParentChildBuilder is the default strategy: parents are size-targeted
// contiguous spans cut at sentence or paragraph boundaries, children are
// overlapping sub-spans of their parent cut at word boundaries. Parent
// spans partition the document, so concatenating them in order
// reconstructs it exactly.
type ParentChildBuilder struct {
	cfg builderConfig
}

var _ HierarchyBuilder = (*ParentChildBuilder)(nil)

// NewParentChildBuilder creates the builder with defaults of roughly 400
// parent tokens, 100 child tokens, and 20 tokens of child overlap.
func NewParentChildBuilder(opts ...BuilderOption) *ParentChildBuilder {
	cfg := defaultBuilderConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &ParentChildBuilder{cfg: cfg}
}

func (b *ParentChildBuilder) Name() string { return StrategyParentChild }

// Build splits doc into parents and children. Deterministic: identical
// input and parameters produce identical spans and IDs.
func (b *ParentChildBuilder) Build(doc ragcache.Document) ([]ragcache.ParentChunk, []ragcache.ChildChunk, error) {
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
	slackChars := b.cfg.slackTokens * charsPerToken

	parentSpans := partitionSpans(text, parentChars, slackChars)

	var parents []ragcache.ParentChunk
	var children []ragcache.ChildChunk
	for pi, ps := range parentSpans {
		parent := ragcache.ParentChunk{
			ID:         parentChunkID(doc.ID, pi),
			DocumentID: doc.ID,
			Text:       text[ps.start:ps.end],
			OrderIndex: pi,
			Strategy:   StrategyParentChild,
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

// partitionSpans cuts text into contiguous spans of roughly targetChars
// each, preferring sentence or paragraph boundaries within slackChars of
// the target and falling back to a word boundary. The spans cover the
// whole text with no gaps and no overlap.
func partitionSpans(text string, targetChars, slackChars int) []span {
	bounds := splitBoundaries(text)
	var spans []span
	start := 0
	for start < len(text) {
		// A short tail merges into the final span instead of producing a
		// fragment.
		if len(text)-start <= targetChars+slackChars {
			spans = append(spans, span{start, len(text)})
			break
		}
		target := start + targetChars
		end := nearestBoundary(bounds, start, target, slackChars)
		if end < 0 {
			end = wordCutNear(text, target, start)
		}
		if end <= start {
			end = nextRuneStart(text, start+1)
		}
		spans = append(spans, span{start, end})
		start = end
	}
	return spans
}

// childSpans cuts text into spans of roughly size bytes with overlap bytes
// shared between neighbors. Cuts land on word boundaries; the final span
// absorbs whatever remains.
func childSpans(text string, size, overlap int) []span {
	var spans []span
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = wordCutNear(text, end, start)
		}
		spans = append(spans, span{start, end})
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next > start {
			next = wordStartAfter(text, next)
		}
		if next <= start || next >= end {
			next = end
		}
		start = next
	}
	return spans
}

// wordStartAfter advances pos to the first word start at or after it.
func wordStartAfter(text string, pos int) int {
	pos = nextRuneStart(text, pos)
	for pos > 0 && pos < len(text) && text[pos-1] != ' ' && text[pos-1] != '\n' {
		pos++
	}
	return nextRuneStart(text, pos)
}
