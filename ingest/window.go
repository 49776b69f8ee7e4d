package ingest

import (
	"strings"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// WindowBuilder slides a fixed-size window over the document and groups
// consecutive windows under synthesized parents. Unlike the parent-child
// strategy, neighboring parents may overlap where their edge windows do;
// the window stride, not document structure, decides the cuts.
type WindowBuilder struct {
	cfg builderConfig
}

var _ HierarchyBuilder = (*WindowBuilder)(nil)

// NewWindowBuilder creates the builder with defaults of 100-token windows,
// 20 tokens of overlap, and 4 windows per parent.
func NewWindowBuilder(opts ...BuilderOption) *WindowBuilder {
	cfg := defaultBuilderConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &WindowBuilder{cfg: cfg}
}

func (b *WindowBuilder) Name() string { return StrategyWindow }

// Build slides windows over doc and groups them into parents.
// Deterministic for identical input and parameters.
func (b *WindowBuilder) Build(doc ragcache.Document) ([]ragcache.ParentChunk, []ragcache.ChildChunk, error) {
	if err := b.validate(); err != nil {
		return nil, nil, err
	}
	text := doc.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyDocument
	}

	windowChars := b.cfg.windowTokens * charsPerToken
	overlapChars := b.cfg.overlapTokens * charsPerToken

	windows := childSpans(text, windowChars, overlapChars)

	var parents []ragcache.ParentChunk
	var children []ragcache.ChildChunk
	for pi := 0; pi*b.cfg.groupSize < len(windows); pi++ {
		group := windows[pi*b.cfg.groupSize:]
		if len(group) > b.cfg.groupSize {
			group = group[:b.cfg.groupSize]
		}
		ps := span{group[0].start, group[len(group)-1].end}
		parent := ragcache.ParentChunk{
			ID:         parentChunkID(doc.ID, pi),
			DocumentID: doc.ID,
			Text:       text[ps.start:ps.end],
			OrderIndex: pi,
			Strategy:   StrategyWindow,
			Start:      ps.start,
			End:        ps.end,
		}
		for ci, ws := range group {
			child := ragcache.ChildChunk{
				ID:         childChunkID(doc.ID, pi, ci),
				ParentID:   parent.ID,
				DocumentID: doc.ID,
				Text:       text[ws.start:ws.end],
				OrderIndex: ci,
				Start:      ws.start,
				End:        ws.end,
			}
			parent.ChildIDs = append(parent.ChildIDs, child.ID)
			children = append(children, child)
		}
		parents = append(parents, parent)
	}
	return parents, children, nil
}

func (b *WindowBuilder) validate() error {
	if b.cfg.windowTokens <= 0 {
		return &ErrInvalidSize{Reason: "window size must be positive"}
	}
	if b.cfg.overlapTokens < 0 || b.cfg.overlapTokens >= b.cfg.windowTokens {
		return &ErrInvalidSize{Reason: "overlap must be smaller than window size"}
	}
	if b.cfg.groupSize <= 0 {
		return &ErrInvalidSize{Reason: "group size must be positive"}
	}
	return nil
}
