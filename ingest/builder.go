// Package ingest builds hierarchical chunk stores from documents.
//
// A HierarchyBuilder splits one document into large parent chunks and
// small child chunks with stable, deterministic IDs and bidirectional
// links. Three strategies ship: parent-child (size-targeted spans at
// sentence boundaries), structural (heading/paragraph boundaries), and
// window (fixed-stride sliding windows). All three emit chunks satisfying
// the same invariants, so downstream consumers never care which strategy
// produced a chunk. Strategies are selected by configuration name, not by
// type inspection.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// charsPerToken approximates tokens as 4 characters, the usual rule of
// thumb for English text.
const charsPerToken = 4

// HierarchyBuilder splits a document into linked parent and child chunks.
// Same document, same parameters, same strategy ⇒ byte-identical chunk
// boundaries and IDs, so re-ingestion is idempotent.
type HierarchyBuilder interface {
	Build(doc ragcache.Document) ([]ragcache.ParentChunk, []ragcache.ChildChunk, error)
	Name() string
}

// ErrEmptyDocument is returned by Build on zero-length (or all-whitespace)
// input.
var ErrEmptyDocument = errors.New("ingest: empty document")

// ErrInvalidSize reports a size parameter rejected before building.
type ErrInvalidSize struct {
	Reason string
}

func (e *ErrInvalidSize) Error() string {
	return "ingest: invalid size: " + e.Reason
}

// BuilderOption configures a builder.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	parentTokens  int
	childTokens   int
	overlapTokens int
	slackTokens   int
	windowTokens  int
	groupSize     int
}

func defaultBuilderConfig() builderConfig {
	return builderConfig{
		parentTokens:  400,
		childTokens:   100,
		overlapTokens: 20,
		slackTokens:   50,
		windowTokens:  100,
		groupSize:     4,
	}
}

// WithParentTokens sets the approximate parent-chunk size in tokens.
func WithParentTokens(n int) BuilderOption {
	return func(c *builderConfig) { c.parentTokens = n }
}

// WithChildTokens sets the approximate child-chunk size in tokens.
func WithChildTokens(n int) BuilderOption {
	return func(c *builderConfig) { c.childTokens = n }
}

// WithOverlapTokens sets the overlap shared between adjacent children of
// the same parent (parent-child strategy) or adjacent windows (window
// strategy). Overlap never crosses a parent boundary.
func WithOverlapTokens(n int) BuilderOption {
	return func(c *builderConfig) { c.overlapTokens = n }
}

// WithSlackTokens sets how far past or short of the parent-size target the
// splitter may reach for a sentence or paragraph boundary before it gives
// up and cuts at a word boundary.
func WithSlackTokens(n int) BuilderOption {
	return func(c *builderConfig) { c.slackTokens = n }
}

// WithWindowTokens sets the window size for the sliding-window strategy.
func WithWindowTokens(n int) BuilderOption {
	return func(c *builderConfig) { c.windowTokens = n }
}

// WithGroupSize sets how many consecutive windows the window strategy
// groups under one synthesized parent.
func WithGroupSize(n int) BuilderOption {
	return func(c *builderConfig) { c.groupSize = n }
}

// Strategy names accepted by ForStrategy.
const (
	StrategyParentChild = "parent-child"
	StrategyStructural  = "structural"
	StrategyWindow      = "window"
)

// ForStrategy returns the builder registered under name. The strategy set
// is closed; unknown names fail.
func ForStrategy(name string, opts ...BuilderOption) (HierarchyBuilder, error) {
	switch name {
	case StrategyParentChild:
		return NewParentChildBuilder(opts...), nil
	case StrategyStructural:
		return NewStructuralBuilder(opts...), nil
	case StrategyWindow:
		return NewWindowBuilder(opts...), nil
	default:
		return nil, fmt.Errorf("ingest: unknown strategy %q", name)
	}
}

// validateSizes rejects misconfigured chunk sizes before any splitting.
func validateSizes(cfg builderConfig) error {
	if cfg.parentTokens <= 0 || cfg.childTokens <= 0 {
		return &ErrInvalidSize{Reason: "chunk sizes must be positive"}
	}
	if cfg.childTokens > cfg.parentTokens {
		return &ErrInvalidSize{Reason: fmt.Sprintf("child size %d exceeds parent size %d", cfg.childTokens, cfg.parentTokens)}
	}
	if cfg.overlapTokens < 0 || cfg.overlapTokens >= cfg.childTokens {
		return &ErrInvalidSize{Reason: fmt.Sprintf("overlap %d must be smaller than child size %d", cfg.overlapTokens, cfg.childTokens)}
	}
	return nil
}

// parentChunkID derives a stable parent ID from the document ID and the
// parent's order index. No randomness: rebuilding yields identical IDs.
func parentChunkID(docID string, index int) string {
	sum := sha256.Sum256([]byte(docID + ":parent:" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:16])
}

// childChunkID derives a stable child ID from the document ID, the
// enclosing parent's index, and the child's index within the parent.
func childChunkID(docID string, parentIndex, childIndex int) string {
	sum := sha256.Sum256([]byte(docID + ":child:" + strconv.Itoa(parentIndex) + ":" + strconv.Itoa(childIndex)))
	return hex.EncodeToString(sum[:16])
}
