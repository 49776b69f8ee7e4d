package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// Pipeline runs the full ingestion path: extract text, build the chunk
// hierarchy, embed the children, publish to the hierarchy table, and
// optionally persist. One document at a time; the table's atomic publish
// keeps concurrent queries consistent.
type Pipeline struct {
	table    *ragcache.HierarchyTable
	embedder ragcache.EmbeddingProvider
	builder  HierarchyBuilder
	store    ragcache.HierarchyStore
	logger   *slog.Logger
	batch    int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithBuilder selects the chunking strategy. Defaults to parent-child.
func WithBuilder(b HierarchyBuilder) PipelineOption {
	return func(p *Pipeline) { p.builder = b }
}

// WithHierarchyStore persists each ingested document. Without it the
// hierarchy lives only in memory.
func WithHierarchyStore(s ragcache.HierarchyStore) PipelineOption {
	return func(p *Pipeline) { p.store = s }
}

// WithBatchSize bounds how many child texts go to the embedding provider
// per call. Defaults to 64.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batch = n
		}
	}
}

// WithLogger sets the pipeline's logger. Silent by default.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a pipeline publishing into table and embedding
// children with embedder.
func NewPipeline(table *ragcache.HierarchyTable, embedder ragcache.EmbeddingProvider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		table:    table,
		embedder: embedder,
		builder:  NewParentChildBuilder(),
		logger:   slog.New(slog.DiscardHandler),
		batch:    64,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// IngestText ingests raw text as one document. An empty id gets a fresh
// one; note that generated IDs make chunk IDs differ between ingests of
// the same text.
func (p *Pipeline) IngestText(ctx context.Context, id, title, source, text string) (*ragcache.Hierarchy, error) {
	if id == "" {
		id = ragcache.NewID()
	}
	doc := ragcache.Document{
		ID:        id,
		Title:     title,
		Source:    source,
		Content:   text,
		CreatedAt: time.Now().Unix(),
	}
	return p.ingest(ctx, doc)
}

// IngestFile reads a file, picks an extractor by extension, and ingests
// the extracted text. The document ID is derived from the path so
// re-ingesting the same file replaces its hierarchy.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*ragcache.Hierarchy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ct := ContentTypeFromExtension(strings.TrimPrefix(filepath.Ext(path), "."))
	text, err := ExtractorFor(ct).Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	doc := ragcache.Document{
		ID:        path,
		Title:     filepath.Base(path),
		Source:    path,
		Content:   text,
		CreatedAt: time.Now().Unix(),
	}
	return p.ingest(ctx, doc)
}

func (p *Pipeline) ingest(ctx context.Context, doc ragcache.Document) (*ragcache.Hierarchy, error) {
	start := time.Now()

	parents, children, err := p.builder.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}
	if err := p.embedChildren(ctx, children); err != nil {
		return nil, err
	}

	h, err := ragcache.NewHierarchy(doc.ID, parents, children)
	if err != nil {
		return nil, fmt.Errorf("validate hierarchy: %w", err)
	}
	p.table.Publish(h)

	if p.store != nil {
		if err := p.store.SaveHierarchy(ctx, doc, parents, children); err != nil {
			return nil, fmt.Errorf("persist hierarchy: %w", err)
		}
	}

	p.logger.Info("document ingested",
		"document_id", doc.ID,
		"strategy", p.builder.Name(),
		"parents", len(parents),
		"children", len(children),
		"duration_ms", time.Since(start).Milliseconds())
	return h, nil
}

// embedChildren fills in child embeddings in batches.
func (p *Pipeline) embedChildren(ctx context.Context, children []ragcache.ChildChunk) error {
	for lo := 0; lo < len(children); lo += p.batch {
		hi := lo + p.batch
		if hi > len(children) {
			hi = len(children)
		}
		texts := make([]string, 0, hi-lo)
		for _, c := range children[lo:hi] {
			texts = append(texts, c.Text)
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed children [%d:%d]: %w", lo, hi, err)
		}
		if len(vecs) != hi-lo {
			return fmt.Errorf("embed children [%d:%d]: got %d vectors", lo, hi, len(vecs))
		}
		for i := range vecs {
			children[lo+i].Embedding = vecs[i]
		}
	}
	return nil
}

// Restore republishes every persisted document from the hierarchy store.
// Documents that fail validation are skipped with a warning.
func (p *Pipeline) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	docs, err := p.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		_, parents, children, err := p.store.LoadHierarchy(ctx, doc.ID)
		if err != nil {
			p.logger.Warn("skipping document", "document_id", doc.ID, "error", err)
			continue
		}
		h, err := ragcache.NewHierarchy(doc.ID, parents, children)
		if err != nil {
			p.logger.Warn("skipping document", "document_id", doc.ID, "error", err)
			continue
		}
		p.table.Publish(h)
	}
	return nil
}
