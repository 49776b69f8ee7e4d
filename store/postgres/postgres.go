// Package postgres persists cache entries and chunk hierarchies in
// PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool; Close is a no-op.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// Store implements ragcache.CacheStore and ragcache.HierarchyStore backed
// by PostgreSQL. Embeddings and ID lists use native array and JSONB
// columns.
type Store struct {
	pool *pgxpool.Pool
}

var _ ragcache.CacheStore = (*Store)(nil)
var _ ragcache.HierarchyStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool. The caller owns the
// pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			tier TEXT NOT NULL,
			key TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			response TEXT NOT NULL DEFAULT '',
			embedding REAL[],
			child_ids JSONB,
			created_at BIGINT NOT NULL,
			ttl_seconds BIGINT NOT NULL,
			hit_count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (tier, key)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parent_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			order_index INT NOT NULL,
			strategy TEXT NOT NULL,
			child_ids JSONB NOT NULL,
			start_byte INT NOT NULL,
			end_byte INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS child_chunks (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			order_index INT NOT NULL,
			start_byte INT NOT NULL,
			end_byte INT NOT NULL,
			embedding REAL[]
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parent_chunks_doc ON parent_chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_child_chunks_doc ON child_chunks(document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// --- CacheStore ---

// SaveEntry upserts one cache entry keyed by (tier, key).
func (s *Store) SaveEntry(ctx context.Context, rec ragcache.EntryRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cache_entries
		(tier, key, fingerprint, response, embedding, child_ids, created_at, ttl_seconds, hit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tier, key) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			response = EXCLUDED.response,
			embedding = EXCLUDED.embedding,
			child_ids = EXCLUDED.child_ids,
			created_at = EXCLUDED.created_at,
			ttl_seconds = EXCLUDED.ttl_seconds,
			hit_count = EXCLUDED.hit_count`,
		rec.Tier, rec.Key, rec.Fingerprint, rec.Response, rec.Embedding, rec.ChildIDs,
		rec.CreatedAt, rec.TTLSeconds, rec.HitCount)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// LoadEntries returns all persisted entries for a tier.
func (s *Store) LoadEntries(ctx context.Context, tier string) ([]ragcache.EntryRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, fingerprint, response, embedding, child_ids, created_at, ttl_seconds, hit_count
		FROM cache_entries WHERE tier = $1`, tier)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var recs []ragcache.EntryRecord
	for rows.Next() {
		rec := ragcache.EntryRecord{Tier: tier}
		if err := rows.Scan(&rec.Key, &rec.Fingerprint, &rec.Response, &rec.Embedding, &rec.ChildIDs,
			&rec.CreatedAt, &rec.TTLSeconds, &rec.HitCount); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	return recs, nil
}

// DeleteEntry removes one cache entry. Deleting a missing entry is not an
// error.
func (s *Store) DeleteEntry(ctx context.Context, tier, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE tier = $1 AND key = $2`, tier, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// --- HierarchyStore ---

// SaveHierarchy replaces a document and all its chunks in one transaction.
func (s *Store) SaveHierarchy(ctx context.Context, doc ragcache.Document, parents []ragcache.ParentChunk, children []ragcache.ChildChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteDocumentTx(ctx, tx, doc.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO documents (id, title, source, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Title, doc.Source, doc.Content, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for _, p := range parents {
		if _, err := tx.Exec(ctx, `INSERT INTO parent_chunks
			(id, document_id, content, order_index, strategy, child_ids, start_byte, end_byte)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.DocumentID, p.Text, p.OrderIndex, p.Strategy, p.ChildIDs, p.Start, p.End); err != nil {
			return fmt.Errorf("insert parent chunk: %w", err)
		}
	}
	for _, c := range children {
		if _, err := tx.Exec(ctx, `INSERT INTO child_chunks
			(id, parent_id, document_id, content, order_index, start_byte, end_byte, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.ParentID, c.DocumentID, c.Text, c.OrderIndex, c.Start, c.End, c.Embedding); err != nil {
			return fmt.Errorf("insert child chunk: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// LoadHierarchy returns a document with its parent and child chunks in
// order-index order.
func (s *Store) LoadHierarchy(ctx context.Context, docID string) (ragcache.Document, []ragcache.ParentChunk, []ragcache.ChildChunk, error) {
	var doc ragcache.Document
	err := s.pool.QueryRow(ctx, `SELECT id, title, source, content, created_at FROM documents WHERE id = $1`, docID).
		Scan(&doc.ID, &doc.Title, &doc.Source, &doc.Content, &doc.CreatedAt)
	if err == pgx.ErrNoRows {
		return ragcache.Document{}, nil, nil, fmt.Errorf("document %s not found", docID)
	}
	if err != nil {
		return ragcache.Document{}, nil, nil, fmt.Errorf("load document: %w", err)
	}

	parents, err := s.loadParents(ctx, docID)
	if err != nil {
		return ragcache.Document{}, nil, nil, err
	}
	children, err := s.loadChildren(ctx, docID)
	if err != nil {
		return ragcache.Document{}, nil, nil, err
	}
	return doc, parents, children, nil
}

func (s *Store) loadParents(ctx context.Context, docID string) ([]ragcache.ParentChunk, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, document_id, content, order_index, strategy, child_ids, start_byte, end_byte
		FROM parent_chunks WHERE document_id = $1 ORDER BY order_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("load parent chunks: %w", err)
	}
	defer rows.Close()

	var parents []ragcache.ParentChunk
	for rows.Next() {
		var p ragcache.ParentChunk
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Text, &p.OrderIndex, &p.Strategy, &p.ChildIDs, &p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("scan parent chunk: %w", err)
		}
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

func (s *Store) loadChildren(ctx context.Context, docID string) ([]ragcache.ChildChunk, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, parent_id, document_id, content, order_index, start_byte, end_byte, embedding
		FROM child_chunks WHERE document_id = $1 ORDER BY parent_id, order_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("load child chunks: %w", err)
	}
	defer rows.Close()

	var children []ragcache.ChildChunk
	for rows.Next() {
		var c ragcache.ChildChunk
		if err := rows.Scan(&c.ID, &c.ParentID, &c.DocumentID, &c.Text, &c.OrderIndex, &c.Start, &c.End, &c.Embedding); err != nil {
			return nil, fmt.Errorf("scan child chunk: %w", err)
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// ListDocuments returns all persisted documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]ragcache.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, source, content, created_at FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []ragcache.Document
	for rows.Next() {
		var d ragcache.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and all its chunks.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := deleteDocumentTx(ctx, tx, docID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func deleteDocumentTx(ctx context.Context, tx pgx.Tx, docID string) error {
	for _, q := range []string{
		`DELETE FROM child_chunks WHERE document_id = $1`,
		`DELETE FROM parent_chunks WHERE document_id = $1`,
		`DELETE FROM documents WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	return nil
}
