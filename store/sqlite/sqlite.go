// Package sqlite persists cache entries and chunk hierarchies in a local
// SQLite file using the pure-Go driver. Zero CGO required. Embeddings and
// ID lists are stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ragcache "github.com/fnusatvik07/rag-project2"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. If not set, no logs
// are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements ragcache.CacheStore and ragcache.HierarchyStore backed
// by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ragcache.CacheStore = (*Store)(nil)
var _ ragcache.HierarchyStore = (*Store)(nil)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath. All goroutines
// serialize through one connection, eliminating SQLITE_BUSY errors from
// concurrent writers.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			tier TEXT NOT NULL,
			key TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			response TEXT,
			embedding TEXT,
			child_ids TEXT,
			created_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			hit_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (tier, key)
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parent_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			child_ids TEXT NOT NULL,
			start_byte INTEGER NOT NULL,
			end_byte INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS child_chunks (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			order_index INTEGER NOT NULL,
			start_byte INTEGER NOT NULL,
			end_byte INTEGER NOT NULL,
			embedding TEXT
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_parent_chunks_doc ON parent_chunks(document_id)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_child_chunks_doc ON child_chunks(document_id)`)

	s.logger.Debug("sqlite: init done", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// --- CacheStore ---

// SaveEntry upserts one cache entry keyed by (tier, key).
func (s *Store) SaveEntry(ctx context.Context, rec ragcache.EntryRecord) error {
	embedding, err := jsonOrNull(rec.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	childIDs, err := jsonOrNull(rec.ChildIDs)
	if err != nil {
		return fmt.Errorf("marshal child ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO cache_entries
		(tier, key, fingerprint, response, embedding, child_ids, created_at, ttl_seconds, hit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tier, key) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			response = excluded.response,
			embedding = excluded.embedding,
			child_ids = excluded.child_ids,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds,
			hit_count = excluded.hit_count`,
		rec.Tier, rec.Key, rec.Fingerprint, rec.Response, embedding, childIDs,
		rec.CreatedAt, rec.TTLSeconds, rec.HitCount)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// LoadEntries returns all persisted entries for a tier. Rows that fail to
// deserialize are deleted and skipped.
func (s *Store) LoadEntries(ctx context.Context, tier string) ([]ragcache.EntryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, fingerprint, response, embedding, child_ids, created_at, ttl_seconds, hit_count
		FROM cache_entries WHERE tier = ?`, tier)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	var recs []ragcache.EntryRecord
	var corrupt []string
	for rows.Next() {
		rec := ragcache.EntryRecord{Tier: tier}
		var embedding, childIDs sql.NullString
		if err := rows.Scan(&rec.Key, &rec.Fingerprint, &rec.Response, &embedding, &childIDs,
			&rec.CreatedAt, &rec.TTLSeconds, &rec.HitCount); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &rec.Embedding); err != nil {
				s.logger.Warn("sqlite: dropping corrupt cache entry", "tier", tier, "key", rec.Key, "error", err)
				corrupt = append(corrupt, rec.Key)
				continue
			}
		}
		if childIDs.Valid && childIDs.String != "" {
			if err := json.Unmarshal([]byte(childIDs.String), &rec.ChildIDs); err != nil {
				s.logger.Warn("sqlite: dropping corrupt cache entry", "tier", tier, "key", rec.Key, "error", err)
				corrupt = append(corrupt, rec.Key)
				continue
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	for _, key := range corrupt {
		_ = s.DeleteEntry(ctx, tier, key)
	}
	return recs, nil
}

// DeleteEntry removes one cache entry. Deleting a missing entry is not an
// error.
func (s *Store) DeleteEntry(ctx context.Context, tier, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE tier = ? AND key = ?`, tier, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// --- HierarchyStore ---

// SaveHierarchy replaces a document and all its chunks in one transaction.
func (s *Store) SaveHierarchy(ctx context.Context, doc ragcache.Document, parents []ragcache.ParentChunk, children []ragcache.ChildChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocumentTx(ctx, tx, doc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (id, title, source, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.Content, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for _, p := range parents {
		childIDs, err := json.Marshal(p.ChildIDs)
		if err != nil {
			return fmt.Errorf("marshal child ids: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO parent_chunks
			(id, document_id, content, order_index, strategy, child_ids, start_byte, end_byte)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.DocumentID, p.Text, p.OrderIndex, p.Strategy, string(childIDs), p.Start, p.End); err != nil {
			return fmt.Errorf("insert parent chunk: %w", err)
		}
	}
	for _, c := range children {
		embedding, err := jsonOrNull(c.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO child_chunks
			(id, parent_id, document_id, content, order_index, start_byte, end_byte, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ParentID, c.DocumentID, c.Text, c.OrderIndex, c.Start, c.End, embedding); err != nil {
			return fmt.Errorf("insert child chunk: %w", err)
		}
	}
	return tx.Commit()
}

// LoadHierarchy returns a document with its parent and child chunks in
// order-index order.
func (s *Store) LoadHierarchy(ctx context.Context, docID string) (ragcache.Document, []ragcache.ParentChunk, []ragcache.ChildChunk, error) {
	var doc ragcache.Document
	err := s.db.QueryRowContext(ctx, `SELECT id, title, source, content, created_at FROM documents WHERE id = ?`, docID).
		Scan(&doc.ID, &doc.Title, &doc.Source, &doc.Content, &doc.CreatedAt)
	if err == sql.ErrNoRows {
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
	rows, err := s.db.QueryContext(ctx, `SELECT id, document_id, content, order_index, strategy, child_ids, start_byte, end_byte
		FROM parent_chunks WHERE document_id = ? ORDER BY order_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("load parent chunks: %w", err)
	}
	defer rows.Close()

	var parents []ragcache.ParentChunk
	for rows.Next() {
		var p ragcache.ParentChunk
		var childIDs string
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Text, &p.OrderIndex, &p.Strategy, &childIDs, &p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("scan parent chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(childIDs), &p.ChildIDs); err != nil {
			return nil, fmt.Errorf("parent %s child ids: %w", p.ID, err)
		}
		parents = append(parents, p)
	}
	return parents, rows.Err()
}

func (s *Store) loadChildren(ctx context.Context, docID string) ([]ragcache.ChildChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, parent_id, document_id, content, order_index, start_byte, end_byte, embedding
		FROM child_chunks WHERE document_id = ? ORDER BY parent_id, order_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("load child chunks: %w", err)
	}
	defer rows.Close()

	var children []ragcache.ChildChunk
	for rows.Next() {
		var c ragcache.ChildChunk
		var embedding sql.NullString
		if err := rows.Scan(&c.ID, &c.ParentID, &c.DocumentID, &c.Text, &c.OrderIndex, &c.Start, &c.End, &embedding); err != nil {
			return nil, fmt.Errorf("scan child chunk: %w", err)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
				return nil, fmt.Errorf("child %s embedding: %w", c.ID, err)
			}
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

// ListDocuments returns all persisted documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]ragcache.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, source, content, created_at FROM documents ORDER BY created_at DESC`)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := deleteDocumentTx(ctx, tx, docID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, docID string) error {
	for _, q := range []string{
		`DELETE FROM child_chunks WHERE document_id = ?`,
		`DELETE FROM parent_chunks WHERE document_id = ?`,
		`DELETE FROM documents WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	return nil
}

// jsonOrNull marshals v to a JSON string, or NULL when v is empty.
func jsonOrNull[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
