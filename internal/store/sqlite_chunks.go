package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// chunkDB stores chunk payloads (text, metadata, raw embedding) for the
// embedded vector store. The HNSW graph holds only normalized vectors, so
// batch gets and filtered scans read from here.
type chunkDB struct {
	db   *sql.DB
	path string
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_id    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	page        INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '',
	embedding   BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_id);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// newChunkDB opens (or creates) the payload database. Empty path means an
// in-memory database for testing.
func newChunkDB(path string) (*chunkDB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, set pragmas explicitly
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create chunk schema: %w", err)
	}

	return &chunkDB{db: db, path: path}, nil
}

// upsert writes chunks in one transaction, replacing existing ids.
func (c *chunkDB) upsert(ctx context.Context, chunks []*Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, document_id, chunk_id, text, page, source, tags, version, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		_, err := stmt.ExecContext(ctx,
			ch.Key(), ch.DocumentID, ch.ChunkID, ch.Text, ch.Page,
			ch.Source, strings.Join(ch.Tags, ","), ch.Version,
			encodeEmbedding(ch.Embedding))
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", ch.Key(), err)
		}
	}

	return tx.Commit()
}

// get fetches chunks by id, preserving request order. Missing ids are
// omitted.
func (c *chunkDB) get(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_id, text, page, source, tags, version, embedding
		FROM chunks WHERE id IN (%s)`, placeholders[:len(placeholders)-1])

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		id, ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[id] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}

	out := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// getWhere returns all chunks matching an equality predicate, ordered by
// (document_id, chunk_id) for deterministic scans.
func (c *chunkDB) getWhere(ctx context.Context, where map[string]string) ([]*Chunk, error) {
	query := `SELECT id, document_id, chunk_id, text, page, source, tags, version, embedding FROM chunks`
	var (
		conds []string
		args  []any
	)
	for _, field := range []string{FieldDocumentID, FieldSource, FieldVersion} {
		if v, ok := where[field]; ok {
			conds = append(conds, field+" = ?")
			args = append(args, v)
		}
	}
	for field := range where {
		if field != FieldDocumentID && field != FieldSource && field != FieldVersion {
			return nil, fmt.Errorf("unsupported filter field %q", field)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY document_id, chunk_id"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter chunks: %w", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		_, ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	return out, nil
}

func (c *chunkDB) count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (c *chunkDB) close() error {
	return c.db.Close()
}

func scanChunk(rows *sql.Rows) (string, *Chunk, error) {
	var (
		id, tags string
		ch       Chunk
		blob     []byte
	)
	if err := rows.Scan(&id, &ch.DocumentID, &ch.ChunkID, &ch.Text, &ch.Page,
		&ch.Source, &tags, &ch.Version, &blob); err != nil {
		return "", nil, fmt.Errorf("scan chunk row: %w", err)
	}
	if tags != "" {
		ch.Tags = splitTags(tags)
	}
	ch.Embedding = decodeEmbedding(blob)
	return id, &ch, nil
}

// encodeEmbedding packs a vector as little-endian float32s.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
