package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"
)

// BleveLexicalIndex is the embedded BM25 backend. Chunks are indexed under
// their deterministic key, so re-ingesting a document overwrites instead
// of duplicating.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveChunkDoc is the indexed document shape. Field names match the
// vector-store metadata so filters read the same everywhere.
type bleveChunkDoc struct {
	Text       string   `json:"text"`
	DocumentID string   `json:"document_id"`
	ChunkID    int      `json:"chunk_id"`
	Page       int      `json:"page"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags"`
	Version    string   `json:"version"`
}

// validateBleveIntegrity checks the index directory before opening.
// A missing index is fine; a half-written one is corruption.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveLexicalIndex opens (or creates) the index at path. Empty path
// means an in-memory index for testing. A corrupt index is cleared and
// recreated empty; reindexing restores it.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	indexMapping := createChunkMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruption(err) {
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open lexical index: %w", err)
	}

	return &BleveLexicalIndex{index: idx, path: path}, nil
}

// createChunkMapping builds the index mapping: analyzed text, keyword
// identity fields, numeric positions, BM25 scoring.
func createChunkMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	numField := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("document_id", keywordField)
	doc.AddFieldMappingsAt("source", keywordField)
	doc.AddFieldMappingsAt("tags", keywordField)
	doc.AddFieldMappingsAt("version", keywordField)
	doc.AddFieldMappingsAt("chunk_id", numField)
	doc.AddFieldMappingsAt("page", numField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name
	indexMapping.DefaultMapping = doc
	indexMapping.ScoringModel = index.BM25Scoring
	return indexMapping
}

func (b *BleveLexicalIndex) Index(ctx context.Context, chunk *Chunk) (*IndexReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	id := chunk.Key()
	doc := bleveChunkDoc{
		Text:       chunk.Text,
		DocumentID: chunk.DocumentID,
		ChunkID:    chunk.ChunkID,
		Page:       chunk.Page,
		Source:     chunk.Source,
		Tags:       chunk.Tags,
		Version:    chunk.Version,
	}
	if err := b.index.Index(id, doc); err != nil {
		return nil, fmt.Errorf("failed to index chunk %s: %w", id, err)
	}
	return &IndexReceipt{Index: "bleve", ID: id, Result: "indexed"}, nil
}

// IndexBatch writes many chunks in one bleve batch. Ingestion uses this
// instead of per-chunk Index calls.
func (b *BleveLexicalIndex) IndexBatch(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, ch := range chunks {
		doc := bleveChunkDoc{
			Text:       ch.Text,
			DocumentID: ch.DocumentID,
			ChunkID:    ch.ChunkID,
			Page:       ch.Page,
			Source:     ch.Source,
			Tags:       ch.Tags,
			Version:    ch.Version,
		}
		if err := batch.Index(ch.Key(), doc); err != nil {
			return fmt.Errorf("failed to batch chunk %s: %w", ch.Key(), err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, topK int, filter *LexicalFilter) ([]*LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalHit{}, nil
	}

	match := bleve.NewMatchQuery(queryStr)
	match.SetField("text")

	req := bleve.NewSearchRequest(applyLexicalFilter(match, filter))
	req.Size = topK
	req.Fields = []string{"text", "document_id", "chunk_id", "page", "source", "tags", "version"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]*LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, &LexicalHit{
			Chunk: chunkFromBleveFields(hit.ID, hit.Fields),
			Score: hit.Score,
		})
	}
	return hits, nil
}

// applyLexicalFilter wraps the text query in a conjunction with term
// disjunctions for each filter dimension.
func applyLexicalFilter(match *query.MatchQuery, filter *LexicalFilter) query.Query {
	if filter == nil || (len(filter.DocumentIDs) == 0 && len(filter.Sources) == 0) {
		return match
	}

	conj := bleve.NewConjunctionQuery(match)
	if len(filter.DocumentIDs) > 0 {
		disj := bleve.NewDisjunctionQuery()
		for _, id := range filter.DocumentIDs {
			tq := bleve.NewTermQuery(id)
			tq.SetField("document_id")
			disj.AddQuery(tq)
		}
		conj.AddQuery(disj)
	}
	if len(filter.Sources) > 0 {
		disj := bleve.NewDisjunctionQuery()
		for _, src := range filter.Sources {
			tq := bleve.NewTermQuery(src)
			tq.SetField("source")
			disj.AddQuery(tq)
		}
		conj.AddQuery(disj)
	}
	return conj
}

// chunkFromBleveFields rebuilds a chunk from stored fields. Bleve returns
// numerics as float64 and repeated fields as []interface{}.
func chunkFromBleveFields(id string, fields map[string]interface{}) *Chunk {
	ch := &Chunk{}
	if v, ok := fields["text"].(string); ok {
		ch.Text = v
	}
	if v, ok := fields["document_id"].(string); ok {
		ch.DocumentID = v
	}
	ch.ChunkID = metaInt(fields["chunk_id"])
	ch.Page = metaInt(fields["page"])
	if v, ok := fields["source"].(string); ok {
		ch.Source = v
	}
	switch tags := fields["tags"].(type) {
	case string:
		if tags != "" {
			ch.Tags = []string{tags}
		}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok && s != "" {
				ch.Tags = append(ch.Tags, s)
			}
		}
	}
	if v, ok := fields["version"].(string); ok {
		ch.Version = v
	}
	if ch.DocumentID == "" {
		if doc, cid, err := ParseChunkKey(id); err == nil {
			ch.DocumentID = doc
			ch.ChunkID = cid
		}
	}
	return ch
}

func (b *BleveLexicalIndex) Ready(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if _, err := b.index.DocCount(); err != nil {
		return fmt.Errorf("lexical index not ready: %w", err)
	}
	return nil
}

// DocCount reports the number of indexed chunks.
func (b *BleveLexicalIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("lexical index is closed")
	}
	return b.index.DocCount()
}

func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
