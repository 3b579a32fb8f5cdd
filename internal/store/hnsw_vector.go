package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/ragline/ragline/internal/errors"
)

// HNSW tuning. M and EfSearch follow the library's recommended defaults
// for small-to-medium corpora.
const (
	hnswM        = 16
	hnswEfSearch = 64
	hnswMl       = 0.25

	graphFileName = "vectors.hnsw"
	chunkDBName   = "chunks.db"
)

// HNSWVectorStore is the embedded vector backend: a coder/hnsw graph over
// normalized vectors plus a SQLite payload database. It persists the graph
// after every write, so a restart resumes where ingestion left off.
type HNSWVectorStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	chunks *chunkDB

	// Deterministic chunk ids map to graph keys. Re-upserts orphan the
	// old key instead of deleting the node; coder/hnsw deletion can
	// corrupt the graph when the last node goes.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	dim    int // fixed by the first write, 0 until then
	dir    string
	closed bool
	logger *slog.Logger
}

var _ VectorStore = (*HNSWVectorStore)(nil)

// hnswMeta is the gob-persisted sidecar next to the graph file.
type hnswMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dim     int
}

// NewHNSWVectorStore opens the embedded store under dir, loading a
// previously persisted graph when one exists. Empty dir keeps everything
// in memory for testing.
func NewHNSWVectorStore(dir string, logger *slog.Logger) (*HNSWVectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := ""
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.IOError("failed to create vector store directory", err)
		}
		dbPath = filepath.Join(dir, chunkDBName)
	}

	chunks, err := newChunkDB(dbPath)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "failed to open chunk database", err)
	}

	s := &HNSWVectorStore{
		graph:  newGraph(),
		chunks: chunks,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dir:    dir,
		logger: logger,
	}

	if dir != "" {
		if err := s.load(); err != nil {
			// Corrupt graph files are cleared and rebuilt empty rather
			// than blocking startup. Chunk payloads survive in SQLite.
			logger.Warn("vector_index_corrupted",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			s.clearGraphFiles()
			s.graph = newGraph()
			s.idMap = make(map[string]uint64)
			s.keyMap = make(map[uint64]string)
			s.nextKey = 0
			s.dim = 0
		}
	}

	return s, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = hnswM
	g.EfSearch = hnswEfSearch
	g.Ml = hnswMl
	return g
}

// Upsert writes chunks to SQLite and the graph. The SQLite write goes
// first so a crash between the two never loses payloads.
func (s *HNSWVectorStore) Upsert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return errors.New(errors.ErrCodeVectorUpsert,
				fmt.Sprintf("chunk %s has no embedding", ch.Key()), nil)
		}
		if s.dim == 0 {
			s.dim = len(ch.Embedding)
		} else if len(ch.Embedding) != s.dim {
			return errors.New(errors.ErrCodeDimension,
				"embedding dimension mismatch",
				ErrDimensionMismatch{Expected: s.dim, Got: len(ch.Embedding)})
		}
	}

	if err := s.chunks.upsert(ctx, chunks); err != nil {
		return errors.New(errors.ErrCodeVectorUpsert, "failed to store chunk payloads", err)
	}

	for _, ch := range chunks {
		id := ch.Key()
		if existingKey, exists := s.idMap[id]; exists {
			// Lazy deletion: orphan the old node.
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(ch.Embedding))
		copy(vec, ch.Embedding)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
	}

	if s.dir != "" {
		if err := s.save(); err != nil {
			return errors.New(errors.ErrCodeVectorUpsert, "failed to persist vector index", err)
		}
	}
	return nil
}

// GetByIDs reads from the payload database; the graph is not involved.
func (s *HNSWVectorStore) GetByIDs(ctx context.Context, ids []string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	chunks, err := s.chunks.get(ctx, ids)
	if err != nil {
		return nil, errors.VectorStoreError("failed to fetch chunks", err)
	}
	return chunks, nil
}

// QueryByVector searches the graph, or falls back to an exact scan when a
// metadata filter is present. Filters select a single document's chunks,
// which are few enough that the scan stays cheap.
func (s *HNSWVectorStore) QueryByVector(ctx context.Context, vector []float32, topK int, where map[string]string) ([]*VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if topK <= 0 {
		return nil, nil
	}
	if s.dim != 0 && len(vector) != s.dim {
		return nil, errors.New(errors.ErrCodeDimension,
			"query dimension mismatch",
			ErrDimensionMismatch{Expected: s.dim, Got: len(vector)})
	}

	normQuery := make([]float32, len(vector))
	copy(normQuery, vector)
	normalizeInPlace(normQuery)

	if len(where) > 0 {
		return s.scanWhere(ctx, normQuery, topK, where)
	}

	if s.graph.Len() == 0 {
		return []*VectorHit{}, nil
	}

	// Over-fetch to cover lazily deleted nodes still in the graph.
	fetch := topK + (s.graph.Len() - len(s.idMap))
	nodes := s.graph.Search(normQuery, fetch)

	ids := make([]string, 0, len(nodes))
	distances := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // orphaned by a re-upsert
		}
		ids = append(ids, id)
		distances[id] = float64(s.graph.Distance(normQuery, node.Value))
		if len(ids) == topK {
			break
		}
	}

	chunks, err := s.chunks.get(ctx, ids)
	if err != nil {
		return nil, errors.VectorStoreError("failed to fetch result chunks", err)
	}

	hits := make([]*VectorHit, 0, len(chunks))
	for _, ch := range chunks {
		hits = append(hits, &VectorHit{Chunk: ch, Distance: distances[ch.Key()]})
	}
	return hits, nil
}

// scanWhere ranks a filtered subset by exact cosine distance.
func (s *HNSWVectorStore) scanWhere(ctx context.Context, normQuery []float32, topK int, where map[string]string) ([]*VectorHit, error) {
	chunks, err := s.chunks.getWhere(ctx, where)
	if err != nil {
		return nil, errors.VectorStoreError("failed to scan filtered chunks", err)
	}

	hits := make([]*VectorHit, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) != len(normQuery) {
			continue
		}
		vec := make([]float32, len(ch.Embedding))
		copy(vec, ch.Embedding)
		normalizeInPlace(vec)
		hits = append(hits, &VectorHit{
			Chunk:    ch,
			Distance: float64(hnsw.CosineDistance(normQuery, vec)),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *HNSWVectorStore) GetWhere(ctx context.Context, where map[string]string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	chunks, err := s.chunks.getWhere(ctx, where)
	if err != nil {
		return nil, errors.VectorStoreError("failed to filter chunks", err)
	}
	return chunks, nil
}

func (s *HNSWVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("vector store is closed")
	}
	return s.chunks.count(ctx)
}

func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var saveErr error
	if s.dir != "" {
		saveErr = s.save()
	}
	if err := s.chunks.close(); err != nil && saveErr == nil {
		saveErr = err
	}
	s.graph = nil
	return saveErr
}

// save exports the graph and id mappings atomically (temp file + rename).
// Callers hold at least a read lock.
func (s *HNSWVectorStore) save() error {
	graphPath := filepath.Join(s.dir, graphFileName)

	tmpPath := graphPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmpPath, graphPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename graph file: %w", err)
	}

	metaPath := graphPath + ".meta"
	tmpMeta := metaPath + ".tmp"
	metaFile, err := os.Create(tmpMeta)
	if err != nil {
		return fmt.Errorf("create meta file: %w", err)
	}
	meta := hnswMeta{IDMap: s.idMap, NextKey: s.nextKey, Dim: s.dim}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		metaFile.Close()
		os.Remove(tmpMeta)
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		os.Remove(tmpMeta)
		return fmt.Errorf("close meta file: %w", err)
	}
	return os.Rename(tmpMeta, metaPath)
}

// load restores the graph and id mappings. Missing files mean a fresh
// store, not an error.
func (s *HNSWVectorStore) load() error {
	graphPath := filepath.Join(s.dir, graphFileName)
	metaPath := graphPath + ".meta"

	metaFile, err := os.Open(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open meta file: %w", err)
	}
	var meta hnswMeta
	decodeErr := gob.NewDecoder(metaFile).Decode(&meta)
	metaFile.Close()
	if decodeErr != nil {
		return fmt.Errorf("decode meta: %w", decodeErr)
	}

	file, err := os.Open(graphPath)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.dim = meta.Dim
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

func (s *HNSWVectorStore) clearGraphFiles() {
	graphPath := filepath.Join(s.dir, graphFileName)
	_ = os.Remove(graphPath)
	_ = os.Remove(graphPath + ".meta")
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
