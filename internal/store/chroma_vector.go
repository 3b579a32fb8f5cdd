package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/errors"
)

// ChromaVectorStore talks to a Chroma server over its v2 REST API. Ids,
// documents, and flattened metadata map one-to-one onto Chroma's ids,
// documents, and metadatas.
type ChromaVectorStore struct {
	baseURL    string
	tenant     string
	database   string
	collection string
	client     *http.Client

	mu     sync.Mutex
	collID string // resolved lazily, cached
}

var _ VectorStore = (*ChromaVectorStore)(nil)

const (
	chromaDefaultTenant   = "default_tenant"
	chromaDefaultDatabase = "default_database"
)

// NewChromaVectorStore builds a client for the server at baseURL using the
// named collection, created on first use if absent.
func NewChromaVectorStore(baseURL, collection string, timeout time.Duration) *ChromaVectorStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ChromaVectorStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     chromaDefaultTenant,
		database:   chromaDefaultDatabase,
		collection: collection,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *ChromaVectorStore) collectionsURL() string {
	return fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections", s.baseURL, s.tenant, s.database)
}

// ensureCollection resolves the collection id, creating the collection on
// first contact.
func (s *ChromaVectorStore) ensureCollection(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collID != "" {
		return s.collID, nil
	}

	reqBody := map[string]any{
		"name":          s.collection,
		"get_or_create": true,
		// Fresh collections must rank by cosine distance, not the L2
		// default; similarity math downstream assumes it.
		"metadata": map[string]any{"hnsw:space": "cosine"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := s.post(ctx, s.collectionsURL(), reqBody, &resp); err != nil {
		return "", fmt.Errorf("get_or_create collection %q: %w", s.collection, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("chroma returned empty collection id for %q", s.collection)
	}
	s.collID = resp.ID
	return s.collID, nil
}

func (s *ChromaVectorStore) Upsert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return errors.New(errors.ErrCodeVectorUpsert, "chroma collection unavailable", err)
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.Key()
		embeddings[i] = ch.Embedding
		documents[i] = ch.Text
		metadatas[i] = FlattenMetadata(ch)
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	url := fmt.Sprintf("%s/%s/upsert", s.collectionsURL(), collID)
	if err := s.post(ctx, url, body, nil); err != nil {
		return errors.New(errors.ErrCodeVectorUpsert, "chroma upsert failed", err)
	}
	return nil
}

func (s *ChromaVectorStore) GetByIDs(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, errors.VectorStoreError("chroma collection unavailable", err)
	}

	body := map[string]any{
		"ids":     ids,
		"include": []string{"documents", "metadatas", "embeddings"},
	}
	var resp chromaGetResponse
	url := fmt.Sprintf("%s/%s/get", s.collectionsURL(), collID)
	if err := s.post(ctx, url, body, &resp); err != nil {
		return nil, errors.VectorStoreError("chroma get failed", err)
	}

	byID := make(map[string]*Chunk, len(resp.IDs))
	for i, id := range resp.IDs {
		byID[id] = resp.chunkAt(i, id)
	}

	// Chroma returns hits in arbitrary order.
	out := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *ChromaVectorStore) QueryByVector(ctx context.Context, vector []float32, topK int, where map[string]string) ([]*VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, errors.VectorStoreError("chroma collection unavailable", err)
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if clause := whereClause(where); clause != nil {
		body["where"] = clause
	}

	var resp chromaQueryResponse
	url := fmt.Sprintf("%s/%s/query", s.collectionsURL(), collID)
	if err := s.post(ctx, url, body, &resp); err != nil {
		return nil, errors.VectorStoreError("chroma query failed", err)
	}
	if len(resp.IDs) == 0 {
		return []*VectorHit{}, nil
	}

	hits := make([]*VectorHit, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		ch := &Chunk{}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			ch.Text = resp.Documents[0][i]
		}
		var meta map[string]any
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			meta = resp.Metadatas[0][i]
		}
		ch = ChunkFromMetadata(id, ch.Text, meta)
		var dist float64
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			dist = resp.Distances[0][i]
		}
		hits = append(hits, &VectorHit{Chunk: ch, Distance: dist})
	}
	return hits, nil
}

func (s *ChromaVectorStore) GetWhere(ctx context.Context, where map[string]string) ([]*Chunk, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, errors.VectorStoreError("chroma collection unavailable", err)
	}

	body := map[string]any{
		"include": []string{"documents", "metadatas", "embeddings"},
	}
	if clause := whereClause(where); clause != nil {
		body["where"] = clause
	}

	var resp chromaGetResponse
	url := fmt.Sprintf("%s/%s/get", s.collectionsURL(), collID)
	if err := s.post(ctx, url, body, &resp); err != nil {
		return nil, errors.VectorStoreError("chroma filtered get failed", err)
	}

	out := make([]*Chunk, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		out = append(out, resp.chunkAt(i, id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

func (s *ChromaVectorStore) Count(ctx context.Context) (int, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, errors.VectorStoreError("chroma collection unavailable", err)
	}

	url := fmt.Sprintf("%s/%s/count", s.collectionsURL(), collID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.VectorStoreError("chroma count request failed", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.VectorStoreError("chroma count failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.VectorStoreError(
			fmt.Sprintf("chroma count returned status %d", resp.StatusCode), nil)
	}

	var n int
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return 0, errors.VectorStoreError("chroma count decode failed", err)
	}
	return n, nil
}

// Heartbeat reports whether the server answers, for health checks.
func (s *ChromaVectorStore) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v2/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chroma heartbeat returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *ChromaVectorStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request and decodes the JSON response into out when
// out is non-nil. Non-2xx statuses become errors carrying a body snippet.
func (s *ChromaVectorStore) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// whereClause builds Chroma's where filter: single equality directly,
// multiple conditions under $and. Keys are sorted for stable payloads.
func whereClause(where map[string]string) map[string]any {
	if len(where) == 0 {
		return nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return map[string]any{keys[0]: map[string]any{"$eq": where[keys[0]]}}
	}
	conds := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		conds = append(conds, map[string]any{k: map[string]any{"$eq": where[k]}})
	}
	return map[string]any{"$and": conds}
}

type chromaGetResponse struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// chunkAt assembles the i-th chunk of a get response.
func (r *chromaGetResponse) chunkAt(i int, id string) *Chunk {
	var text string
	if i < len(r.Documents) {
		text = r.Documents[i]
	}
	var meta map[string]any
	if i < len(r.Metadatas) {
		meta = r.Metadatas[i]
	}
	ch := ChunkFromMetadata(id, text, meta)
	if i < len(r.Embeddings) {
		ch.Embedding = r.Embeddings[i]
	}
	return ch
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}
