package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/errors"
)

// OpenSearchLexicalIndex talks to an OpenSearch cluster. Documents get
// server-assigned ids; dedup across re-ingests is the vector store's job.
type OpenSearchLexicalIndex struct {
	baseURL   string
	indexName string
	user      string
	password  string
	client    *http.Client

	mu      sync.Mutex
	ensured bool
}

var _ LexicalIndex = (*OpenSearchLexicalIndex)(nil)

// NewOpenSearchLexicalIndex builds a client for the cluster at baseURL.
// The index is created with the chunk mapping on first use.
func NewOpenSearchLexicalIndex(baseURL, indexName, user, password string, timeout time.Duration) *OpenSearchLexicalIndex {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenSearchLexicalIndex{
		baseURL:   strings.TrimRight(baseURL, "/"),
		indexName: indexName,
		user:      user,
		password:  password,
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

// chunkIndexBody is the index settings and mapping for chunk documents.
// Identity fields are keywords so filters are exact, and tags stay a list.
const chunkIndexBody = `{
	"settings": {"index": {"number_of_shards": 1, "number_of_replicas": 0}},
	"mappings": {"properties": {
		"text":        {"type": "text"},
		"document_id": {"type": "keyword"},
		"chunk_id":    {"type": "integer"},
		"page":        {"type": "integer"},
		"source":      {"type": "keyword"},
		"tags":        {"type": "keyword"},
		"version":     {"type": "keyword"}
	}}
}`

// ensureIndex creates the index once per process. Failures leave the guard
// unset so the next call retries.
func (o *OpenSearchLexicalIndex) ensureIndex(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ensured {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		o.baseURL+"/"+o.indexName, strings.NewReader(chunkIndexBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	o.auth(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest &&
		strings.Contains(string(body), "resource_already_exists_exception"):
	default:
		return fmt.Errorf("create index returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	o.ensured = true
	return nil
}

func (o *OpenSearchLexicalIndex) auth(req *http.Request) {
	if o.user != "" {
		req.SetBasicAuth(o.user, o.password)
	}
}

type opensearchIndexResponse struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Result string `json:"result"`
}

func (o *OpenSearchLexicalIndex) Index(ctx context.Context, chunk *Chunk) (*IndexReceipt, error) {
	if err := o.ensureIndex(ctx); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalIndex, "opensearch index unavailable", err)
	}

	doc := map[string]any{
		"text":        chunk.Text,
		"document_id": chunk.DocumentID,
		"chunk_id":    chunk.ChunkID,
		"source":      chunk.Source,
	}
	if chunk.Page > 0 {
		doc["page"] = chunk.Page
	}
	if len(chunk.Tags) > 0 {
		doc["tags"] = chunk.Tags
	}
	if chunk.Version != "" {
		doc["version"] = chunk.Version
	}

	var resp opensearchIndexResponse
	if err := o.send(ctx, http.MethodPost, "/"+o.indexName+"/_doc", doc, &resp); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalIndex, "opensearch indexing failed", err)
	}
	return &IndexReceipt{Index: resp.Index, ID: resp.ID, Result: resp.Result}, nil
}

type opensearchSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type opensearchChunkSource struct {
	Text       string   `json:"text"`
	DocumentID string   `json:"document_id"`
	ChunkID    int      `json:"chunk_id"`
	Page       int      `json:"page"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags"`
	Version    string   `json:"version"`
}

func (o *OpenSearchLexicalIndex) Search(ctx context.Context, queryStr string, topK int, filter *LexicalFilter) ([]*LexicalHit, error) {
	if err := o.ensureIndex(ctx); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalSearch, "opensearch index unavailable", err)
	}

	boolQuery := map[string]any{
		"must": []any{
			map[string]any{"match": map[string]any{"text": queryStr}},
		},
	}
	var filters []any
	if filter != nil && len(filter.DocumentIDs) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"document_id": filter.DocumentIDs}})
	}
	if filter != nil && len(filter.Sources) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"source": filter.Sources}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"size":  topK,
		"query": map[string]any{"bool": boolQuery},
	}

	var resp opensearchSearchResponse
	if err := o.send(ctx, http.MethodPost, "/"+o.indexName+"/_search", body, &resp); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalSearch, "opensearch search failed", err)
	}

	hits := make([]*LexicalHit, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var src opensearchChunkSource
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			continue
		}
		hits = append(hits, &LexicalHit{
			Chunk: &Chunk{
				DocumentID: src.DocumentID,
				ChunkID:    src.ChunkID,
				Text:       src.Text,
				Page:       src.Page,
				Source:     src.Source,
				Tags:       src.Tags,
				Version:    src.Version,
			},
			Score: hit.Score,
		})
	}
	return hits, nil
}

func (o *OpenSearchLexicalIndex) Ready(ctx context.Context) error {
	return o.ensureIndex(ctx)
}

func (o *OpenSearchLexicalIndex) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// send issues a JSON request against the cluster and decodes the response
// into out when non-nil.
func (o *OpenSearchLexicalIndex) send(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	o.auth(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("opensearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
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
