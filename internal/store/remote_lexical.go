package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/schema"
)

// RemoteLexicalIndex reaches the search node over HTTP. It surfaces
// transport errors as-is; ingestion logs and swallows them, the retrieval
// pipeline degrades to vector-only.
type RemoteLexicalIndex struct {
	baseURL string
	client  *http.Client
}

var _ LexicalIndex = (*RemoteLexicalIndex)(nil)

// NewRemoteLexicalIndex builds a client for the search node at baseURL.
func NewRemoteLexicalIndex(baseURL string, timeout time.Duration) *RemoteLexicalIndex {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteLexicalIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
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

func (r *RemoteLexicalIndex) Index(ctx context.Context, chunk *Chunk) (*IndexReceipt, error) {
	req := schema.IndexRequest{
		DocumentID: chunk.DocumentID,
		ChunkID:    chunk.ChunkID,
		Source:     chunk.Source,
		Text:       chunk.Text,
		Tags:       chunk.Tags,
	}
	if chunk.Page > 0 {
		page := chunk.Page
		req.Page = &page
	}

	var resp schema.IndexResponse
	if err := r.post(ctx, "/index", req, &resp); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalIndex, "search node indexing failed", err)
	}
	return &IndexReceipt{Index: resp.Index, ID: resp.ID, Result: resp.Result}, nil
}

func (r *RemoteLexicalIndex) Search(ctx context.Context, query string, topK int, filter *LexicalFilter) ([]*LexicalHit, error) {
	req := schema.SearchRequest{Query: query, TopK: topK}
	if filter != nil {
		req.DocumentIDs = filter.DocumentIDs
		req.Sources = filter.Sources
	}

	var resp schema.SearchResponse
	if err := r.post(ctx, "/search", req, &resp); err != nil {
		return nil, errors.New(errors.ErrCodeLexicalSearch, "search node query failed", err)
	}

	hits := make([]*LexicalHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		page := 0
		if h.Page != nil {
			page = *h.Page
		}
		hits = append(hits, &LexicalHit{
			Chunk: &Chunk{
				DocumentID: h.DocumentID,
				ChunkID:    h.ChunkID,
				Text:       h.Text,
				Page:       page,
				Source:     h.Source,
				Tags:       h.Tags,
			},
			Score: h.Score,
		})
	}
	return hits, nil
}

func (r *RemoteLexicalIndex) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("search node unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search node health returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *RemoteLexicalIndex) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *RemoteLexicalIndex) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("search node request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Error bodies carry {"detail": ...}.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var detail schema.ErrorResponse
		if json.Unmarshal(snippet, &detail) == nil && detail.Detail != "" {
			return fmt.Errorf("search node returned status %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("search node returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
