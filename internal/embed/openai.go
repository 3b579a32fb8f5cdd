package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ragline/ragline/internal/errors"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. The base
// URL decides the actual provider; anything speaking the same contract
// (OpenAI, vLLM, LiteLLM, Ollama's compat layer) works.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	// dim is discovered from the first successful response.
	dim atomic.Int64
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds a client for baseURL (e.g.
// "https://api.openai.com/v1") and the given model.
func NewOpenAIEmbedder(baseURL, apiKey, model string, timeout time.Duration) *OpenAIEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
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

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	payload, err := json.Marshal(embeddingsRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, errors.EmbeddingError("marshal embeddings request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.EmbeddingError("build embeddings request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.EmbeddingError("embeddings request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.EmbeddingError(
			fmt.Sprintf("embeddings endpoint returned status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var body embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.EmbeddingError("decode embeddings response", err)
	}
	if len(body.Data) != len(texts) {
		return nil, errors.EmbeddingError(
			fmt.Sprintf("embeddings count mismatch: sent %d texts, got %d vectors",
				len(texts), len(body.Data)), nil)
	}

	// The index field is authoritative, not array position.
	vecs := make([][]float32, len(texts))
	for _, d := range body.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, errors.EmbeddingError(
				fmt.Sprintf("embeddings response index %d out of range", d.Index), nil)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, errors.EmbeddingError(
				fmt.Sprintf("embeddings response missing vector for input %d", i), nil)
		}
	}

	e.dim.Store(int64(len(vecs[0])))
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dim.Load())
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available probes the provider's models listing.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
