package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ragline/ragline/internal/schema"
)

// Default node addresses for local development.
const (
	DefaultIngestURL = "http://localhost:8000"
	DefaultSearchURL = "http://localhost:8001"
	DefaultQueryURL  = "http://localhost:8002"
)

// defaultTimeout bounds every request; query generation is the slow path.
const defaultTimeout = 120 * time.Second

// Node identifies one of the three ragline services.
type Node string

// The three services a deployment runs.
const (
	NodeIngest Node = "ingest"
	NodeSearch Node = "search"
	NodeQuery  Node = "query"
)

// APIError is returned when a node responds with a non-2xx status.
type APIError struct {
	// StatusCode is the HTTP status returned by the node.
	StatusCode int

	// Detail is the node's error message.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("ragline: %s (status %d)", e.Detail, e.StatusCode)
}

// IngestMeta carries the optional form fields of a document upload.
type IngestMeta struct {
	// DocumentID overrides the id derived from the filename.
	DocumentID string

	// Source overrides the recorded source (defaults to the filename).
	Source string

	// Version is an opaque document version label.
	Version string

	// Tags are attached to every chunk of the document.
	Tags []string
}

// TermCount pairs a query term with its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Stats mirrors the query node's /stats document.
type Stats struct {
	TotalQueries        int64            `json:"total_queries"`
	ZeroResultCount     int64            `json:"zero_result_count"`
	ZeroResultRecent    []string         `json:"zero_result_recent"`
	MethodCounts        map[string]int64 `json:"method_counts"`
	TopTerms            []TermCount      `json:"top_terms"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
	Since               time.Time        `json:"since"`
}

// Client talks to the ragline nodes over HTTP.
type Client struct {
	ingestURL string
	searchURL string
	queryURL  string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithIngestURL overrides the ingestion node address.
func WithIngestURL(u string) Option {
	return func(c *Client) {
		c.ingestURL = strings.TrimRight(u, "/")
	}
}

// WithSearchURL overrides the search node address.
func WithSearchURL(u string) Option {
	return func(c *Client) {
		c.searchURL = strings.TrimRight(u, "/")
	}
}

// WithQueryURL overrides the query node address.
func WithQueryURL(u string) Option {
	return func(c *Client) {
		c.queryURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		ingestURL: DefaultIngestURL,
		searchURL: DefaultSearchURL,
		queryURL:  DefaultQueryURL,
		http:      &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// baseFor maps a node to its configured address.
func (c *Client) baseFor(node Node) string {
	switch node {
	case NodeIngest:
		return c.ingestURL
	case NodeSearch:
		return c.searchURL
	default:
		return c.queryURL
	}
}

// Query asks the query node for a retrieval-augmented answer.
func (c *Client) Query(ctx context.Context, req schema.QueryRequest) (*schema.QueryResponse, error) {
	var resp schema.QueryResponse
	if err := c.postJSON(ctx, c.queryURL+"/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a lexical search against the search node.
func (c *Client) Search(ctx context.Context, req schema.SearchRequest) (*schema.SearchResponse, error) {
	var resp schema.SearchResponse
	if err := c.postJSON(ctx, c.searchURL+"/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Index writes a single chunk into the search node's lexical index.
func (c *Client) Index(ctx context.Context, req schema.IndexRequest) (*schema.IndexResponse, error) {
	var resp schema.IndexResponse
	if err := c.postJSON(ctx, c.searchURL+"/index", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ingest uploads a document to the ingestion node. The content is sent
// as a multipart file named filename; the extension selects the parser.
func (c *Client) Ingest(ctx context.Context, filename string, content io.Reader, meta IngestMeta) (*schema.IngestResponse, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	fields := map[string]string{
		"document_id": meta.DocumentID,
		"source":      meta.Source,
		"version":     meta.Version,
		"tags":        strings.Join(meta.Tags, ","),
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL+"/ingest", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp schema.IngestResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches the query node's retrieval statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var resp Stats
	if err := c.getJSON(ctx, c.queryURL+"/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the health document of the given node.
func (c *Client) Health(ctx context.Context, node Node) (*schema.HealthResponse, error) {
	var resp schema.HealthResponse
	if err := c.getJSON(ctx, c.baseFor(node)+"/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ragline: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: resp.Status}
		var errBody schema.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Detail != "" {
			apiErr.Detail = errBody.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
