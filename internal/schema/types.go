// Package schema defines the wire types shared by the ragline HTTP services.
package schema

// ErrorResponse is the body of every 4xx/5xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// IngestResponse reports a completed ingestion.
type IngestResponse struct {
	Status       string  `json:"status"`
	DocumentID   string  `json:"document_id"`
	Characters   int     `json:"characters"`
	Chunks       int     `json:"chunks"`
	EmbeddingDim int     `json:"embedding_dim"`
	Preview      *string `json:"preview"`
}

// QueryRequest asks the query node a question.
type QueryRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"top_k,omitempty"`
	ModelName  string `json:"model_name,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// Source is one ranked citation backing an answer.
type Source struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Source     string `json:"source"`
	Page       *int   `json:"page"`
	Snippet    string `json:"snippet"`
}

// QueryResponse carries the grounded answer and its citations.
type QueryResponse struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
	ModelUsed   string   `json:"model_used"`
}

// SearchRequest is a lexical search against the search node.
type SearchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// Hit is one BM25 result.
type Hit struct {
	DocumentID string   `json:"document_id"`
	ChunkID    int      `json:"chunk_id"`
	Source     string   `json:"source"`
	Page       *int     `json:"page"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Score      float64  `json:"score"`
}

// SearchResponse carries BM25 hits in descending score order.
type SearchResponse struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
}

// IndexRequest indexes one chunk into the lexical store.
type IndexRequest struct {
	DocumentID string   `json:"document_id"`
	ChunkID    int      `json:"chunk_id"`
	Source     string   `json:"source"`
	Page       *int     `json:"page"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags,omitempty"`
}

// IndexResponse reports the backend's indexing outcome.
type IndexResponse struct {
	Index  string `json:"index"`
	ID     string `json:"id"`
	Result string `json:"result"`
}

// HealthResponse is the GET /health body of every node.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Time    string `json:"time"`

	// Owner-specific readiness, omitted by nodes that do not own the store.
	VectorReady  *bool `json:"vector_ready,omitempty"`
	LexicalReady *bool `json:"lexical_ready,omitempty"`
}
