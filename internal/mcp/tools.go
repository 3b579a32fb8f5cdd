package mcp

// QueryDocumentsInput defines the input schema for the query_documents tool.
type QueryDocumentsInput struct {
	Question   string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"how many chunks to cite, 1-20, default 5"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"restrict retrieval to a single document id"`
}

// QueryDocumentsOutput defines the output schema for the query_documents tool.
type QueryDocumentsOutput struct {
	Answer      string         `json:"answer" jsonschema:"answer grounded in the retrieved chunks"`
	Sources     []SourceOutput `json:"sources" jsonschema:"ranked citations backing the answer"`
	Method      string         `json:"method" jsonschema:"retrieval path taken, e.g. hybrid_bm25_vector_neighbors or vector_fallback"`
	ContextUsed int            `json:"context_used" jsonschema:"characters of context handed to the chat model"`
	ModelUsed   string         `json:"model_used" jsonschema:"chat model that produced the answer"`
}

// SourceOutput is one citation in a query_documents result.
type SourceOutput struct {
	DocumentID string `json:"document_id" jsonschema:"document the cited chunk belongs to"`
	ChunkID    string `json:"chunk_id" jsonschema:"ordinal of the cited chunk within its document"`
	Source     string `json:"source" jsonschema:"original filename of the document"`
	Page       *int   `json:"page,omitempty" jsonschema:"1-based page number for PDF sources"`
	Snippet    string `json:"snippet" jsonschema:"opening of the cited chunk"`
}

// SearchDocumentsInput defines the input schema for the search_documents tool.
type SearchDocumentsInput struct {
	Query       string   `json:"query" jsonschema:"the keyword query to run against the BM25 index"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"maximum number of hits, 1-50, default 10"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict hits to these document ids (OR logic)"`
	Sources     []string `json:"sources,omitempty" jsonschema:"restrict hits to these source filenames (OR logic)"`
}

// SearchDocumentsOutput defines the output schema for the search_documents tool.
type SearchDocumentsOutput struct {
	Hits  []HitOutput `json:"hits" jsonschema:"matching chunks in descending score order"`
	Total int         `json:"total" jsonschema:"number of hits returned"`
}

// HitOutput is one BM25 hit in a search_documents result.
type HitOutput struct {
	DocumentID string   `json:"document_id" jsonschema:"document the chunk belongs to"`
	ChunkID    int      `json:"chunk_id" jsonschema:"ordinal of the chunk within its document"`
	Source     string   `json:"source" jsonschema:"original filename of the document"`
	Page       *int     `json:"page,omitempty" jsonschema:"1-based page number for PDF sources"`
	Text       string   `json:"text" jsonschema:"full text of the matching chunk"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tags attached at ingest time"`
	Score      float64  `json:"score" jsonschema:"BM25 relevance score"`
}
