// Package client provides a Go client for the ragline HTTP nodes.
//
// A single [Client] talks to all three services: the ingestion node
// (document upload), the search node (lexical retrieval), and the query
// node (retrieval-augmented answers). Node addresses default to the
// local development ports and can be overridden per node.
//
// # Usage
//
//	c := client.New(
//	    client.WithQueryURL("http://rag.internal:8002"),
//	    client.WithSearchURL("http://rag.internal:8001"),
//	)
//
//	resp, err := c.Query(ctx, schema.QueryRequest{
//	    Question: "How is the reactor cooled?",
//	    TopK:     5,
//	})
//
// Uploading a document:
//
//	f, _ := os.Open("manual.pdf")
//	defer f.Close()
//	res, err := c.Ingest(ctx, "manual.pdf", f, client.IngestMeta{
//	    DocumentID: "manual",
//	    Tags:       []string{"ops"},
//	})
//
// Non-2xx responses are returned as [*APIError] carrying the node's
// error detail and HTTP status, so callers can distinguish validation
// rejections from service failures with errors.As.
//
// # Thread Safety
//
// A Client is safe for concurrent use.
package client
