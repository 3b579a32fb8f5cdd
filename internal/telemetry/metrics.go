// Package telemetry exports Prometheus metrics and keeps in-process
// retrieval quality counters for the /stats endpoint. Nothing here is
// reported externally; /metrics is scraped, /stats is volatile.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragline_http_requests_total",
			Help: "Total HTTP requests by service, route and status code",
		},
		[]string{"service", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragline_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)

	// Retrieval pipeline
	Retrievals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragline_retrievals_total",
			Help: "Retrievals by path taken (hybrid, restricted, fallback)",
		},
		[]string{"method"},
	)

	RetrievedChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragline_retrieved_chunks",
			Help:    "Chunks in the final ranked set per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30},
		},
	)

	ContextChars = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragline_context_chars",
			Help:    "Characters of assembled context per answered query",
			Buckets: []float64{0, 500, 1000, 2000, 4000, 8000, 12000},
		},
	)

	// Ingestion
	DocumentsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragline_documents_ingested_total",
			Help: "Documents accepted by POST /ingest",
		},
	)

	ChunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragline_chunks_ingested_total",
			Help: "Chunks written to the vector store",
		},
	)

	LexicalIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragline_lexical_index_failures_total",
			Help: "BM25 index writes that were swallowed during ingest",
		},
	)
)
