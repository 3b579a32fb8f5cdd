package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/schema"
	"github.com/ragline/ragline/internal/store"
)

const ingestService = "ingestd"

// multipartMemory bounds the in-memory part of multipart parsing;
// larger uploads spill to temp files.
const multipartMemory = 8 << 20 // 8 MiB

// IngestAPI is the HTTP surface of the ingestion node.
type IngestAPI struct {
	pipeline *ingest.Pipeline
	vectors  store.VectorStore
	logger   *slog.Logger

	// maxUploadBytes caps POST /ingest bodies; 0 disables the cap.
	maxUploadBytes int64
}

// NewIngestAPI builds the ingestion node surface.
func NewIngestAPI(pipeline *ingest.Pipeline, vectors store.VectorStore, maxUploadMB int, logger *slog.Logger) *IngestAPI {
	if logger == nil {
		logger = slog.Default()
	}
	var maxBytes int64
	if maxUploadMB > 0 {
		maxBytes = int64(maxUploadMB) << 20
	}
	return &IngestAPI{
		pipeline:       pipeline,
		vectors:        vectors,
		logger:         logger,
		maxUploadBytes: maxBytes,
	}
}

// Handler returns the node's routed handler with middleware applied.
func (a *IngestAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	handle(mux, a.logger, ingestService, "POST /ingest", http.HandlerFunc(a.handleIngest))
	handle(mux, a.logger, ingestService, "GET /health", http.HandlerFunc(a.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// handleIngest accepts a multipart upload and runs the ingestion
// pipeline. Form fields: file (required), document_id, source, version,
// tags (comma-separated).
func (a *IngestAPI) handleIngest(w http.ResponseWriter, r *http.Request) {
	if a.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, a.logger, r, errors.ValidationError(
			fmt.Sprintf("invalid multipart form: %v", err), err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, a.logger, r, errors.ValidationError("missing file field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, a.logger, r, errors.ValidationError(
			fmt.Sprintf("could not read upload: %v", err), err))
		return
	}

	req := ingest.Request{
		Filename:   header.Filename,
		Data:       data,
		DocumentID: r.FormValue("document_id"),
		Source:     r.FormValue("source"),
		Version:    r.FormValue("version"),
		Tags:       splitTags(r.FormValue("tags")),
	}

	resp, err := a.pipeline.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, a.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *IngestAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	ready := true
	if _, err := a.vectors.Count(ctx); err != nil {
		ready = false
	}

	writeJSON(w, http.StatusOK, schema.HealthResponse{
		Status:      "ok",
		Service:     ingestService,
		Time:        healthTime(),
		VectorReady: &ready,
	})
}

// splitTags parses the comma-separated tags form field, dropping empty
// entries.
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
