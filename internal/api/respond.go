package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ragline/ragline/internal/errors"
	"github.com/ragline/ragline/internal/schema"
)

// maxJSONBody caps request bodies on the JSON endpoints.
const maxJSONBody = 1 << 20 // 1 MiB

// writeJSON writes v with the given status. Encoding failures at this
// point cannot be reported to the client anymore, only logged by the
// caller's middleware.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": ...} error body every 4xx/5xx uses.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, schema.ErrorResponse{Detail: detail})
}

// writeError maps err onto the HTTP contract: validation errors are the
// client's fault, everything else a server failure.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := errors.HTTPStatus(err)

	detail := err.Error()
	if re, ok := err.(*errors.RaglineError); ok {
		detail = re.Message
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request_failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("request_id", RequestIDFromContext(r.Context())))

	writeDetail(w, status, detail)
}

// decodeJSON strictly decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid JSON body: %v", err), err)
	}
	return nil
}
