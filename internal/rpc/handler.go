package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tracker/internal/form"
)

const maxRequestBytes = 1 << 20

// Handler serves the batch submit endpoint. Every batch is handed to the
// backend in a single call; the backend answers with a result (accepted or
// rejected) or an error, which becomes a JSON-RPC server error.
type Handler struct {
	backend form.BatchSender
	logger  *slog.Logger
}

// NewHandler returns a handler delegating to backend.
func NewHandler(backend form.BatchSender, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{backend: backend, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.WarnContext(r.Context(), "Failed to read rpc body", "error", err)
		writeResponse(w, errorResponse(nil, CodeParseError, "parse error"))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Malformed rpc request", "error", err)
		writeResponse(w, errorResponse(nil, CodeParseError, "parse error"))
		return
	}
	if req.JSONRPC != Version {
		writeResponse(w, errorResponse(req.ID, CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\""))
		return
	}
	if req.Method != MethodCall {
		writeResponse(w, errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method))
		return
	}

	res, err := h.backend.SubmitEntries(r.Context(), req.Params.Entries)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Batch submit failed",
			"error", err,
			"count", len(req.Params.Entries))
		writeResponse(w, errorResponse(req.ID, CodeServerError, "server error"))
		return
	}

	h.logger.InfoContext(r.Context(), "Batch handled",
		"count", len(req.Params.Entries),
		"status", res.Status)
	writeResponse(w, resultResponse(req.ID, res))
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
