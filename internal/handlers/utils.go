package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/chatModel"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func loggerFor(ctx context.Context) *logger_i.Logger {
	return logRH.With("traceId", ctx.Value(config.TRACE_ID_KEY))
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		loggerFor(ctx).Warn("context error", "error", ctx.Err())
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ragErrors.ErrEmptyQuestion), errors.Is(err, chatModel.ErrSessionNotFound):
		return http.StatusBadRequest
	case ragErrors.IsEmbedding(err), ragErrors.IsGeneration(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}
