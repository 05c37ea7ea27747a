// Package http exposes the ledger as a JSON API.
//
// This file implements the builder used by every handler to write JSON
// bodies and the mapping from ledger error kinds to HTTP statuses.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if b.body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds that exist only at the HTTP boundary.
const (
	kindBadRequest      = "bad_request"
	kindUnauthenticated = "unauthenticated"
	kindUnavailable     = "unavailable"
)

// writeProblem writes an error body with an explicit status and kind.
func writeProblem(w http.ResponseWriter, status int, kind, message string) {
	NewJSONResponse().
		Status(status).
		Body(errorBody{Error: errorDetail{Kind: kind, Message: message}}).
		Write(w)
}

// statusFor maps an error to its HTTP status by kind.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindAccountNotFound, core.KindTransactionNotFound:
		return http.StatusNotFound
	case core.KindInvalidAmount, core.KindInvalidInterval, core.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case core.KindConflict:
		return http.StatusConflict
	case core.KindReceiptRejected:
		if errors.Is(err, core.ErrReceiptTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusUnsupportedMediaType
	case core.KindExtractionFormat:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the status its kind maps to.
// Server-side failures are reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	log.LogLedgerError(r.Context(), "Request failed", err, operation,
		log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, ""))

	message := err.Error()
	if status >= 500 && status != http.StatusBadGateway {
		message = "internal error"
	}
	writeProblem(w, status, string(core.KindOf(err)), message)
}
