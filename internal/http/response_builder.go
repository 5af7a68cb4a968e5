// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the single
// mapping from domain errors to HTTP status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": msg} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(messageResponse{Message: msg})
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
	_ = json.NewEncoder(w).Encode(b.body)
}

type (
	messageResponse struct {
		Message string `json:"message"`
	}

	errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
)

// ErrorResponse creates a standard error body for the given kind.
func ErrorResponse(kind core.Kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusFor(kind)).
		Body(errorResponse{Error: kind.String(), Message: message})
}

// statusFor maps an error kind to its HTTP status. Conflicts share 400 with
// validation failures; the body's error field tells them apart.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation, core.KindConflict:
		return http.StatusBadRequest
	case core.KindUnauthenticated:
		return http.StatusUnauthorized
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal causes are logged with the request id and
// never returned to the caller.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	kind := core.KindOf(err)
	fields := applog.NewFields().
		WithRequestID(trace.GetRequestID(r.Context())).
		WithErrorType(errorType(err))
	if kind == core.KindInternal {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			Failed(r.Context(), "Request failed", err, applog.ComponentHTTP, operation, fields)
	} else {
		fields.WithOperation(operation)
		fields[applog.FieldError] = core.PublicMessage(err)
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	ErrorResponse(kind, core.PublicMessage(err)).Write(w)
}

// errorType picks the log category of err.
func errorType(err error) string {
	switch core.KindOf(err) {
	case core.KindValidation:
		return applog.ErrorTypeValidation
	case core.KindConflict:
		return applog.ErrorTypeConflict
	case core.KindUnauthenticated:
		return applog.ErrorTypeAuth
	case core.KindForbidden:
		return applog.ErrorTypeForbidden
	case core.KindNotFound:
		return applog.ErrorTypeNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return applog.ErrorTypeTimeout
	}
	return applog.ErrorTypeInternal
}
