// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing responses. It
// provides a fluent API for building HX-Trigger headers alongside JSON
// bodies so clients learn when to recompute their views.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// EventLedgerChanged is the HX-Trigger event sent after every committed
// mutation.
const EventLedgerChanged = "ledger:changed"

// ResponseBuilder provides a fluent API for building JSON responses.
// It encapsulates the construction of HX-Trigger headers and response bodies.
type ResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data interface{}) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerLedgerChanged adds the ledger:changed trigger naming the operation
// and the affected transaction, if any.
func (b *ResponseBuilder) TriggerLedgerChanged(op, txID string) *ResponseBuilder {
	data := map[string]string{"operation": op}
	if txID != "" {
		data["id"] = txID
	}
	return b.Trigger(EventLedgerChanged, data)
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes with the given content type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

// JSON encodes v as the response body. An encoding failure turns the
// response into a 500.
func (b *ResponseBuilder) JSON(v interface{}) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Response encoding failed", "error", err)
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}
	return b.Body("application/json; charset=utf-8", data)
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}
