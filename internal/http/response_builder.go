// Package http serves the kharcha JSON API.
//
// This file holds the response builder and the mapping from domain errors
// to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/forecast"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_error"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeInsufficientData = "insufficient_data"
	CodeRateLimited      = "rate_limited"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal_error"
)

// JSONResponseBuilder assembles a JSON response.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
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

// Data sets the value encoded as the body. A nil body writes no content.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status the builder will write.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response","code":"internal_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse creates a JSON error body with the given status and code.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(errorBody{Error: message, Code: code})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, please try again later")
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal server error")
}

// errorFor maps err to its response. Messages of unexpected errors are
// never exposed.
func errorFor(err error) *JSONResponseBuilder {
	var insufficient *forecast.InsufficientDataError
	var validation *services.ValidationError

	switch {
	case errors.As(err, &insufficient):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Data(errorBody{
				Error: insufficient.UserMessage(),
				Code:  CodeInsufficientData,
				Details: map[string]any{
					"available_months": insufficient.Available,
					"required_months":  insufficient.Required,
				},
			})
	case errors.Is(err, forecast.ErrInsufficientData):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeInsufficientData, "not enough expense history to forecast")
	case errors.As(err, &validation):
		return ErrorResponse(http.StatusBadRequest, CodeValidation, validation.Error())
	case errors.Is(err, forecast.ErrInvalidInput):
		return ErrorResponse(http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		return UnauthorizedError("authentication required")
	case errors.Is(err, services.ErrInvalidCredentials):
		return UnauthorizedError(services.ErrInvalidCredentials.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, core.ErrDuplicateUsername):
		return ErrorResponse(http.StatusConflict, CodeConflict, core.ErrDuplicateUsername.Error())
	case errors.Is(err, core.ErrDuplicateEmail):
		return ErrorResponse(http.StatusConflict, CodeConflict, core.ErrDuplicateEmail.Error())
	case errors.Is(err, core.ErrDuplicateAadhar):
		return ErrorResponse(http.StatusConflict, CodeConflict, core.ErrDuplicateAadhar.Error())
	case errors.Is(err, services.ErrMessagingDisabled), errors.Is(err, amqp.ErrCircuitOpen):
		return ErrorResponse(http.StatusServiceUnavailable, CodeUnavailable, "forecast queue is unavailable")
	default:
		return InternalServerError()
	}
}

// writeError logs err with the request logger and writes its response.
// Server faults log at error level, client faults at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorFor(err)
	logger := applog.FromContext(r.Context())
	if resp.StatusCode() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err, applog.FieldStatusCode, resp.StatusCode())
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}
