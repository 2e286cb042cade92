package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"bcbradar/internal/bcb"
	"bcbradar/internal/transform"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	// Add standard fields
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	// Add extensions
	for k, v := range pd.Extensions {
		data[k] = v
	}

	// Use standard JSON marshaling
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapDataError maps domain errors to HTTP problem details.
// Upstream transport failures and schema mismatches carry enough context
// for clients to distinguish "try again later" from "the provider changed".
func MapDataError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/v1#trace-%s", traceID)

	// Check if it's an APIError from errors.go
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorToProblemDetails(apiErr, traceID, instance)
	}

	var missing *transform.MissingColumnError
	if errors.As(err, &missing) {
		return NewProblemDetails(
			http.StatusBadGateway,
			"/errors/upstream-schema",
			"Upstream Schema Mismatch",
			"The data provider returned a response without an expected column.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "UPSTREAM_SCHEMA").
			WithExtension("missing_column", missing.Column).
			WithExtension("available_columns", missing.Available)
	}

	switch {
	case errors.Is(err, bcb.ErrRejected):
		return NewProblemDetails(
			http.StatusBadGateway,
			"/errors/upstream-rejected",
			"Upstream Request Rejected",
			"The data provider rejected the request. The query parameters may be outside the supported range.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "UPSTREAM_REJECTED")

	case errors.Is(err, bcb.ErrUnavailable):
		return NewProblemDetails(
			http.StatusServiceUnavailable,
			"/errors/upstream-unavailable",
			"Upstream Unavailable",
			"The data provider could not be reached. Please try again later.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "UPSTREAM_UNAVAILABLE").
			WithExtension("retry_after", 60)

	case errors.Is(err, context.DeadlineExceeded):
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			"/errors/request-timeout",
			"Request Timeout",
			"The request took too long to process.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "TIMEOUT")

	case errors.Is(err, context.Canceled):
		return NewProblemDetails(
			499,
			"/errors/request-cancelled",
			"Request Cancelled",
			"The request was cancelled before completion.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "CANCELLED")

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}

// apiErrorToProblemDetails converts an APIError into problem details with
// the matching RFC 7807 type URI.
func apiErrorToProblemDetails(apiErr *APIError, traceID, instance string) *ProblemDetails {
	problemType := "/errors/internal-error"
	switch apiErr.ErrorCode {
	case "INVALID_REQUEST", "MISSING_PARAMETER", "INVALID_PARAMETER":
		problemType = "/errors/invalid-request"
	case "VALIDATION_FAILED":
		problemType = "/errors/validation-failed"
	case "NOT_FOUND", "SERIES_NOT_FOUND":
		problemType = "/errors/not-found"
	case "UNPROCESSABLE_ENTITY":
		problemType = "/errors/unprocessable-entity"
	case "RATE_LIMIT_EXCEEDED":
		problemType = "/errors/rate-limit-exceeded"
	case "UPSTREAM_REJECTED":
		problemType = "/errors/upstream-rejected"
	case "UPSTREAM_SCHEMA":
		problemType = "/errors/upstream-schema"
	case "UPSTREAM_UNAVAILABLE":
		problemType = "/errors/upstream-unavailable"
	case "SERVICE_UNAVAILABLE":
		problemType = "/errors/service-unavailable"
	case "GATEWAY_TIMEOUT":
		problemType = "/errors/request-timeout"
	case "FILESYSTEM_ERROR":
		problemType = "/errors/filesystem-error"
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		instance,
	).WithExtension("trace_id", traceID).
		WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}
