package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, sent as application/problem+json.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code of this occurrence.
	Status int `json:"status"`

	// Detail explains this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is the request path.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request id.
	TraceID string `json:"traceId"`

	// Errors lists invalid request parameters.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError describes one invalid request parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem types.
const (
	ProblemTypeValidation          = "/problems/validation-error"
	ProblemTypeUnauthenticated     = "/problems/unauthenticated"
	ProblemTypeAuthorizationDenied = "/problems/authorization-denied"
	ProblemTypeNotFound            = "/problems/not-found"
	ProblemTypeConflict            = "/problems/conflict"
	ProblemTypeTooManyRequests     = "/problems/too-many-requests"
	ProblemTypeInternal            = "/problems/internal-error"
	ProblemTypeUpstream            = "/problems/upstream-error"
	ProblemTypeUnavailable         = "/problems/service-unavailable"
	ProblemTypeTLSRequired         = "/problems/tls-required"
)

// NewProblem creates a Problem.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the detail message.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request path.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors sets the parameter errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes p to w.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newProblem(problemType, title string, status int, traceID, detail string) *Problem {
	return NewProblem(problemType, title, status, traceID).WithDetail(detail)
}

// NewBadRequest creates a 400 problem for invalid parameters.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return newProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail).
		WithErrors(errors)
}

// NewUnauthenticated creates a 401 problem for a profile without a usable token.
func NewUnauthenticated(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnauthenticated, "Profile unauthenticated", http.StatusUnauthorized, traceID, detail)
}

// NewAuthorizationDenied creates a 403 problem for a denied authorization request.
func NewAuthorizationDenied(traceID, detail string) *Problem {
	return newProblem(ProblemTypeAuthorizationDenied, "Authorization denied", http.StatusForbidden, traceID, detail)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return newProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewConflict creates a 409 problem.
func NewConflict(traceID, detail string) *Problem {
	return newProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return newProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewUpstreamError creates a 502 problem for a failing OAuth server or API.
func NewUpstreamError(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUpstream, "Upstream error", http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
