// Package models - API response types and error handling.
// This file defines every outgoing API response structure.
//
// Response conventions:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty
// - Errors carry a machine-readable code next to the human message
// - RFC3339 timestamps
package models

import (
	"time"
)

// LinkResponse is returned when a link is added or looked up. Summary is only
// populated when voucher data was available at response time.
type LinkResponse struct {
	Link    LinkView        `json:"link"`
	Summary *VoucherSummary `json:"summary,omitempty"`
}

type ListLinksResponse struct {
	Links      []LinkView `json:"links"`
	TotalCount int        `json:"total_count"`
}

type DeleteLinkResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: malformed voucher URLs or IDs
// - Not found errors: unknown links or voucher groups
// - Conflict errors: duplicate links
// - Throttling errors: the caller exceeded its rate limit
// - Upstream errors: the CDC API failed or was unreachable
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Extra context, e.g. retry timing
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Route or resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidURL         = "INVALID_URL"         // 400: Not a voucher.redeem.gov.sg link
	ErrorCodeInvalidVoucherID   = "INVALID_VOUCHER_ID"  // 400: Voucher ID is not alphanumeric
	ErrorCodeInvalidLinkID      = "INVALID_LINK_ID"     // 400: Link ID is not a UUID
	ErrorCodeUnresolvableClient = "UNRESOLVABLE_CLIENT" // 400: Client identity could not be determined
	ErrorCodeLinkNotFound       = "LINK_NOT_FOUND"      // 404: No saved link with that ID
	ErrorCodeVoucherNotFound    = "VOUCHER_NOT_FOUND"   // 404: Upstream has no such voucher group
	ErrorCodeLinkExists         = "LINK_EXISTS"         // 409: The same URL is already saved
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: Client exhausted its token bucket
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUpstreamError      = "UPSTREAM_ERROR"      // 502: CDC API failure
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
	ErrorCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"  // 405: Route exists with another method
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
