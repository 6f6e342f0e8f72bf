// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/costtrack/costtrack/internal/model"

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "USER_EXISTS"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Detail string       `json:"detail"`
	Code   string       `json:"code"`
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Detail string `json:"detail"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Detail string             `json:"detail"`
	User   model.UserResponse `json:"user"`
}

// HelloResponse is the body of GET /.
type HelloResponse struct {
	Message string `json:"message"`
}

// ActivityResponse is one entry of GET /activity.
type ActivityResponse struct {
	EventID    string  `json:"event_id"`
	CostID     int64   `json:"cost_id"`
	Action     string  `json:"action"`
	Amount     float64 `json:"amount"`
	OccurredAt string  `json:"occurred_at"`
}

// ToActivityResponse converts an event to its API representation.
func ToActivityResponse(e model.ActivityEvent) ActivityResponse {
	return ActivityResponse{
		EventID:    e.EventID,
		CostID:     e.CostID,
		Action:     string(e.Action),
		Amount:     e.Amount,
		OccurredAt: e.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
