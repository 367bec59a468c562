// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, conflict) mirror common HTTP status
//     semantics to aid interoperability.
//   - Domain-specific codes (e.g., duplicate_order, gateway_unavailable) are
//     reserved for purchase flow errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_order",
//	  "message": "a pending payment already exists for this buyer"
//	}
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeInvalidAmount      = "invalid_amount"
	ErrCodeDuplicateOrder     = "duplicate_order"
	ErrCodeGatewayRejected    = "gateway_rejected"
	ErrCodeGatewayUnavailable = "gateway_unavailable"
	ErrCodeGatewayBadResponse = "gateway_bad_response"
	ErrCodeDeliveryFailed     = "delivery_failed"
	ErrCodeRecipientBlocked   = "recipient_blocked"
	ErrCodeProcessing         = "processing"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
