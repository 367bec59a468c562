// Package services implements the order lifecycle core: the purchase
// orchestrator, the pure lifecycle state machine, and the reconciliation
// sweeper. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Creation-path errors. These abort the purchase request; no partial order is
// ever persisted when one of them is returned.
var (
	// ErrInvalidAmount is returned when the requested amount does not parse
	// as a positive decimal value.
	ErrInvalidAmount = errors.New("amount must be a positive decimal")

	// ErrInvalidGatewayResponse is returned when the gateway accepted the
	// charge but returned no renderable payment payload.
	ErrInvalidGatewayResponse = errors.New("gateway response missing payment payload")

	// ErrGatewayRejected is returned when the gateway refused the payment
	// request outright.
	ErrGatewayRejected = errors.New("gateway rejected the payment")

	// ErrDuplicateOrder is returned when the buyer already has a live order
	// outstanding.
	ErrDuplicateOrder = errors.New("a pending payment already exists for this buyer")
)

// Retryable and reconciliation-path errors.
var (
	// ErrGatewayUnavailable is returned on gateway network failures,
	// timeouts, and 5xx responses. The operation may be retried; on the
	// sweep path the order is simply left untouched for the next pass.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrRecipientUnreachable is returned when the buyer can no longer
	// receive messages (blocked the bot). Terminal state cleanup still
	// proceeds when this occurs on a terminal transition.
	ErrRecipientUnreachable = errors.New("recipient unreachable")

	// ErrDeliveryFailed is returned on transient notification failures.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrInvalidOrder signals a malformed stored record (e.g. missing
	// creation timestamp) that the state machine refuses to evaluate.
	ErrInvalidOrder = errors.New("stored order record is invalid")

	// ErrLockContention is returned when an order is currently being
	// reconciled by another trigger; the caller should report the last
	// known status instead of blocking.
	ErrLockContention = errors.New("order is being reconciled")

	// ErrOrderNotFound indicates that no live order exists for the given
	// identifier or chat reference.
	ErrOrderNotFound = errors.New("order not found")
)
