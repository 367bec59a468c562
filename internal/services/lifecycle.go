// Package services – order lifecycle state machine.
//
// This file implements the pure decision core of the reconciler: given an
// order, the current time, and the freshly polled payment status, it returns
// the single transition to apply. It performs no I/O and takes no locks,
// which keeps every lifecycle rule unit-testable without collaborators.
package services

import (
	"time"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/domain"
)

// Action is the transition the reconciler must apply to an order.
type Action int

const (
	// ActionNone leaves the order untouched until the next evaluation.
	ActionNone Action = iota
	// ActionRemind advances the remarket stage and sends the first reminder.
	ActionRemind
	// ActionFulfill resolves the order as paid: notify, grant access, delete.
	ActionFulfill
	// ActionExpire resolves the order as abandoned: final message, delete.
	ActionExpire
)

// String returns the action name for logs and metrics labels.
func (a Action) String() string {
	switch a {
	case ActionRemind:
		return "remind"
	case ActionFulfill:
		return "fulfill"
	case ActionExpire:
		return "expire"
	default:
		return "none"
	}
}

// Decision is the outcome of evaluating one order.
type Decision struct {
	Action Action
	// NextStage is the remarket stage to store when Action is ActionRemind.
	NextStage int
	// Terminal reports whether the order must be deleted after the decision
	// is applied.
	Terminal bool
}

// Decide maps (order, now, payment status) to the next transition.
//
// Rules, evaluated from the stored stage forward:
//
//   - An approved payment fulfills the order at any stage, regardless of
//     elapsed time. Approval always beats expiry.
//   - Stage 0 past the reminder threshold advances to stage 1.
//   - Stage 1 past the expiry threshold expires the order.
//   - A pending or unknown status inside the thresholds does nothing.
//
// Stages are strictly sequential: an order far past the expiry threshold but
// still at stage 0 gets the reminder first and expires on a later evaluation,
// once the stored stage is 1. The stage never resets.
//
// Decide returns ErrInvalidOrder when the stored record has no creation
// timestamp; elapsed time would be meaningless.
func Decide(o domain.Order, now time.Time, status domain.PaymentStatus, th config.LifecycleConfig) (Decision, error) {
	if o.CreatedAt.IsZero() {
		return Decision{}, ErrInvalidOrder
	}

	if status == domain.PaymentApproved {
		return Decision{Action: ActionFulfill, Terminal: true}, nil
	}

	elapsed := o.Age(now)
	switch {
	case o.RemarketStage == 0 && elapsed >= th.RemindAfter:
		return Decision{Action: ActionRemind, NextStage: 1}, nil
	case o.RemarketStage >= 1 && elapsed >= th.ExpireAfter:
		return Decision{Action: ActionExpire, Terminal: true}, nil
	}
	return Decision{Action: ActionNone}, nil
}
