// Package services – reconciliation sweeper.
//
// The Sweeper periodically drives every live order through the lifecycle
// state machine and applies the resulting mutations exactly once per
// decision. It also serves user-triggered "check now" requests through the
// identical decide-and-apply path, serialized per order.
//
// Concurrency model:
//   - one sweep in flight at a time; a tick that fires while a sweep is
//     still running is skipped, not queued;
//   - per-order TryLock around fetch-status → decide → apply; a trigger that
//     loses the race reports ErrLockContention instead of blocking;
//   - the sweep stops cooperatively between orders, never mid-mutation.
//
// Failure model:
//   - gateway or notification failures on one order are logged and never
//     abort the sweep for the remaining orders;
//   - store mutations come before notifications, except that a terminal
//     deletion is deferred until after the notification attempt. The delete
//     happens even when that attempt fails, so a resolved order can never
//     re-enter the reprocessing loop.
package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/domain"
	"github.com/ovitor/go-pix-orders/internal/gateway"
	"github.com/ovitor/go-pix-orders/internal/notify"
	"github.com/ovitor/go-pix-orders/internal/repo"
)

var (
	// sweepDuration records how long a full sweep takes.
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_sweep_duration_seconds",
		Help:    "Duration of reconciliation sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// sweepSkipped counts ticks dropped because a sweep was still running.
	sweepSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_sweep_skipped_total",
		Help: "Sweep ticks skipped because the previous sweep was in flight.",
	})

	// orderTransitions counts applied lifecycle transitions by action.
	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order lifecycle transitions applied, by action.",
		},
		[]string{"action"},
	)

	// orderFailures counts per-order reconciliation failures by kind.
	orderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_failures_total",
			Help: "Per-order reconciliation failures, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(sweepDuration, sweepSkipped, orderTransitions, orderFailures)
}

// CheckResult is the outcome of a user-triggered check.
type CheckResult struct {
	// Status is the order's payment status as of this check.
	Status domain.PaymentStatus
	// Resolved reports whether the order reached a terminal outcome and was
	// removed during this check.
	Resolved bool
	// Action is the transition applied, ActionNone when nothing changed.
	Action Action
}

// Sweeper owns the reconciliation loop.
type Sweeper struct {
	DB       *gorm.DB
	Store    OrderStore
	Gateway  gateway.Gateway
	Notifier notify.Notifier
	Audit    notify.AuditSink
	Locks    *KeyedLocks

	Lifecycle config.LifecycleConfig
	// AccessText is delivered on fulfillment; empty selects the default.
	AccessText string

	Log zerolog.Logger

	sweeping atomic.Bool
	now      func() time.Time
}

// NewSweeper constructs a Sweeper sharing the orchestrator's collaborators.
func NewSweeper(db *gorm.DB, store OrderStore, gw gateway.Gateway, n notify.Notifier, audit notify.AuditSink, locks *KeyedLocks, lc config.LifecycleConfig, accessText string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		DB:         db,
		Store:      store,
		Gateway:    gw,
		Notifier:   n,
		Audit:      audit,
		Locks:      locks,
		Lifecycle:  lc,
		AccessText: accessText,
		Log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run drives sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Lifecycle.SweepInterval)
	defer ticker.Stop()

	s.Log.Info().Dur("interval", s.Lifecycle.SweepInterval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.Log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single reconciliation pass over all live orders. It
// reports whether the pass ran; false means another sweep was in flight.
func (s *Sweeper) SweepOnce(ctx context.Context) bool {
	if !s.sweeping.CompareAndSwap(false, true) {
		sweepSkipped.Inc()
		s.Log.Warn().Msg("sweep still in flight, skipping tick")
		return false
	}
	defer s.sweeping.Store(false)

	tr := otel.Tracer("services/Sweeper")
	ctx, span := tr.Start(ctx, "SweepOnce")
	defer span.End()

	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	orders, err := s.Store.ListLiveOrders(ctx, s.DB)
	if err != nil {
		s.Log.Error().Err(err).Msg("sweep: listing live orders failed")
		return true
	}
	span.SetAttributes(attribute.Int("sweep.orders", len(orders)))
	if len(orders) == 0 {
		return true
	}
	s.Log.Debug().Int("orders", len(orders)).Msg("sweep pass")

	for i := range orders {
		// Cooperative stop between orders, never mid-mutation.
		if ctx.Err() != nil {
			s.Log.Info().Msg("sweep cancelled between orders")
			return true
		}
		o := orders[i]
		if _, err := s.reconcile(ctx, o); err != nil {
			// Per-order isolation: log and continue with the rest.
			s.Log.Warn().Err(err).
				Str("order_id", o.ID).
				Str("chat_ref", o.ChatRef).
				Msg("sweep: order reconciliation failed")
		}
	}
	return true
}

// CheckNow runs the decide-and-apply path for a single buyer's order outside
// the sweep cadence. ErrLockContention means the order is being reconciled by
// a concurrent trigger and the caller should report the last known status.
func (s *Sweeper) CheckNow(ctx context.Context, chatRef string) (CheckResult, *domain.Order, error) {
	tr := otel.Tracer("services/Sweeper")
	ctx, span := tr.Start(ctx, "CheckNow",
		trace.WithAttributes(attribute.String("order.chat_ref", chatRef)),
	)
	defer span.End()

	o, err := s.Store.GetOrderByChatRef(ctx, s.DB, chatRef)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CheckResult{}, nil, ErrOrderNotFound
		}
		return CheckResult{}, nil, err
	}

	res, err := s.reconcile(ctx, *o)
	if err != nil {
		return CheckResult{}, o, err
	}
	if res.Resolved {
		return res, nil, nil
	}
	// Re-read so the caller sees the stage advancement, if any.
	fresh, err := s.Store.GetOrder(ctx, s.DB, o.ID)
	if err != nil {
		fresh = o
	}
	return res, fresh, nil
}

// reconcile serializes, polls, decides, and applies for one order.
func (s *Sweeper) reconcile(ctx context.Context, o domain.Order) (CheckResult, error) {
	if !s.Locks.TryLock(o.ID) {
		orderFailures.WithLabelValues("lock_contention").Inc()
		return CheckResult{}, ErrLockContention
	}
	defer s.Locks.Unlock(o.ID)

	status, err := s.Gateway.GetStatus(ctx, o.ExternalRef)
	if err != nil {
		// Transient by contract: leave the order untouched for the next pass.
		orderFailures.WithLabelValues("gateway_unavailable").Inc()
		return CheckResult{}, ErrGatewayUnavailable
	}

	d, err := Decide(o, s.now(), status, s.Lifecycle)
	if err != nil {
		orderFailures.WithLabelValues("invalid_order").Inc()
		return CheckResult{}, err
	}

	if err := s.apply(ctx, o, d); err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Status: status, Resolved: d.Terminal, Action: d.Action}, nil
}

// apply performs the store mutations and notifications for one decision.
// The caller holds the per-order lock.
func (s *Sweeper) apply(ctx context.Context, o domain.Order, d Decision) error {
	switch d.Action {
	case ActionNone:
		return nil

	case ActionRemind:
		// Store first: a notify failure must not replay the stage bump.
		if err := s.Store.UpdateOrder(ctx, s.DB, o.ID, map[string]any{"remarket_stage": d.NextStage}); err != nil {
			return err
		}
		orderTransitions.WithLabelValues(d.Action.String()).Inc()
		s.Log.Info().Str("order_id", o.ID).Int("stage", d.NextStage).Msg("reminder sent")
		s.notifyBuyer(ctx, o, firstReminderText)
		return nil

	case ActionFulfill:
		if err := s.Store.UpdateOrder(ctx, s.DB, o.ID, map[string]any{"status": domain.OrderApproved}); err != nil {
			return err
		}
		s.notifyBuyer(ctx, o, approvedText)
		s.notifyBuyer(ctx, o, s.accessText())
		// Deletion last, but unconditional: best-effort notification,
		// guaranteed cleanup.
		if err := s.Store.DeleteOrder(ctx, s.DB, o.ID); err != nil {
			return err
		}
		orderTransitions.WithLabelValues(d.Action.String()).Inc()
		s.Audit.Record(ctx, notify.AuditFulfilled, o, s.now())
		s.Log.Info().Str("order_id", o.ID).Str("chat_ref", o.ChatRef).Msg("order fulfilled")
		return nil

	case ActionExpire:
		if err := s.Store.UpdateOrder(ctx, s.DB, o.ID, map[string]any{"status": domain.OrderExpired}); err != nil {
			return err
		}
		s.notifyBuyer(ctx, o, expiredText)
		if err := s.Store.DeleteOrder(ctx, s.DB, o.ID); err != nil {
			return err
		}
		orderTransitions.WithLabelValues(d.Action.String()).Inc()
		s.Audit.Record(ctx, notify.AuditExpired, o, s.now())
		s.Log.Info().Str("order_id", o.ID).Str("chat_ref", o.ChatRef).Msg("order expired")
		return nil
	}
	return nil
}

// notifyBuyer sends text to the buyer, logging failures without propagating
// them; a blocked recipient is additionally recorded in the audit trail.
func (s *Sweeper) notifyBuyer(ctx context.Context, o domain.Order, text string) {
	err := s.Notifier.SendText(ctx, o.ChatRef, text)
	if err == nil {
		return
	}
	if errors.Is(err, notify.ErrBlocked) {
		orderFailures.WithLabelValues("recipient_blocked").Inc()
		s.Audit.Record(ctx, notify.AuditUserBlocked, o, s.now())
	} else {
		orderFailures.WithLabelValues("delivery_failed").Inc()
	}
	s.Log.Warn().Err(err).
		Str("order_id", o.ID).
		Str("chat_ref", o.ChatRef).
		Msg("buyer notification failed")
}

func (s *Sweeper) accessText() string {
	if s.AccessText != "" {
		return s.AccessText
	}
	return defaultAccessText
}
