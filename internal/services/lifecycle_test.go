package services

import (
	"errors"
	"testing"
	"time"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

func TestDecide(t *testing.T) {
	th := testLifecycle()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		stage   int
		elapsed time.Duration
		status  domain.PaymentStatus
		want    Decision
	}{
		{
			name:    "fresh order stays untouched",
			elapsed: time.Minute,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionNone},
		},
		{
			name:    "stage 0 past reminder threshold reminds",
			elapsed: 5 * time.Minute,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionRemind, NextStage: 1},
		},
		{
			name:    "stage 0 exactly at reminder threshold reminds",
			elapsed: th.RemindAfter,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionRemind, NextStage: 1},
		},
		{
			name:    "stage 1 inside expiry window holds",
			stage:   1,
			elapsed: 30 * time.Minute,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionNone},
		},
		{
			name:    "stage 1 past expiry threshold expires",
			stage:   1,
			elapsed: 61 * time.Minute,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionExpire, Terminal: true},
		},
		{
			name:    "stage 0 far past expiry still reminds first",
			elapsed: 2 * time.Hour,
			status:  domain.PaymentPending,
			want:    Decision{Action: ActionRemind, NextStage: 1},
		},
		{
			name:    "approval fulfills a fresh order",
			elapsed: time.Minute,
			status:  domain.PaymentApproved,
			want:    Decision{Action: ActionFulfill, Terminal: true},
		},
		{
			name:    "approval beats expiry at stage 1",
			stage:   1,
			elapsed: 3 * time.Hour,
			status:  domain.PaymentApproved,
			want:    Decision{Action: ActionFulfill, Terminal: true},
		},
		{
			name:    "unknown status inside thresholds holds",
			elapsed: time.Minute,
			status:  domain.PaymentUnknown,
			want:    Decision{Action: ActionNone},
		},
		{
			name:    "unknown status past reminder threshold still reminds",
			elapsed: 10 * time.Minute,
			status:  domain.PaymentUnknown,
			want:    Decision{Action: ActionRemind, NextStage: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := domain.Order{ID: "o1", RemarketStage: tc.stage, CreatedAt: created}
			got, err := Decide(o, created.Add(tc.elapsed), tc.status, th)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecideInvalidOrder(t *testing.T) {
	_, err := Decide(domain.Order{ID: "o1"}, time.Now(), domain.PaymentPending, testLifecycle())
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("err = %v, want ErrInvalidOrder", err)
	}
}

func TestDecideStageNeverRegresses(t *testing.T) {
	// A stage-1 order observed shortly after its reminder must not be
	// reminded again, even though the reminder threshold is long past.
	th := testLifecycle()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := domain.Order{ID: "o1", RemarketStage: 1, CreatedAt: created}

	d, err := Decide(o, created.Add(10*time.Minute), domain.PaymentPending, th)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Action != ActionNone {
		t.Fatalf("Action = %v, want ActionNone", d.Action)
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{
		ActionNone:    "none",
		ActionRemind:  "remind",
		ActionFulfill: "fulfill",
		ActionExpire:  "expire",
		Action(99):    "none",
	} {
		if got := a.String(); got != want {
			t.Errorf("Action(%d).String() = %q, want %q", a, got, want)
		}
	}
}
