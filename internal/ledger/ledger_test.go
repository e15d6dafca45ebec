package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestPayOutGuardIsPerIssue(t *testing.T) {
	l := &Ledger{}
	calls := make(map[string]int64)
	l.Transfer = func(ctx context.Context, recipient string, amount int64) error {
		calls[recipient] += amount
		// Re-entry on the same issue must be rejected while its transfer
		// is still in flight.
		if recipient == "bob" {
			if err := l.PayOut(ctx, 1, "bob", 5); !errors.Is(err, ErrTransferInProgress) {
				t.Fatalf("re-entrant payout for issue 1: want ErrTransferInProgress, got %v", err)
			}
			// A payout for a different issue proceeds.
			inner := l.Transfer
			l.Transfer = func(ctx context.Context, recipient string, amount int64) error {
				calls[recipient] += amount
				return nil
			}
			defer func() { l.Transfer = inner }()
			if err := l.PayOut(ctx, 2, "carol", 7); err != nil {
				t.Fatalf("payout for issue 2 should not be blocked: %v", err)
			}
		}
		return nil
	}

	if err := l.PayOut(context.Background(), 1, "bob", 110); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if calls["bob"] != 110 {
		t.Fatalf("bob received %d, want 110", calls["bob"])
	}
	if calls["carol"] != 7 {
		t.Fatalf("carol received %d, want 7", calls["carol"])
	}

	// The guard clears once the transfer settles.
	if err := l.PayOut(context.Background(), 1, "bob", 3); err != nil {
		t.Fatalf("second payout for issue 1 after settle: %v", err)
	}
	if calls["bob"] != 113 {
		t.Fatalf("bob received %d, want 113", calls["bob"])
	}
}

func TestPayOutSkipsZeroAndUnset(t *testing.T) {
	l := &Ledger{}
	if err := l.PayOut(context.Background(), 1, "bob", 100); err != nil {
		t.Fatalf("nil transfer hook should be a no-op: %v", err)
	}
	called := false
	l.Transfer = func(ctx context.Context, recipient string, amount int64) error {
		called = true
		return nil
	}
	if err := l.PayOut(context.Background(), 1, "bob", 0); err != nil {
		t.Fatalf("zero payout: %v", err)
	}
	if called {
		t.Fatal("zero payout must not invoke the transfer hook")
	}
}
