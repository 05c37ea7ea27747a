package memory

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"

	"github.com/shopspring/decimal"
)

func TestStoreBehaviour(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.LedgerStore { return New() })
}

func TestFailNextCommitDiscardsWork(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := storagetest.SeedAccount(t, s, "owner-1", "10.00", true)

	boom := errors.New("disk full")
	s.FailNextCommit(boom)
	err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		return tx.ApplyBalanceDelta(ctx, a.ID, decimal.NewFromInt(5))
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	got, err := s.GetAccount(ctx, "owner-1", a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("balance = %s, want 10", got.Balance)
	}

	// The fault fires once.
	if err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		return tx.ApplyBalanceDelta(ctx, a.ID, decimal.NewFromInt(5))
	}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().WithTx(ctx, func(storage.LedgerTx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected context.Canceled without running fn, got %v (called=%v)", err, called)
	}
}

func TestApplyBalanceDeltaUnknownAccount(t *testing.T) {
	ctx := context.Background()
	err := New().WithTx(ctx, func(tx storage.LedgerTx) error {
		return tx.ApplyBalanceDelta(ctx, "missing", decimal.NewFromInt(1))
	})
	if !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
