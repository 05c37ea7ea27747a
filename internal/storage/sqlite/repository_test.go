package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"

	"github.com/shopspring/decimal"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryBehaviour(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.LedgerStore { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	a := storagetest.SeedAccount(t, repo, "owner-1", "0", true)

	err := repo.WithTx(ctx, func(tx storage.LedgerTx) error {
		return tx.InsertTransaction(ctx, core.Transaction{
			ID:        "t-1",
			OwnerID:   a.OwnerID,
			AccountID: "no-such-account",
			Amount:    decimal.NewFromInt(1),
			Type:      core.Income,
			Date:      core.NewDate(2024, 1, 1),
		})
	})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
	if core.IsDomainError(err) {
		t.Fatalf("driver error should stay unclassified, got %v", err)
	}
}

func TestSubCentDeltaRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	a := storagetest.SeedAccount(t, repo, "owner-1", "0", true)

	err := repo.WithTx(ctx, func(tx storage.LedgerTx) error {
		return tx.ApplyBalanceDelta(ctx, a.ID, decimal.RequireFromString("0.001"))
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
