// Package storagetest holds behaviour checks shared by every LedgerStore
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var errAbort = errors.New("abort")

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.LedgerStore) {
	t.Run("AccountLifecycle", func(t *testing.T) { testAccountLifecycle(t, newStore(t)) })
	t.Run("TransactionRoundTrip", func(t *testing.T) { testTransactionRoundTrip(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, newStore(t)) })
	t.Run("OwnershipIsolation", func(t *testing.T) { testOwnershipIsolation(t, newStore(t)) })
	t.Run("AdvanceRecurrence", func(t *testing.T) { testAdvanceRecurrence(t, newStore(t)) })
	t.Run("DueAndList", func(t *testing.T) { testDueAndList(t, newStore(t)) })
	t.Run("BalanceBounds", func(t *testing.T) { testBalanceBounds(t, newStore(t)) })
	t.Run("ConcurrentLedgerWrites", func(t *testing.T) { testConcurrentLedgerWrites(t, newStore(t)) })
}

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newOwner returns a fresh owner ID so runs against a shared database do not
// see each other's rows.
func newOwner() string { return "owner-" + uuid.NewString() }

// SeedAccount creates an account with the given opening balance.
func SeedAccount(t *testing.T, s storage.LedgerStore, ownerID, opening string, isDefault bool) core.Account {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	a := core.Account{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           "Main",
		Type:           core.Current,
		OpeningBalance: mustDec(opening),
		Balance:        mustDec(opening),
		IsDefault:      isDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func newTransaction(a core.Account, amount string, typ core.TransactionType, date core.Date) core.Transaction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     a.OwnerID,
		AccountID:   a.ID,
		Amount:      mustDec(amount),
		Type:        typ,
		Date:        date,
		Description: "test",
		Category:    "groceries",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func testAccountLifecycle(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	first := SeedAccount(t, s, owner, "100.00", true)
	second := SeedAccount(t, s, owner, "0", true)

	n, err := s.CountAccounts(ctx, owner)
	if err != nil || n != 2 {
		t.Fatalf("CountAccounts = %d, %v", n, err)
	}

	got, err := s.GetAccount(ctx, owner, first.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.IsDefault {
		t.Errorf("first account should have lost the default flag")
	}
	if !got.Balance.Equal(mustDec("100")) || !got.OpeningBalance.Equal(mustDec("100")) {
		t.Errorf("balance = %s opening = %s", got.Balance, got.OpeningBalance)
	}

	list, err := s.ListAccounts(ctx, owner)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
			if a.ID != second.ID {
				t.Errorf("unexpected default account %s", a.ID)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("expected exactly one default account, got %d", defaults)
	}
}

func testTransactionRoundTrip(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "1000.00", true)

	monthly := core.Monthly
	next := core.NewDate(2024, 2, 29)
	tr := newTransaction(a, "50.25", core.Expense, core.NewDate(2024, 1, 31))
	tr.IsRecurring = true
	tr.RecurringInterval = &monthly
	tr.NextRecurringDate = &next

	err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		if _, err := tx.FindOwnedAccount(ctx, a.OwnerID, a.ID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, tr); err != nil {
			return err
		}
		return tx.ApplyBalanceDelta(ctx, a.ID, tr.Signed())
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	got, err := s.GetTransaction(ctx, a.OwnerID, tr.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !got.Amount.Equal(tr.Amount) || got.Type != core.Expense || got.Date.String() != "2024-01-31" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.RecurringInterval == nil || *got.RecurringInterval != core.Monthly {
		t.Errorf("interval = %v", got.RecurringInterval)
	}
	if got.NextRecurringDate == nil || got.NextRecurringDate.String() != "2024-02-29" {
		t.Errorf("next = %v", got.NextRecurringDate)
	}
	if got.LastProcessed != nil {
		t.Errorf("last processed should be nil, got %v", got.LastProcessed)
	}

	acc, err := s.GetAccount(ctx, a.OwnerID, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Balance.Equal(mustDec("949.75")) {
		t.Errorf("balance = %s, want 949.75", acc.Balance)
	}

	r, err := s.ReconcileAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("ReconcileAccount: %v", err)
	}
	if !r.Consistent() || r.Transactions != 1 {
		t.Errorf("reconciliation = %+v", r)
	}
}

func testRollbackOnError(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "1000.00", true)
	tr := newTransaction(a, "10.00", core.Income, core.NewDate(2024, 5, 1))

	err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		if err := tx.InsertTransaction(ctx, tr); err != nil {
			return err
		}
		if err := tx.ApplyBalanceDelta(ctx, a.ID, tr.Signed()); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected errAbort, got %v", err)
	}

	if _, err := s.GetTransaction(ctx, a.OwnerID, tr.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Errorf("transaction should not exist, got %v", err)
	}
	acc, err := s.GetAccount(ctx, a.OwnerID, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.Balance.Equal(mustDec("1000")) {
		t.Errorf("balance changed after rollback: %s", acc.Balance)
	}
}

func testOwnershipIsolation(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "0", true)
	tr := newTransaction(a, "1.00", core.Income, core.NewDate(2024, 5, 1))
	if err := s.WithTx(ctx, func(tx storage.LedgerTx) error { return tx.InsertTransaction(ctx, tr) }); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := s.GetAccount(ctx, newOwner(), a.ID); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("foreign account lookup: got %v", err)
	}
	if _, err := s.GetTransaction(ctx, newOwner(), tr.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Errorf("foreign transaction lookup: got %v", err)
	}
	err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		_, err := tx.FindOwnedAccount(ctx, newOwner(), a.ID)
		return err
	})
	if !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("FindOwnedAccount for other owner: got %v", err)
	}
	list, err := s.ListTransactions(ctx, newOwner(), a.ID, 10)
	if err != nil || len(list) != 0 {
		t.Errorf("ListTransactions for other owner = %d, %v", len(list), err)
	}
}

func testAdvanceRecurrence(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "0", true)
	daily := core.Daily
	next := core.NewDate(2024, 3, 2)
	tr := newTransaction(a, "5.00", core.Expense, core.NewDate(2024, 3, 1))
	tr.IsRecurring = true
	tr.RecurringInterval = &daily
	tr.NextRecurringDate = &next
	if err := s.WithTx(ctx, func(tx storage.LedgerTx) error { return tx.InsertTransaction(ctx, tr) }); err != nil {
		t.Fatalf("insert: %v", err)
	}

	after := core.NewDate(2024, 3, 3)
	var ok bool
	err := s.WithTx(ctx, func(tx storage.LedgerTx) error {
		var err error
		ok, err = tx.AdvanceRecurrence(ctx, tr.ID, next, &after, next)
		return err
	})
	if err != nil || !ok {
		t.Fatalf("first advance = %v, %v", ok, err)
	}

	// A second attempt with the stale expected date must not apply.
	err = s.WithTx(ctx, func(tx storage.LedgerTx) error {
		var err error
		ok, err = tx.AdvanceRecurrence(ctx, tr.ID, next, &after, next)
		return err
	})
	if err != nil || ok {
		t.Fatalf("stale advance = %v, %v", ok, err)
	}

	got, err := s.GetTransaction(ctx, a.OwnerID, tr.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.NextRecurringDate == nil || got.NextRecurringDate.String() != "2024-03-03" {
		t.Errorf("next = %v", got.NextRecurringDate)
	}
	if got.LastProcessed == nil || got.LastProcessed.String() != "2024-03-02" {
		t.Errorf("last processed = %v", got.LastProcessed)
	}

	err = s.WithTx(ctx, func(tx storage.LedgerTx) error {
		_, err := tx.AdvanceRecurrence(ctx, uuid.NewString(), next, &after, next)
		return err
	})
	if !errors.Is(err, core.ErrTransactionNotFound) {
		t.Errorf("unknown transaction: got %v", err)
	}
}

func testDueAndList(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "0", true)
	weekly := core.Weekly

	dates := []core.Date{core.NewDate(2024, 1, 10), core.NewDate(2024, 1, 20), core.NewDate(2024, 2, 5)}
	for _, d := range dates {
		tr := newTransaction(a, "1.00", core.Expense, d)
		tr.IsRecurring = true
		tr.RecurringInterval = &weekly
		next := core.Date{Time: d.AddDate(0, 0, 7)}
		tr.NextRecurringDate = &next
		if err := s.WithTx(ctx, func(tx storage.LedgerTx) error { return tx.InsertTransaction(ctx, tr) }); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := s.DueRecurringTransactions(ctx, core.NewDate(2024, 1, 27), 0)
	if err != nil {
		t.Fatalf("DueRecurringTransactions: %v", err)
	}
	var due []core.Transaction
	for _, tr := range all {
		if tr.OwnerID == owner {
			due = append(due, tr)
		}
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due, got %d", len(due))
	}
	if due[0].NextRecurringDate.String() != "2024-01-17" {
		t.Errorf("due not ordered oldest first: %s", due[0].NextRecurringDate)
	}

	limited, err := s.DueRecurringTransactions(ctx, core.NewDate(2024, 12, 31), 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limit not applied: %d, %v", len(limited), err)
	}

	list, err := s.ListTransactions(ctx, a.OwnerID, a.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 3 || list[0].Date.String() != "2024-02-05" {
		t.Errorf("list not newest first: %d items", len(list))
	}
}

func testBalanceBounds(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	owner := newOwner()
	a := SeedAccount(t, s, owner, "9999999999990.00", true)
	low := SeedAccount(t, s, owner, "-9999999999999.00", false)

	apply := func(accountID, delta string) error {
		return s.WithTx(ctx, func(tx storage.LedgerTx) error {
			return tx.ApplyBalanceDelta(ctx, accountID, mustDec(delta))
		})
	}

	if err := apply(a.ID, "9.99"); err != nil {
		t.Fatalf("delta up to the limit: %v", err)
	}
	if err := apply(a.ID, "0.01"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("delta past the limit: got %v, want ErrInvalidAmount", err)
	}
	if err := apply(low.ID, "-1.00"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("delta below the negative limit: got %v, want ErrInvalidAmount", err)
	}
	if err := apply(uuid.NewString(), "1.00"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("unknown account: got %v, want ErrAccountNotFound", err)
	}

	got, err := s.GetAccount(ctx, owner, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Balance.Equal(core.MaxAmount) {
		t.Errorf("balance = %s, want %s", got.Balance, core.MaxAmount)
	}
	if r, err := s.ReconcileAccount(ctx, low.ID); err != nil || !r.StoredBalance.Equal(mustDec("-9999999999999.00")) {
		t.Errorf("low account after rejected delta = %+v, %v", r, err)
	}
}

func testConcurrentLedgerWrites(t *testing.T, s storage.LedgerStore) {
	const (
		creates = 20
		updates = 10
	)
	ctx := context.Background()
	owner := newOwner()
	svc := services.NewLedgerService(s, nil)

	acc, err := svc.CreateAccount(ctx, owner, core.AccountInput{
		Name:           "Shared",
		Type:           core.Current,
		OpeningBalance: mustDec("100.00"),
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	in := func(typ core.TransactionType, amount string) core.TransactionInput {
		return core.TransactionInput{
			AccountID: acc.ID,
			Amount:    mustDec(amount),
			Type:      typ,
			Date:      core.NewDate(2024, 5, 1),
			Category:  "groceries",
		}
	}

	var existing []core.Transaction
	for i := 0; i < updates; i++ {
		tr, err := svc.CreateTransaction(ctx, owner, in(core.Expense, "2.00"))
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		existing = append(existing, tr)
	}

	var g errgroup.Group
	for i := 0; i < creates; i++ {
		g.Go(func() error {
			_, err := svc.CreateTransaction(ctx, owner, in(core.Income, "1.00"))
			return err
		})
	}
	for _, tr := range existing {
		g.Go(func() error {
			_, err := svc.UpdateTransaction(ctx, owner, tr.ID, in(core.Income, "2.00"))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent writes: %v", err)
	}

	// 100 - 10*2 + 20*1, then each update swings 2.00 of expense to income.
	got, err := svc.GetAccount(ctx, owner, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Balance.Equal(mustDec("140.00")) {
		t.Errorf("balance = %s, want 140.00", got.Balance)
	}
	r, err := s.ReconcileAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("ReconcileAccount: %v", err)
	}
	if !r.Consistent() || r.Transactions != creates+updates {
		t.Errorf("reconciliation = %+v", r)
	}
}
