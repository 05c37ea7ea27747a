package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// EventPublisher receives ledger events after their changes have committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event core.LedgerEvent) error
}

// LedgerService keeps account balances consistent with their transactions.
// Every balance change it makes commits in the same storage transaction as
// the ledger row that causes it.
type LedgerService struct {
	store  storage.LedgerStore
	events EventPublisher
	now    func() time.Time
	newID  func() string
}

// NewLedgerService creates a service over store. events may be nil.
func NewLedgerService(store storage.LedgerStore, events EventPublisher) *LedgerService {
	return &LedgerService{
		store:  store,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// persistenceError passes domain errors through and marks everything else as
// a storage fault. Nothing is retried.
func persistenceError(op string, err error) error {
	if err == nil || core.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistenceFailure, op, err)
}

// CreateTransaction records a new transaction and applies its delta to the
// owning account.
func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	delta, err := DeltaForCreate(in.Type, in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	next, err := nextRecurringDate(in)
	if err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	t := core.Transaction{
		ID:        s.newID(),
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	applyInput(&t, in, next, now)

	err = s.store.WithTx(ctx, func(tx storage.LedgerTx) error {
		if _, err := tx.FindOwnedAccount(ctx, ownerID, in.AccountID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		return tx.ApplyBalanceDelta(ctx, in.AccountID, delta)
	})
	if err != nil {
		return core.Transaction{}, persistenceError("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount", t.Amount.StringFixed(core.MoneyScale),
		"delta", delta.StringFixed(core.MoneyScale),
		"recurring", t.IsRecurring)

	s.publish(ctx, core.EventTransactionCreated, t, t.AccountID)
	return t, nil
}

// UpdateTransaction replaces the mutable fields of an existing transaction.
// When the account is unchanged the account receives signed(new)-signed(old).
// When the transaction moves, the source account gets the old effect
// reversed and the destination gets the new effect, in one commit.
func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID, transactionID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := signedAmount(in.Type, in.Amount); err != nil {
		return core.Transaction{}, err
	}
	next, err := nextRecurringDate(in)
	if err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	var (
		updated  core.Transaction
		deltas   map[string]decimal.Decimal
		accounts []string
	)
	err = s.store.WithTx(ctx, func(tx storage.LedgerTx) error {
		old, err := tx.FindOwnedTransaction(ctx, ownerID, transactionID)
		if err != nil {
			return err
		}
		deltas, err = balanceDeltas(old, in)
		if err != nil {
			return err
		}

		// Lock accounts in a stable order.
		accounts = sortedKeys(deltas)
		for _, id := range accounts {
			if _, err := tx.FindOwnedAccount(ctx, ownerID, id); err != nil {
				return err
			}
		}

		updated = old
		applyInput(&updated, in, next, now)
		if sameSchedule(old, in) {
			// Keep the processor's progress on an unchanged schedule.
			updated.NextRecurringDate = old.NextRecurringDate
		} else {
			updated.LastProcessed = nil
		}
		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}

		for _, id := range accounts {
			if deltas[id].IsZero() {
				continue
			}
			if err := tx.ApplyBalanceDelta(ctx, id, deltas[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, persistenceError("update transaction", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", updated.ID,
		"account_id", updated.AccountID,
		"type", updated.Type,
		"amount", updated.Amount.StringFixed(core.MoneyScale),
		"accounts_rebalanced", len(accounts))
	for _, id := range accounts {
		slog.DebugContext(ctx, "Account rebalanced",
			log.NewFields().WithDelta(id, deltas[id]).ToSlice()...)
	}

	s.publish(ctx, core.EventTransactionUpdated, updated, accounts...)
	return updated, nil
}

// GetTransaction returns core.ErrTransactionNotFound when the transaction is
// missing or belongs to another owner.
func (s *LedgerService) GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		return core.Transaction{}, persistenceError("get transaction", err)
	}
	return t, nil
}

// ListTransactions lists an owned account's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error) {
	if _, err := s.GetAccount(ctx, ownerID, accountID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	list, err := s.store.ListTransactions(ctx, ownerID, accountID, limit)
	if err != nil {
		return nil, persistenceError("list transactions", err)
	}
	return list, nil
}

// CreateAccount opens an account whose balance starts at the opening
// balance. An owner's first account is always the default one.
func (s *LedgerService) CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (core.Account, error) {
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	n, err := s.store.CountAccounts(ctx, ownerID)
	if err != nil {
		return core.Account{}, persistenceError("count accounts", err)
	}

	now := s.now().UTC()
	a := core.Account{
		ID:             s.newID(),
		OwnerID:        ownerID,
		Name:           in.Name,
		Type:           in.Type,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
		IsDefault:      in.IsDefault || n == 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, persistenceError("create account", err)
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID,
		"type", a.Type,
		"opening_balance", a.OpeningBalance.StringFixed(core.MoneyScale),
		"is_default", a.IsDefault)
	return a, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return core.Account{}, persistenceError("get account", err)
	}
	return a, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	list, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, persistenceError("list accounts", err)
	}
	return list, nil
}

// ReconcileAccount compares an account's stored balance with its ledger.
func (s *LedgerService) ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error) {
	r, err := s.store.ReconcileAccount(ctx, accountID)
	if err != nil {
		return core.Reconciliation{}, persistenceError("reconcile account", err)
	}
	return r, nil
}

// DueRecurringTransactions lists recurring templates due on or before asOf.
func (s *LedgerService) DueRecurringTransactions(ctx context.Context, asOf core.Date, limit int) ([]core.Transaction, error) {
	list, err := s.store.DueRecurringTransactions(ctx, asOf, limit)
	if err != nil {
		return nil, persistenceError("list due recurring transactions", err)
	}
	return list, nil
}

// ProcessRecurrence books one occurrence of a recurring template: it inserts
// a non-recurring copy dated on the occurrence, applies its delta and moves
// the template's next date forward, all in one commit. The template is
// reloaded inside the unit of work, so edits made after it was listed are
// booked. It returns core.ErrRecurrenceNotDue when the template's next date
// is no longer occurrence, which happens when another run got there first.
func (s *LedgerService) ProcessRecurrence(ctx context.Context, template core.Transaction, occurrence core.Date) (core.Transaction, error) {
	if template.RecurringInterval == nil {
		return core.Transaction{}, core.ErrInvalidInterval
	}

	now := s.now().UTC()
	var child core.Transaction
	err := s.store.WithTx(ctx, func(tx storage.LedgerTx) error {
		current, err := tx.FindOwnedTransaction(ctx, template.OwnerID, template.ID)
		if err != nil {
			return err
		}
		if current.NextRecurringDate == nil || !current.NextRecurringDate.Equal(occurrence.Time) {
			return core.ErrRecurrenceNotDue
		}
		if current.RecurringInterval == nil {
			return core.ErrInvalidInterval
		}
		next, err := OccurrenceAfter(current.Date, occurrence, *current.RecurringInterval)
		if err != nil {
			return err
		}
		delta, err := DeltaForCreate(current.Type, current.Amount)
		if err != nil {
			return err
		}

		advanced, err := tx.AdvanceRecurrence(ctx, current.ID, occurrence, &next, core.DateOf(now))
		if err != nil {
			return err
		}
		if !advanced {
			return core.ErrRecurrenceNotDue
		}
		if _, err := tx.FindOwnedAccount(ctx, current.OwnerID, current.AccountID); err != nil {
			return err
		}

		child = core.Transaction{
			ID:          s.newID(),
			OwnerID:     current.OwnerID,
			AccountID:   current.AccountID,
			Amount:      current.Amount,
			Type:        current.Type,
			Date:        occurrence,
			Description: current.Description,
			Category:    current.Category,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertTransaction(ctx, child); err != nil {
			return err
		}
		return tx.ApplyBalanceDelta(ctx, current.AccountID, delta)
	})
	if err != nil {
		return core.Transaction{}, persistenceError("process recurrence", err)
	}

	s.publish(ctx, core.EventTransactionRecurred, child, child.AccountID)
	return child, nil
}

func (s *LedgerService) publish(ctx context.Context, typ core.LedgerEventType, t core.Transaction, accountIDs ...string) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "type", typ)
		return
	}
	event := core.LedgerEvent{
		Type:          typ,
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		AccountIDs:    accountIDs,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.PublishLedgerEvent(ctx, event); err != nil {
		// The change is committed; only the notification is lost.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", typ,
			"transaction_id", t.ID,
			"error", err)
	}
}

func applyInput(t *core.Transaction, in core.TransactionInput, next *core.Date, now time.Time) {
	t.AccountID = in.AccountID
	t.Amount = in.Amount
	t.Type = in.Type
	t.Date = in.Date
	t.IsRecurring = in.IsRecurring
	t.RecurringInterval = in.RecurringInterval
	t.NextRecurringDate = next
	t.Description = in.Description
	t.Category = in.Category
	t.UpdatedAt = now
}

// sameSchedule reports whether in keeps old's recurrence anchor, interval
// and recurring flag.
func sameSchedule(old core.Transaction, in core.TransactionInput) bool {
	if old.IsRecurring != in.IsRecurring || !old.Date.Equal(in.Date.Time) {
		return false
	}
	switch {
	case old.RecurringInterval == nil && in.RecurringInterval == nil:
		return true
	case old.RecurringInterval == nil || in.RecurringInterval == nil:
		return false
	}
	return *old.RecurringInterval == *in.RecurringInterval
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
