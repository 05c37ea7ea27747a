// Package storage defines the ledger's persistence ports. Implementations
// live in the sqlite, postgres and memory subpackages.
package storage

import (
	"context"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// Ports for ledger persistence.
type (
	// LedgerTx is the view of the store inside one atomic unit of work.
	// Every method must run against the same underlying transaction.
	LedgerTx interface {
		// FindOwnedAccount returns core.ErrAccountNotFound when the account
		// does not exist or belongs to another owner. Implementations lock the
		// row (or equivalent) until the transaction ends.
		FindOwnedAccount(ctx context.Context, ownerID, accountID string) (core.Account, error)

		// FindOwnedTransaction returns core.ErrTransactionNotFound when the
		// transaction does not exist or belongs to another owner.
		FindOwnedTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error)

		InsertTransaction(ctx context.Context, t core.Transaction) error

		// UpdateTransaction replaces every mutable field of t.ID.
		UpdateTransaction(ctx context.Context, t core.Transaction) error

		// ApplyBalanceDelta performs balance = balance + delta in place.
		ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error

		// AdvanceRecurrence moves a recurring transaction's next date from
		// expected to next, recording processedOn. It reports false when the
		// stored next date no longer equals expected.
		AdvanceRecurrence(ctx context.Context, transactionID string, expected core.Date, next *core.Date, processedOn core.Date) (bool, error)
	}

	LedgerStore interface {
		// WithTx runs fn in one atomic unit of work. When fn returns an error
		// or the commit fails, nothing fn did is observable afterwards.
		WithTx(ctx context.Context, fn func(tx LedgerTx) error) error

		GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error)
		ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error)

		// DueRecurringTransactions lists recurring transactions of any owner
		// whose next date is on or before asOf, oldest first.
		DueRecurringTransactions(ctx context.Context, asOf core.Date, limit int) ([]core.Transaction, error)

		// CreateAccount inserts a. When a.IsDefault is set, the owner's other
		// accounts lose the flag in the same unit of work.
		CreateAccount(ctx context.Context, a core.Account) error
		GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error)
		ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
		CountAccounts(ctx context.Context, ownerID string) (int64, error)

		ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error)

		Ping(ctx context.Context) error
		Close() error
	}
)
