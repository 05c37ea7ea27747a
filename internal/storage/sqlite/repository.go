// Package sqlite is the default LedgerStore, backed by modernc.org/sqlite.
// Amounts are stored as integer cents, dates as YYYY-MM-DD text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// Ensure interface conformance
var (
	_ storage.LedgerStore = (*Repository)(nil)
	_ storage.LedgerTx    = (*ledgerTx)(nil)
)

type Repository struct {
	db      *sql.DB
	queries *Queries
}

// DSN adds the connection options the ledger relies on to a database path:
// enforced foreign keys, a busy timeout, and write-locking transactions.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(storage.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{q: r.queries.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	return (&ledgerTx{q: r.queries}).FindOwnedTransaction(ctx, ownerID, transactionID)
}

func (r *Repository) ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByAccount(ctx, ListTransactionsByAccountParams{
		OwnerID:   ownerID,
		AccountID: accountID,
		Limit:     sqlLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toTransactions(rows)
}

func (r *Repository) DueRecurringTransactions(ctx context.Context, asOf core.Date, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListDueRecurring(ctx, ListDueRecurringParams{
		AsOf:  asOf.Format(dateLayout),
		Limit: sqlLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	return toTransactions(rows)
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	opening, err := core.ToCents(a.OpeningBalance)
	if err != nil {
		return err
	}
	balance, err := core.ToCents(a.Balance)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if a.IsDefault {
		if err := q.ClearDefaultAccounts(ctx, ClearDefaultAccountsParams{
			UpdatedAt: formatTimestamp(a.CreatedAt),
			OwnerID:   a.OwnerID,
		}); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
	}
	if err := q.CreateAccount(ctx, CreateAccountParams{
		ID:                  a.ID,
		OwnerID:             a.OwnerID,
		Name:                a.Name,
		Type:                string(a.Type),
		OpeningBalanceCents: opening,
		BalanceCents:        balance,
		IsDefault:           a.IsDefault,
		CreatedAt:           formatTimestamp(a.CreatedAt),
		UpdatedAt:           formatTimestamp(a.UpdatedAt),
	}); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	return (&ledgerTx{q: r.queries}).FindOwnedAccount(ctx, ownerID, accountID)
}

func (r *Repository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.queries.ListAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := toAccount(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *Repository) CountAccounts(ctx context.Context, ownerID string) (int64, error) {
	n, err := r.queries.CountAccountsByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (r *Repository) ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error) {
	row, err := r.queries.GetAccount(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Reconciliation{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("get account: %w", err)
	}
	sum, err := r.queries.SumLedger(ctx, accountID)
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("sum ledger: %w", err)
	}
	return core.Reconciliation{
		AccountID:      row.ID,
		OpeningBalance: core.FromCents(row.OpeningBalanceCents),
		StoredBalance:  core.FromCents(row.BalanceCents),
		LedgerSum:      core.FromCents(sum.SumCents),
		Transactions:   sum.Count,
	}, nil
}

type ledgerTx struct {
	q *Queries
}

func (t *ledgerTx) FindOwnedAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	row, err := t.q.GetOwnedAccount(ctx, GetOwnedAccountParams{ID: accountID, OwnerID: ownerID})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return toAccount(row)
}

func (t *ledgerTx) FindOwnedTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	row, err := t.q.GetOwnedTransaction(ctx, GetOwnedTransactionParams{ID: transactionID, OwnerID: ownerID})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toTransaction(row)
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tr core.Transaction) error {
	cents, err := core.ToCents(tr.Amount)
	if err != nil {
		return err
	}
	err = t.q.CreateTransaction(ctx, CreateTransactionParams{
		ID:                tr.ID,
		OwnerID:           tr.OwnerID,
		AccountID:         tr.AccountID,
		AmountCents:       cents,
		Type:              string(tr.Type),
		Date:              tr.Date.Format(dateLayout),
		IsRecurring:       tr.IsRecurring,
		RecurringInterval: nullInterval(tr.RecurringInterval),
		NextRecurringDate: nullDate(tr.NextRecurringDate),
		LastProcessed:     nullDate(tr.LastProcessed),
		Description:       tr.Description,
		Category:          tr.Category,
		CreatedAt:         formatTimestamp(tr.CreatedAt),
		UpdatedAt:         formatTimestamp(tr.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	cents, err := core.ToCents(tr.Amount)
	if err != nil {
		return err
	}
	n, err := t.q.UpdateTransaction(ctx, UpdateTransactionParams{
		AccountID:         tr.AccountID,
		AmountCents:       cents,
		Type:              string(tr.Type),
		Date:              tr.Date.Format(dateLayout),
		IsRecurring:       tr.IsRecurring,
		RecurringInterval: nullInterval(tr.RecurringInterval),
		NextRecurringDate: nullDate(tr.NextRecurringDate),
		LastProcessed:     nullDate(tr.LastProcessed),
		Description:       tr.Description,
		Category:          tr.Category,
		UpdatedAt:         formatTimestamp(tr.UpdatedAt),
		ID:                tr.ID,
	})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	cents, err := core.ToCents(delta)
	if err != nil {
		return err
	}
	// The bound keeps balance_cents an integer; past int64 SQLite would
	// silently store a REAL.
	n, err := t.q.AddAccountBalance(ctx, AddAccountBalanceParams{
		DeltaCents: cents,
		UpdatedAt:  formatTimestamp(time.Now()),
		ID:         accountID,
		MinCents:   -core.MaxBalanceCents,
		MaxCents:   core.MaxBalanceCents,
	})
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if n > 0 {
		return nil
	}
	exists, err := t.q.AccountExists(ctx, accountID)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return core.ErrAccountNotFound
	}
	return core.ErrBalanceOutOfRange
}

func (t *ledgerTx) AdvanceRecurrence(ctx context.Context, transactionID string, expected core.Date, next *core.Date, processedOn core.Date) (bool, error) {
	n, err := t.q.AdvanceRecurrence(ctx, AdvanceRecurrenceParams{
		NextRecurringDate: nullDate(next),
		LastProcessed:     nullDate(&processedOn),
		UpdatedAt:         formatTimestamp(time.Now()),
		ID:                transactionID,
		Expected:          expected.Format(dateLayout),
	})
	if err != nil {
		return false, fmt.Errorf("advance recurrence: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	exists, err := t.q.TransactionExists(ctx, transactionID)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	if !exists {
		return false, core.ErrTransactionNotFound
	}
	return false, nil
}

func sqlLimit(limit int) int64 {
	if limit <= 0 {
		return -1 // no limit in SQLite
	}
	return int64(limit)
}

func toAccount(row Account) (core.Account, error) {
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return core.Account{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return core.Account{}, err
	}
	return core.Account{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		Name:           row.Name,
		Type:           core.AccountType(row.Type),
		OpeningBalance: core.FromCents(row.OpeningBalanceCents),
		Balance:        core.FromCents(row.BalanceCents),
		IsDefault:      row.IsDefault,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}

func toTransaction(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", row.Date, err)
	}
	next, err := parseNullDate(row.NextRecurringDate)
	if err != nil {
		return core.Transaction{}, err
	}
	last, err := parseNullDate(row.LastProcessed)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := parseTimestamp(row.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	updated, err := parseTimestamp(row.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		ID:                row.ID,
		OwnerID:           row.OwnerID,
		AccountID:         row.AccountID,
		Amount:            core.FromCents(row.AmountCents),
		Type:              core.TransactionType(row.Type),
		Date:              date,
		IsRecurring:       row.IsRecurring,
		NextRecurringDate: next,
		LastProcessed:     last,
		Description:       row.Description,
		Category:          row.Category,
		CreatedAt:         created,
		UpdatedAt:         updated,
	}
	if row.RecurringInterval.Valid {
		iv := core.Interval(row.RecurringInterval.String)
		t.RecurringInterval = &iv
	}
	return t, nil
}

func toTransactions(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Format(dateLayout), Valid: true}
}

func nullInterval(i *core.Interval) sql.NullString {
	if i == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*i), Valid: true}
}

func parseNullDate(s sql.NullString) (*core.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", s.String, err)
	}
	return &d, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
