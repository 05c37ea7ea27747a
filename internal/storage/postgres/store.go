// Package postgres is a LedgerStore backed by PostgreSQL through lib/pq.
// Amounts live in NUMERIC(15,2) columns and round-trip as decimals.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Ensure interface conformance
var (
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.LedgerTx    = (*ledgerTx)(nil)
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

// Open connects to dsn, applies migrations and returns a ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{q: tx, lock: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	return (&ledgerTx{q: s.db}).FindOwnedTransaction(ctx, ownerID, transactionID)
}

func (s *Store) ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE owner_id = $1 AND account_id = $2
		ORDER BY date DESC, created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, ownerID, accountID, pgLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) DueRecurringTransactions(ctx context.Context, asOf core.Date, limit int) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE is_recurring AND next_recurring_date IS NOT NULL AND next_recurring_date <= $1
		ORDER BY next_recurring_date, id
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, asOf.String(), pgLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if a.IsDefault {
		const clear = `UPDATE accounts SET is_default = FALSE, updated_at = $1 WHERE owner_id = $2 AND is_default`
		if _, err := tx.ExecContext(ctx, clear, a.CreatedAt, a.OwnerID); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
	}

	const insert = `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, insert,
		a.ID, a.OwnerID, a.Name, string(a.Type), a.OpeningBalance, a.Balance,
		a.IsDefault, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	return (&ledgerTx{q: s.db}).FindOwnedAccount(ctx, ownerID, accountID)
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) CountAccounts(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (s *Store) ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error) {
	const query = `
		SELECT a.id, a.opening_balance, a.balance,
		       COALESCE(SUM(CASE WHEN t.type = 'INCOME' THEN t.amount ELSE -t.amount END), 0),
		       COUNT(t.id)
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id, a.opening_balance, a.balance`

	var r core.Reconciliation
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&r.AccountID, &r.OpeningBalance, &r.StoredBalance, &r.LedgerSum, &r.Transactions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Reconciliation{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("reconcile account: %w", err)
	}
	return r, nil
}

type ledgerTx struct {
	q querier
	// lock adds FOR UPDATE to owned-account lookups.
	lock bool
}

func (t *ledgerTx) FindOwnedAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND owner_id = $2`
	if t.lock {
		query += ` FOR UPDATE`
	}

	a, err := scanAccount(t.q.QueryRowContext(ctx, query, accountID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (t *ledgerTx) FindOwnedTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND owner_id = $2`
	if t.lock {
		query += ` FOR UPDATE`
	}

	tr, err := scanTransaction(t.q.QueryRowContext(ctx, query, transactionID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tr, nil
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tr core.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := t.q.ExecContext(ctx, query,
		tr.ID, tr.OwnerID, tr.AccountID, tr.Amount, string(tr.Type), tr.Date.String(),
		tr.IsRecurring, nullInterval(tr.RecurringInterval), nullDate(tr.NextRecurringDate),
		nullDate(tr.LastProcessed), tr.Description, tr.Category, tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	const query = `UPDATE transactions
		SET account_id = $1, amount = $2, type = $3, date = $4, is_recurring = $5,
		    recurring_interval = $6, next_recurring_date = $7, last_processed = $8,
		    description = $9, category = $10, updated_at = $11
		WHERE id = $12`

	res, err := t.q.ExecContext(ctx, query,
		tr.AccountID, tr.Amount, string(tr.Type), tr.Date.String(), tr.IsRecurring,
		nullInterval(tr.RecurringInterval), nullDate(tr.NextRecurringDate), nullDate(tr.LastProcessed),
		tr.Description, tr.Category, tr.UpdatedAt, tr.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = balance + $1, updated_at = $2
		WHERE id = $3 AND balance + $1 BETWEEN $4 AND $5`

	res, err := t.q.ExecContext(ctx, query, delta, time.Now().UTC(), accountID, core.MaxAmount.Neg(), core.MaxAmount)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := t.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return core.ErrAccountNotFound
	}
	return core.ErrBalanceOutOfRange
}

func (t *ledgerTx) AdvanceRecurrence(ctx context.Context, transactionID string, expected core.Date, next *core.Date, processedOn core.Date) (bool, error) {
	const query = `UPDATE transactions
		SET next_recurring_date = $1, last_processed = $2, updated_at = $3
		WHERE id = $4 AND next_recurring_date = $5`

	res, err := t.q.ExecContext(ctx, query,
		nullDate(next), processedOn.String(), time.Now().UTC(), transactionID, expected.String(),
	)
	if err != nil {
		return false, fmt.Errorf("advance recurrence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance recurrence: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := t.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, transactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	if !exists {
		return false, core.ErrTransactionNotFound
	}
	return false, nil
}
