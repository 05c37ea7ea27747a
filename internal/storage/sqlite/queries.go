package sqlite

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries runs the statements listed in queries.sql.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

const accountColumns = `id, owner_id, name, type, opening_balance_cents, balance_cents, is_default, created_at, updated_at`

const transactionColumns = `id, owner_id, account_id, amount_cents, type, date, is_recurring, recurring_interval, next_recurring_date, last_processed, description, category, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Name,
		&i.Type,
		&i.OpeningBalanceCents,
		&i.BalanceCents,
		&i.IsDefault,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.AccountID,
		&i.AmountCents,
		&i.Type,
		&i.Date,
		&i.IsRecurring,
		&i.RecurringInterval,
		&i.NextRecurringDate,
		&i.LastProcessed,
		&i.Description,
		&i.Category,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :exec
INSERT INTO accounts (` + accountColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateAccountParams struct {
	ID                  string
	OwnerID             string
	Name                string
	Type                string
	OpeningBalanceCents int64
	BalanceCents        int64
	IsDefault           bool
	CreatedAt           string
	UpdatedAt           string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		arg.ID,
		arg.OwnerID,
		arg.Name,
		arg.Type,
		arg.OpeningBalanceCents,
		arg.BalanceCents,
		arg.IsDefault,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const clearDefaultAccounts = `-- name: ClearDefaultAccounts :exec
UPDATE accounts SET is_default = 0, updated_at = ? WHERE owner_id = ? AND is_default = 1
`

type ClearDefaultAccountsParams struct {
	UpdatedAt string
	OwnerID   string
}

func (q *Queries) ClearDefaultAccounts(ctx context.Context, arg ClearDefaultAccountsParams) error {
	_, err := q.db.ExecContext(ctx, clearDefaultAccounts, arg.UpdatedAt, arg.OwnerID)
	return err
}

const getOwnedAccount = `-- name: GetOwnedAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = ? AND owner_id = ?
`

type GetOwnedAccountParams struct {
	ID      string
	OwnerID string
}

func (q *Queries) GetOwnedAccount(ctx context.Context, arg GetOwnedAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, getOwnedAccount, arg.ID, arg.OwnerID)
	return scanAccount(row)
}

const getAccount = `-- name: GetAccount :one
SELECT ` + accountColumns + ` FROM accounts WHERE id = ?
`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccount, id)
	return scanAccount(row)
}

const listAccountsByOwner = `-- name: ListAccountsByOwner :many
SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = ? ORDER BY created_at, id
`

func (q *Queries) ListAccountsByOwner(ctx context.Context, ownerID string) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		i, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAccountsByOwner = `-- name: CountAccountsByOwner :one
SELECT COUNT(*) FROM accounts WHERE owner_id = ?
`

func (q *Queries) CountAccountsByOwner(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAccountsByOwner, ownerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const addAccountBalance = `-- name: AddAccountBalance :execrows
UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ?
WHERE id = ? AND balance_cents + ? BETWEEN ? AND ?
`

type AddAccountBalanceParams struct {
	DeltaCents int64
	UpdatedAt  string
	ID         string
	MinCents   int64
	MaxCents   int64
}

func (q *Queries) AddAccountBalance(ctx context.Context, arg AddAccountBalanceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, addAccountBalance,
		arg.DeltaCents, arg.UpdatedAt, arg.ID, arg.DeltaCents, arg.MinCents, arg.MaxCents)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const accountExists = `-- name: AccountExists :one
SELECT COUNT(*) FROM accounts WHERE id = ?
`

func (q *Queries) AccountExists(ctx context.Context, id string) (bool, error) {
	row := q.db.QueryRowContext(ctx, accountExists, id)
	var n int64
	err := row.Scan(&n)
	return n > 0, err
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTransactionParams struct {
	ID                string
	OwnerID           string
	AccountID         string
	AmountCents       int64
	Type              string
	Date              string
	IsRecurring       bool
	RecurringInterval sql.NullString
	NextRecurringDate sql.NullString
	LastProcessed     sql.NullString
	Description       string
	Category          string
	CreatedAt         string
	UpdatedAt         string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.OwnerID,
		arg.AccountID,
		arg.AmountCents,
		arg.Type,
		arg.Date,
		arg.IsRecurring,
		arg.RecurringInterval,
		arg.NextRecurringDate,
		arg.LastProcessed,
		arg.Description,
		arg.Category,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateTransaction = `-- name: UpdateTransaction :execrows
UPDATE transactions
SET account_id = ?, amount_cents = ?, type = ?, date = ?, is_recurring = ?,
    recurring_interval = ?, next_recurring_date = ?, last_processed = ?,
    description = ?, category = ?, updated_at = ?
WHERE id = ?
`

type UpdateTransactionParams struct {
	AccountID         string
	AmountCents       int64
	Type              string
	Date              string
	IsRecurring       bool
	RecurringInterval sql.NullString
	NextRecurringDate sql.NullString
	LastProcessed     sql.NullString
	Description       string
	Category          string
	UpdatedAt         string
	ID                string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransaction,
		arg.AccountID,
		arg.AmountCents,
		arg.Type,
		arg.Date,
		arg.IsRecurring,
		arg.RecurringInterval,
		arg.NextRecurringDate,
		arg.LastProcessed,
		arg.Description,
		arg.Category,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getOwnedTransaction = `-- name: GetOwnedTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND owner_id = ?
`

type GetOwnedTransactionParams struct {
	ID      string
	OwnerID string
}

func (q *Queries) GetOwnedTransaction(ctx context.Context, arg GetOwnedTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getOwnedTransaction, arg.ID, arg.OwnerID)
	return scanTransaction(row)
}

const listTransactionsByAccount = `-- name: ListTransactionsByAccount :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE owner_id = ? AND account_id = ?
ORDER BY date DESC, created_at DESC
LIMIT ?
`

type ListTransactionsByAccountParams struct {
	OwnerID   string
	AccountID string
	Limit     int64
}

func (q *Queries) ListTransactionsByAccount(ctx context.Context, arg ListTransactionsByAccountParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByAccount, arg.OwnerID, arg.AccountID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const listDueRecurring = `-- name: ListDueRecurring :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE is_recurring = 1 AND next_recurring_date IS NOT NULL AND next_recurring_date <= ?
ORDER BY next_recurring_date, id
LIMIT ?
`

type ListDueRecurringParams struct {
	AsOf  string
	Limit int64
}

func (q *Queries) ListDueRecurring(ctx context.Context, arg ListDueRecurringParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listDueRecurring, arg.AsOf, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const advanceRecurrence = `-- name: AdvanceRecurrence :execrows
UPDATE transactions
SET next_recurring_date = ?, last_processed = ?, updated_at = ?
WHERE id = ? AND next_recurring_date = ?
`

type AdvanceRecurrenceParams struct {
	NextRecurringDate sql.NullString
	LastProcessed     sql.NullString
	UpdatedAt         string
	ID                string
	Expected          string
}

func (q *Queries) AdvanceRecurrence(ctx context.Context, arg AdvanceRecurrenceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, advanceRecurrence,
		arg.NextRecurringDate,
		arg.LastProcessed,
		arg.UpdatedAt,
		arg.ID,
		arg.Expected,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionExists = `-- name: TransactionExists :one
SELECT COUNT(*) FROM transactions WHERE id = ?
`

func (q *Queries) TransactionExists(ctx context.Context, id string) (bool, error) {
	row := q.db.QueryRowContext(ctx, transactionExists, id)
	var n int64
	err := row.Scan(&n)
	return n > 0, err
}

const sumLedger = `-- name: SumLedger :one
SELECT
    COALESCE(SUM(CASE WHEN type = 'INCOME' THEN amount_cents ELSE -amount_cents END), 0),
    COUNT(*)
FROM transactions WHERE account_id = ?
`

type SumLedgerRow struct {
	SumCents int64
	Count    int64
}

func (q *Queries) SumLedger(ctx context.Context, accountID string) (SumLedgerRow, error) {
	row := q.db.QueryRowContext(ctx, sumLedger, accountID)
	var i SumLedgerRow
	err := row.Scan(&i.SumCents, &i.Count)
	return i, err
}
