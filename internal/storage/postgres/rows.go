package postgres

import (
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

const accountColumns = `id, owner_id, name, type, opening_balance, balance, is_default, created_at, updated_at`

const transactionColumns = `id, owner_id, account_id, amount, type, date, is_recurring, recurring_interval, next_recurring_date, last_processed, description, category, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (core.Account, error) {
	var (
		a     core.Account
		aType string
	)
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Name, &aType, &a.OpeningBalance, &a.Balance,
		&a.IsDefault, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(aType)
	return a, nil
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		tType    string
		date     sql.NullTime
		interval sql.NullString
		next     sql.NullTime
		last     sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.AccountID, &t.Amount, &tType, &date,
		&t.IsRecurring, &interval, &next, &last,
		&t.Description, &t.Category, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	if !date.Valid {
		return core.Transaction{}, fmt.Errorf("transaction %s has no date", t.ID)
	}

	t.Type = core.TransactionType(tType)
	t.Date = core.DateOf(date.Time)
	if interval.Valid {
		iv := core.Interval(interval.String)
		t.RecurringInterval = &iv
	}
	t.NextRecurringDate = fromNullTime(next)
	t.LastProcessed = fromNullTime(last)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func fromNullTime(n sql.NullTime) *core.Date {
	if !n.Valid {
		return nil
	}
	d := core.DateOf(n.Time)
	return &d
}

// nullDate passes dates as YYYY-MM-DD text so the session time zone cannot
// shift the stored day.
func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInterval(i *core.Interval) sql.NullString {
	if i == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*i), Valid: true}
}

// pgLimit maps a non-positive limit to LIMIT ALL.
func pgLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
