package sqlite

import (
	"database/sql"
)

type Account struct {
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

type Transaction struct {
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
