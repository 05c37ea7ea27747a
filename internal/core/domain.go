package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Interval = "DAILY"
	Weekly  Interval = "WEEKLY"
	Monthly Interval = "MONTHLY"
	Yearly  Interval = "YEARLY"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

const dateLayout = "2006-01-02"

type (
	Interval        string
	TransactionType string
	AccountType     string

	Date struct {
		time.Time
	}

	Account struct {
		ID             string
		OwnerID        string
		Name           string
		Type           AccountType
		OpeningBalance decimal.Decimal
		Balance        decimal.Decimal
		IsDefault      bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Transaction struct {
		ID                string
		OwnerID           string
		AccountID         string
		Amount            decimal.Decimal
		Type              TransactionType
		Date              Date
		IsRecurring       bool
		RecurringInterval *Interval
		NextRecurringDate *Date
		LastProcessed     *Date
		Description       string
		Category          string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// TransactionInput carries the caller-editable fields of a transaction.
	// Update replaces all of them.
	TransactionInput struct {
		AccountID         string
		Amount            decimal.Decimal
		Type              TransactionType
		Date              Date
		IsRecurring       bool
		RecurringInterval *Interval
		Description       string
		Category          string
	}

	AccountInput struct {
		Name           string
		Type           AccountType
		OpeningBalance decimal.Decimal
		IsDefault      bool
	}

	// Reconciliation compares an account's stored balance with the balance
	// derived from its ledger.
	Reconciliation struct {
		AccountID      string
		OpeningBalance decimal.Decimal
		StoredBalance  decimal.Decimal
		LedgerSum      decimal.Decimal
		Transactions   int64
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Valid reports whether i is one of the known intervals.
func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t AccountType) Valid() bool {
	return t == Current || t == Savings
}

// Signed returns the amount as it affects an account balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// HasSchedule reports whether the transaction carries a next occurrence.
func (in TransactionInput) HasSchedule() bool {
	return in.IsRecurring && in.RecurringInterval != nil
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return ErrAccountNotFound
	}
	if err := ValidateAmount(in.Amount); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if in.RecurringInterval != nil && !in.RecurringInterval.Valid() {
		return ErrInvalidInterval
	}
	if len(in.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !in.Type.Valid() {
		return ErrInvalidAccountType
	}
	if !in.OpeningBalance.Equal(in.OpeningBalance.Round(MoneyScale)) {
		return ErrInvalidAmount
	}
	if in.OpeningBalance.Abs().GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Drift is StoredBalance minus the balance the ledger implies.
func (r Reconciliation) Drift() decimal.Decimal {
	return r.StoredBalance.Sub(r.OpeningBalance.Add(r.LedgerSum))
}

// Consistent reports whether the stored balance matches the ledger.
func (r Reconciliation) Consistent() bool {
	return r.Drift().IsZero()
}
