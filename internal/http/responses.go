package http

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// Amounts are written as JSON numbers carrying the exact two-decimal text,
// never through float64.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(core.MoneyScale))
}

func optionalDate(d *core.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

type accountResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	OpeningBalance json.Number `json:"opening_balance"`
	Balance        json.Number `json:"balance"`
	IsDefault      bool        `json:"is_default"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func newAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		OpeningBalance: money(a.OpeningBalance),
		Balance:        money(a.Balance),
		IsDefault:      a.IsDefault,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type transactionResponse struct {
	ID                string      `json:"id"`
	AccountID         string      `json:"account_id"`
	Amount            json.Number `json:"amount"`
	Type              string      `json:"type"`
	Date              string      `json:"date"`
	IsRecurring       bool        `json:"is_recurring"`
	RecurringInterval *string     `json:"recurring_interval,omitempty"`
	NextRecurringDate *string     `json:"next_recurring_date,omitempty"`
	LastProcessed     *string     `json:"last_processed,omitempty"`
	Description       string      `json:"description"`
	Category          string      `json:"category"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Amount:            money(t.Amount),
		Type:              string(t.Type),
		Date:              t.Date.String(),
		IsRecurring:       t.IsRecurring,
		NextRecurringDate: optionalDate(t.NextRecurringDate),
		LastProcessed:     optionalDate(t.LastProcessed),
		Description:       t.Description,
		Category:          t.Category,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.RecurringInterval != nil {
		s := string(*t.RecurringInterval)
		resp.RecurringInterval = &s
	}
	return resp
}

type receiptResponse struct {
	Recognised   bool        `json:"recognised"`
	Amount       json.Number `json:"amount"`
	Date         string      `json:"date,omitempty"`
	Description  string      `json:"description"`
	MerchantName string      `json:"merchant_name"`
	Category     string      `json:"category"`
}

func newReceiptResponse(r core.Receipt) receiptResponse {
	resp := receiptResponse{
		Recognised:   !r.IsEmpty(),
		Amount:       money(r.Amount),
		Description:  r.Description,
		MerchantName: r.MerchantName,
		Category:     r.Category,
	}
	if !r.Date.IsZero() {
		resp.Date = r.Date.String()
	}
	return resp
}
