package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

const (
	// OwnerHeader carries the authenticated owner, set by the auth proxy.
	OwnerHeader = "X-Owner-ID"

	maxJSONBody = 1 << 20
	maxOwnerLen = 128
)

var errBadRequest = errors.New("malformed request body")

type accountRequest struct {
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	OpeningBalance json.Number `json:"opening_balance"`
	IsDefault      bool        `json:"is_default"`
}

type transactionRequest struct {
	AccountID         string      `json:"account_id"`
	Amount            json.Number `json:"amount"`
	Type              string      `json:"type"`
	Date              string      `json:"date"`
	IsRecurring       bool        `json:"is_recurring"`
	RecurringInterval *string     `json:"recurring_interval"`
	Description       string      `json:"description"`
	Category          string      `json:"category"`
}

// decodeJSON reads one JSON object into v. Unknown fields and trailing data
// are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// parseAmount accepts a plain decimal number with at most two fractional
// digits. A missing amount is zero when allowEmpty is set.
func parseAmount(n json.Number, allowEmpty bool) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		if allowEmpty {
			return decimal.Zero, nil
		}
		return decimal.Decimal{}, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal number", core.ErrInvalidAmount, s)
	}
	if err := core.ValidateAmount(d); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", err, s)
	}
	return d, nil
}

func (req accountRequest) toInput() (core.AccountInput, error) {
	opening, err := parseAmount(req.OpeningBalance, true)
	if err != nil {
		return core.AccountInput{}, err
	}
	return core.AccountInput{
		Name:           strings.TrimSpace(req.Name),
		Type:           core.AccountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		OpeningBalance: opening,
		IsDefault:      req.IsDefault,
	}, nil
}

func (req transactionRequest) toInput() (core.TransactionInput, error) {
	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrInvalidInput)
	}

	in := core.TransactionInput{
		AccountID:   strings.TrimSpace(req.AccountID),
		Amount:      amount,
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Date:        date,
		IsRecurring: req.IsRecurring,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
	}
	if req.RecurringInterval != nil && strings.TrimSpace(*req.RecurringInterval) != "" {
		interval := core.Interval(strings.ToUpper(strings.TrimSpace(*req.RecurringInterval)))
		in.RecurringInterval = &interval
	}
	return in, nil
}

// parseLimit reads the optional limit query parameter. Zero means the
// service default.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", core.ErrInvalidInput)
	}
	return n, nil
}

// ownerID returns the trimmed owner header, or "" when it is missing or
// not a plausible identifier.
func ownerID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if id == "" || len(id) > maxOwnerLen {
		return ""
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}
