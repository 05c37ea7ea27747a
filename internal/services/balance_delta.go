package services

import (
	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// signedAmount applies the ledger sign rule: expenses reduce a balance,
// income increases it.
func signedAmount(typ core.TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	switch typ {
	case core.Expense:
		return amount.Neg(), nil
	case core.Income:
		return amount, nil
	default:
		return decimal.Zero, core.ErrInvalidType
	}
}

// DeltaForCreate returns the balance adjustment for a new transaction.
func DeltaForCreate(typ core.TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	return signedAmount(typ, amount)
}

// DeltaForUpdate returns signed(new) - signed(old), the amount to add to the
// current balance when a transaction changes type or amount in place.
func DeltaForUpdate(oldType core.TransactionType, oldAmount decimal.Decimal, newType core.TransactionType, newAmount decimal.Decimal) (decimal.Decimal, error) {
	oldSigned, err := signedAmount(oldType, oldAmount)
	if err != nil {
		return decimal.Zero, err
	}
	newSigned, err := signedAmount(newType, newAmount)
	if err != nil {
		return decimal.Zero, err
	}
	return newSigned.Sub(oldSigned), nil
}

// balanceDeltas is the set of adjustments one update applies, keyed by
// account ID. A move between accounts reverses the old effect on the source
// account and applies the new one to the destination.
func balanceDeltas(old core.Transaction, in core.TransactionInput) (map[string]decimal.Decimal, error) {
	if old.AccountID == in.AccountID {
		d, err := DeltaForUpdate(old.Type, old.Amount, in.Type, in.Amount)
		if err != nil {
			return nil, err
		}
		return map[string]decimal.Decimal{in.AccountID: d}, nil
	}

	oldSigned, err := signedAmount(old.Type, old.Amount)
	if err != nil {
		return nil, err
	}
	newSigned, err := signedAmount(in.Type, in.Amount)
	if err != nil {
		return nil, err
	}
	return map[string]decimal.Decimal{
		old.AccountID: oldSigned.Neg(),
		in.AccountID:  newSigned,
	}, nil
}
