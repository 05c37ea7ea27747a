package core

import "github.com/shopspring/decimal"

// ReceiptCategories are the category suggestions a receipt scan may return.
var ReceiptCategories = []string{
	"housing", "transportation", "groceries", "utilities", "entertainment",
	"food", "shopping", "healthcare", "education", "personal", "travel",
	"insurance", "gifts", "bills", "other-expense",
}

// FallbackReceiptCategory is used when a suggestion is not in ReceiptCategories.
const FallbackReceiptCategory = "other-expense"

// Receipt holds the fields guessed from a receipt image. The zero value means
// the image was not recognised as a receipt.
type Receipt struct {
	Amount       decimal.Decimal
	Date         Date
	Description  string
	MerchantName string
	Category     string
}

func (r Receipt) IsEmpty() bool {
	return r.Amount.IsZero() && r.Date.IsZero() && r.Description == "" &&
		r.MerchantName == "" && r.Category == ""
}

// NormalizeReceiptCategory maps a suggestion onto ReceiptCategories.
func NormalizeReceiptCategory(c string) string {
	for _, known := range ReceiptCategories {
		if c == known {
			return c
		}
	}
	return FallbackReceiptCategory
}
