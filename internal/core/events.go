package core

import "time"

type LedgerEventType string

const (
	EventTransactionCreated  LedgerEventType = "transaction.created"
	EventTransactionUpdated  LedgerEventType = "transaction.updated"
	EventTransactionRecurred LedgerEventType = "transaction.recurred"
)

// LedgerEvent announces a committed ledger change. It carries identifiers
// only; consumers reload whatever state they need.
type LedgerEvent struct {
	Type          LedgerEventType
	TransactionID string
	OwnerID       string
	// AccountIDs lists every account whose balance the change touched.
	AccountIDs []string
	OccurredAt time.Time
}
