package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

const (
	DefaultRecurringBatchSize = 100
	// DefaultMaxCatchUp bounds how many missed occurrences of one template a
	// single run books.
	DefaultMaxCatchUp = 31
)

// RecurringProcessor books the due occurrences of recurring transactions.
type RecurringProcessor struct {
	ledger     *LedgerService
	batchSize  int
	maxCatchUp int
}

// NewRecurringProcessor creates a new recurring transaction processor
func NewRecurringProcessor(ledger *LedgerService, batchSize int) *RecurringProcessor {
	if batchSize <= 0 {
		batchSize = DefaultRecurringBatchSize
	}
	return &RecurringProcessor{
		ledger:     ledger,
		batchSize:  batchSize,
		maxCatchUp: DefaultMaxCatchUp,
	}
}

// ProcessDue books every occurrence due on or before now's calendar day and
// returns how many were booked. A failing template is logged and skipped so
// one bad row cannot stall the rest.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)
	due, err := p.ledger.DueRecurringTransactions(ctx, today, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"due", len(due),
		"processing_date", today.String())

	processed := 0
	for _, template := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		n, err := p.catchUp(ctx, template, today)
		processed += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring transaction",
				"transaction_id", template.ID,
				"account_id", template.AccountID,
				"booked", n,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(due))

	return processed, nil
}

func (p *RecurringProcessor) catchUp(ctx context.Context, template core.Transaction, today core.Date) (int, error) {
	booked := 0
	for booked < p.maxCatchUp {
		if template.NextRecurringDate == nil || template.NextRecurringDate.After(today.Time) {
			return booked, nil
		}
		occurrence := *template.NextRecurringDate

		child, err := p.ledger.ProcessRecurrence(ctx, template, occurrence)
		if errors.Is(err, core.ErrRecurrenceNotDue) {
			slog.DebugContext(ctx, "Recurrence already advanced",
				"transaction_id", template.ID,
				"occurrence", occurrence.String())
			return booked, nil
		}
		if err != nil {
			return booked, err
		}
		booked++

		slog.InfoContext(ctx, "Booked recurring occurrence",
			"template_id", template.ID,
			"transaction_id", child.ID,
			"occurrence", occurrence.String(),
			"amount", child.Amount.StringFixed(core.MoneyScale),
			"interval", *template.RecurringInterval)

		// Pick up the advanced date and any edit made since the listing.
		template, err = p.ledger.GetTransaction(ctx, template.OwnerID, template.ID)
		if err != nil {
			return booked, err
		}
		if template.RecurringInterval == nil {
			return booked, nil
		}
	}
	return booked, nil
}
