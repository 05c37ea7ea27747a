package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
)

const (
	DefaultWatchSize = 10000
	DefaultWatchTTL  = 7 * 24 * time.Hour
)

// Reconciler compares an account's stored balance with its ledger.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error)
}

// ReconcileWorker checks the balance invariant of accounts touched by ledger
// events. Drift is reported, never corrected.
type ReconcileWorker struct {
	ledger  Reconciler
	watched *cache.Recent
}

func NewReconcileWorker(ledger Reconciler, watchSize int, watchTTL time.Duration) *ReconcileWorker {
	if watchSize <= 0 {
		watchSize = DefaultWatchSize
	}
	return &ReconcileWorker{
		ledger:  ledger,
		watched: cache.NewRecent(watchSize, watchTTL),
	}
}

// HandleLedgerEvent reconciles every account named by msg and keeps them
// under watch for later sweeps. An error requeues the message.
func (w *ReconcileWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", msg.Type,
		"transaction_id", msg.TransactionID,
		"accounts", len(msg.AccountIDs))

	for _, accountID := range msg.AccountIDs {
		w.watched.Touch(accountID)
		if _, err := w.check(ctx, accountID); err != nil {
			return fmt.Errorf("reconcile account %s: %w", accountID, err)
		}
	}
	return nil
}

// Sweep reconciles every watched account and returns how many drifted.
// Failures on one account do not stop the sweep.
func (w *ReconcileWorker) Sweep(ctx context.Context) (int, error) {
	accountIDs := w.watched.Keys()
	if len(accountIDs) == 0 {
		return 0, nil
	}

	drifted := 0
	var errs []error
	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return drifted, err
		}
		consistent, err := w.check(ctx, accountID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile account %s: %w", accountID, err))
			continue
		}
		if !consistent {
			drifted++
		}
	}

	slog.InfoContext(ctx, "Reconciliation sweep completed",
		"accounts", len(accountIDs),
		"drifted", drifted,
		"errors", len(errs))

	return drifted, errors.Join(errs...)
}

// RunSweeps calls Sweep every interval until ctx is done.
func (w *ReconcileWorker) RunSweeps(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Reconciliation sweep failed", "error", err)
			}
		}
	}
}

// Watched reports how many accounts are currently under watch.
func (w *ReconcileWorker) Watched() int {
	return w.watched.Len()
}

func (w *ReconcileWorker) check(ctx context.Context, accountID string) (bool, error) {
	r, err := w.ledger.ReconcileAccount(ctx, accountID)
	if errors.Is(err, core.ErrAccountNotFound) {
		slog.WarnContext(ctx, "Watched account no longer exists", "account_id", accountID)
		w.watched.Forget(accountID)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if !r.Consistent() {
		slog.ErrorContext(ctx, "Account balance drift detected",
			"account_id", r.AccountID,
			"stored_balance", r.StoredBalance.StringFixed(core.MoneyScale),
			"expected_balance", r.OpeningBalance.Add(r.LedgerSum).StringFixed(core.MoneyScale),
			"drift", r.Drift().StringFixed(core.MoneyScale),
			"transactions", r.Transactions)
		return false, nil
	}

	slog.DebugContext(ctx, "Account balance consistent",
		"account_id", r.AccountID,
		"balance", r.StoredBalance.StringFixed(core.MoneyScale))
	return true, nil
}
