// Package memory is an in-process LedgerStore. A unit of work runs against a
// copy of the state that replaces the live state only on commit, and one
// mutex serialises all access.
package memory

import (
	"context"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/shopspring/decimal"
)

type state struct {
	accounts     map[string]core.Account
	transactions map[string]core.Transaction
}

func newState() *state {
	return &state{
		accounts:     make(map[string]core.Account),
		transactions: make(map[string]core.Transaction),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[string]core.Account, len(s.accounts)),
		transactions: make(map[string]core.Transaction, len(s.transactions)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	return c
}

type Store struct {
	mu         sync.Mutex
	st         *state
	failCommit error
}

// Ensure interface conformance
var (
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.LedgerTx    = (*tx)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

// FailNextCommit makes the next WithTx fail at commit time with err after fn
// has run successfully. Used to exercise rollback paths.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(&tx{st: working}); err != nil {
		return err
	}
	if err := s.failCommit; err != nil {
		s.failCommit = nil
		return err
	}
	s.st = working
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).FindOwnedTransaction(ctx, ownerID, transactionID)
}

func (s *Store) ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.st.transactions {
		if t.OwnerID == ownerID && t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DueRecurringTransactions(ctx context.Context, asOf core.Date, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.st.transactions {
		if t.IsRecurring && t.NextRecurringDate != nil && !t.NextRecurringDate.After(asOf.Time) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextRecurringDate.Equal(out[j].NextRecurringDate.Time) {
			return out[i].NextRecurringDate.Before(out[j].NextRecurringDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.IsDefault {
		for id, other := range s.st.accounts {
			if other.OwnerID == a.OwnerID && other.IsDefault {
				other.IsDefault = false
				other.UpdatedAt = a.CreatedAt
				s.st.accounts[id] = other
			}
		}
	}
	s.st.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).FindOwnedAccount(ctx, ownerID, accountID)
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Account
	for _, a := range s.st.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountAccounts(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, a := range s.st.accounts {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ReconcileAccount(ctx context.Context, accountID string) (core.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.st.accounts[accountID]
	if !ok {
		return core.Reconciliation{}, core.ErrAccountNotFound
	}
	r := core.Reconciliation{
		AccountID:      a.ID,
		OpeningBalance: a.OpeningBalance,
		StoredBalance:  a.Balance,
		LedgerSum:      decimal.Zero,
	}
	for _, t := range s.st.transactions {
		if t.AccountID == accountID {
			r.LedgerSum = r.LedgerSum.Add(t.Signed())
			r.Transactions++
		}
	}
	return r, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type tx struct {
	st *state
}

func (t *tx) FindOwnedAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	a, ok := t.st.accounts[accountID]
	if !ok || a.OwnerID != ownerID {
		return core.Account{}, core.ErrAccountNotFound
	}
	return a, nil
}

func (t *tx) FindOwnedTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	tr, ok := t.st.transactions[transactionID]
	if !ok || tr.OwnerID != ownerID {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return tr, nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr core.Transaction) error {
	if _, ok := t.st.accounts[tr.AccountID]; !ok {
		return core.ErrAccountNotFound
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *tx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	if _, ok := t.st.transactions[tr.ID]; !ok {
		return core.ErrTransactionNotFound
	}
	if _, ok := t.st.accounts[tr.AccountID]; !ok {
		return core.ErrAccountNotFound
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *tx) ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	a, ok := t.st.accounts[accountID]
	if !ok {
		return core.ErrAccountNotFound
	}
	balance := a.Balance.Add(delta)
	if err := core.ValidateBalance(balance); err != nil {
		return err
	}
	a.Balance = balance
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) AdvanceRecurrence(ctx context.Context, transactionID string, expected core.Date, next *core.Date, processedOn core.Date) (bool, error) {
	tr, ok := t.st.transactions[transactionID]
	if !ok {
		return false, core.ErrTransactionNotFound
	}
	if tr.NextRecurringDate == nil || !tr.NextRecurringDate.Equal(expected.Time) {
		return false, nil
	}
	tr.NextRecurringDate = next
	tr.LastProcessed = &processedOn
	t.st.transactions[transactionID] = tr
	return true, nil
}
