package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

func createRecurring(t *testing.T, svc *LedgerService, accountID string, interval core.Interval, date core.Date, amount string) core.Transaction {
	t.Helper()
	in := input(accountID, core.Expense, amount, date)
	in.IsRecurring = true
	in.RecurringInterval = &interval
	tr, err := svc.CreateTransaction(context.Background(), "alice", in)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return tr
}

func TestRecurringProcessor_CatchesUpMissedOccurrences(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "1000.00")
	tmpl := createRecurring(t, svc, acc.ID, core.Monthly, core.NewDate(2024, 1, 15), "100.00")

	p := NewRecurringProcessor(svc, 10)
	n, err := p.ProcessDue(ctx, fixedNow) // 2024-04-20
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if n != 3 {
		t.Fatalf("processed = %d, want 3 (Feb, Mar, Apr)", n)
	}

	// 1000 - template - three occurrences
	if b := balanceOf(t, svc, "alice", acc.ID); !b.Equal(dec("600.00")) {
		t.Errorf("balance = %s, want 600.00", b)
	}
	assertConsistent(t, svc, acc.ID)

	got, err := svc.GetTransaction(ctx, "alice", tmpl.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.NextRecurringDate == nil || got.NextRecurringDate.String() != "2024-05-15" {
		t.Errorf("next = %v, want 2024-05-15", got.NextRecurringDate)
	}
	if got.LastProcessed == nil || got.LastProcessed.String() != "2024-04-20" {
		t.Errorf("last processed = %v, want 2024-04-20", got.LastProcessed)
	}

	list, err := svc.ListTransactions(ctx, "alice", acc.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("transactions = %d, want 4", len(list))
	}
	if list[0].Date.String() != "2024-04-15" || list[0].IsRecurring || list[0].NextRecurringDate != nil {
		t.Errorf("newest occurrence = %+v", list[0])
	}

	recurred := 0
	for _, e := range pub.events {
		if e.Type == core.EventTransactionRecurred {
			recurred++
		}
	}
	if recurred != 3 {
		t.Errorf("recurred events = %d, want 3", recurred)
	}

	// A second run on the same day books nothing.
	n, err = p.ProcessDue(ctx, fixedNow)
	if err != nil || n != 0 {
		t.Fatalf("second run processed %d, %v", n, err)
	}
}

func TestRecurringProcessor_CatchUpIsBounded(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "0")
	createRecurring(t, svc, acc.ID, core.Daily, core.NewDate(2024, 1, 1), "1.00")

	p := NewRecurringProcessor(svc, 10)
	p.maxCatchUp = 5
	n, err := p.ProcessDue(ctx, fixedNow)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if n != 5 {
		t.Fatalf("processed = %d, want 5", n)
	}
}

func TestRecurringProcessor_NothingDue(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "0")
	createRecurring(t, svc, acc.ID, core.Yearly, core.NewDate(2024, 3, 1), "10.00")

	n, err := NewRecurringProcessor(svc, 0).ProcessDue(context.Background(), fixedNow)
	if err != nil || n != 0 {
		t.Fatalf("ProcessDue = %d, %v", n, err)
	}
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	if _, err := (&RecurringProcessor{}).ProcessDue(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for processor without ledger")
	}
}

func TestProcessRecurrence_StaleOccurrence(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "100.00")
	tmpl := createRecurring(t, svc, acc.ID, core.Weekly, core.NewDate(2024, 4, 1), "10.00")

	occurrence := *tmpl.NextRecurringDate
	if _, err := svc.ProcessRecurrence(ctx, tmpl, occurrence); err != nil {
		t.Fatalf("first ProcessRecurrence: %v", err)
	}
	_, err := svc.ProcessRecurrence(ctx, tmpl, occurrence)
	if !errors.Is(err, core.ErrRecurrenceNotDue) {
		t.Fatalf("expected ErrRecurrenceNotDue, got %v", err)
	}
	if core.KindOf(err) != core.KindConflict {
		t.Errorf("KindOf = %s, want conflict", core.KindOf(err))
	}
	// 100 - template - one occurrence
	if b := balanceOf(t, svc, "alice", acc.ID); !b.Equal(dec("80.00")) {
		t.Errorf("balance = %s, want 80.00", b)
	}
}

func TestProcessRecurrence_RequiresInterval(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	_, err := svc.ProcessRecurrence(context.Background(), core.Transaction{IsRecurring: true}, core.NewDate(2024, 1, 1))
	if !errors.Is(err, core.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestRecurringProcessor_MonthEndKeepsAnchorDay(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "0")
	tmpl := createRecurring(t, svc, acc.ID, core.Monthly, core.NewDate(2024, 1, 31), "5.00")

	n, err := NewRecurringProcessor(svc, 10).ProcessDue(ctx, fixedNow) // 2024-04-20
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed = %d, want 2 (Feb 29, Mar 31)", n)
	}

	list, err := svc.ListTransactions(ctx, "alice", acc.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 3 || list[0].Date.String() != "2024-03-31" || list[1].Date.String() != "2024-02-29" {
		t.Fatalf("unexpected occurrences: %+v", list)
	}

	got, err := svc.GetTransaction(ctx, "alice", tmpl.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.NextRecurringDate == nil || got.NextRecurringDate.String() != "2024-04-30" {
		t.Errorf("next = %v, want 2024-04-30", got.NextRecurringDate)
	}
	assertConsistent(t, svc, acc.ID)
}

func TestProcessRecurrence_BooksEditedTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "1000.00")
	tmpl := createRecurring(t, svc, acc.ID, core.Monthly, core.NewDate(2024, 3, 15), "10.00")

	due, err := svc.DueRecurringTransactions(ctx, core.DateOf(fixedNow), 10)
	if err != nil {
		t.Fatalf("DueRecurringTransactions: %v", err)
	}
	if len(due) != 1 || due[0].ID != tmpl.ID {
		t.Fatalf("due = %+v, want the template", due)
	}

	// Same schedule, new amount, after the template was listed.
	in := input(acc.ID, core.Expense, "99.00", core.NewDate(2024, 3, 15))
	in.IsRecurring = true
	monthly := core.Monthly
	in.RecurringInterval = &monthly
	if _, err := svc.UpdateTransaction(ctx, "alice", tmpl.ID, in); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	child, err := svc.ProcessRecurrence(ctx, due[0], *due[0].NextRecurringDate)
	if err != nil {
		t.Fatalf("ProcessRecurrence: %v", err)
	}
	if !child.Amount.Equal(dec("99.00")) {
		t.Errorf("occurrence amount = %s, want 99.00", child.Amount)
	}
	// 1000 - template - one occurrence
	if b := balanceOf(t, svc, "alice", acc.ID); !b.Equal(dec("802.00")) {
		t.Errorf("balance = %s, want 802.00", b)
	}
	assertConsistent(t, svc, acc.ID)
}

func TestProcessRecurrence_TemplateNoLongerRecurring(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)
	acc := openAccount(t, svc, "alice", "100.00")
	tmpl := createRecurring(t, svc, acc.ID, core.Monthly, core.NewDate(2024, 3, 15), "10.00")

	in := input(acc.ID, core.Expense, "10.00", core.NewDate(2024, 3, 15))
	if _, err := svc.UpdateTransaction(ctx, "alice", tmpl.ID, in); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	_, err := svc.ProcessRecurrence(ctx, tmpl, *tmpl.NextRecurringDate)
	if !errors.Is(err, core.ErrRecurrenceNotDue) {
		t.Fatalf("expected ErrRecurrenceNotDue, got %v", err)
	}
	if b := balanceOf(t, svc, "alice", acc.ID); !b.Equal(dec("90.00")) {
		t.Errorf("balance = %s, want 90.00", b)
	}
}
