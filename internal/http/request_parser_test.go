package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/core"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in         string
		allowEmpty bool
		want       string
		kind       core.ErrorKind
	}{
		{"12.5", false, "12.5", core.KindNone},
		{"0", false, "0", core.KindNone},
		{"", true, "0", core.KindNone},
		{"", false, "", core.KindInvalidAmount},
		{"-1", false, "", core.KindInvalidAmount},
		{"1e2", false, "", core.KindInvalidAmount},
		{"0.001", false, "", core.KindInvalidAmount},
		{"abc", false, "", core.KindInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(json.Number(tt.in), tt.allowEmpty)
			if kind := core.KindOf(err); kind != tt.kind {
				t.Fatalf("kind = %s, want %s (err=%v)", kind, tt.kind, err)
			}
			if err == nil && got.String() != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTransactionRequestToInput(t *testing.T) {
	interval := " weekly "
	in, err := transactionRequest{
		AccountID:         " acc ",
		Amount:            "10.50",
		Type:              "income",
		Date:              "2024-02-15",
		IsRecurring:       true,
		RecurringInterval: &interval,
		Description:       "  salary ",
	}.toInput()
	if err != nil {
		t.Fatalf("toInput: %v", err)
	}
	if in.AccountID != "acc" || in.Type != core.Income || in.Description != "salary" {
		t.Errorf("unexpected input: %+v", in)
	}
	if in.RecurringInterval == nil || *in.RecurringInterval != core.Weekly {
		t.Errorf("interval = %v", in.RecurringInterval)
	}
	if in.Date.String() != "2024-02-15" {
		t.Errorf("date = %s", in.Date)
	}

	empty := ""
	in, err = transactionRequest{Amount: "1", Type: "EXPENSE", Date: "2024-02-15", RecurringInterval: &empty}.toInput()
	if err != nil || in.RecurringInterval != nil {
		t.Errorf("blank interval should be nil, got %v (err=%v)", in.RecurringInterval, err)
	}
}

func TestOwnerID(t *testing.T) {
	tests := map[string]string{
		"owner-1":     "owner-1",
		"  owner-2  ": "owner-2",
		"":            "",
		"two words":   "",
		"tab\towner":  "",
	}
	for header, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(OwnerHeader, header)
		if got := ownerID(r); got != want {
			t.Errorf("ownerID(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", 0, true},
		{"?limit=25", 25, true},
		{"?limit=0", 0, false},
		{"?limit=-3", 0, false},
		{"?limit=ten", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/accounts/a/transactions"+tt.query, nil)
		got, err := parseLimit(r)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v", tt.query, got, err)
		}
	}
}
