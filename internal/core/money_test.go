package core

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestAmountFromFloat(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.01} {
		if _, err := AmountFromFloat(f); err != ErrInvalidAmount {
			t.Fatalf("%v: expected ErrInvalidAmount, got %v", f, err)
		}
	}
	got, err := AmountFromFloat(12.345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "12.35" && got.String() != "12.34" {
		t.Fatalf("expected rounding to cents, got %s", got)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	cents, err := ToCents(decimal.RequireFromString("1050.75"))
	if err != nil || cents != 105075 {
		t.Fatalf("expected 105075, got %d (err=%v)", cents, err)
	}
	if !FromCents(-5000).Equal(decimal.RequireFromString("-50.00")) {
		t.Fatalf("FromCents(-5000) = %s", FromCents(-5000))
	}
	if _, err := ToCents(decimal.RequireFromString("0.125")); err == nil {
		t.Fatalf("expected error for sub-cent amount")
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(decimal.Zero); err != nil {
		t.Fatalf("zero should be valid: %v", err)
	}
	if err := ValidateAmount(decimal.NewFromInt(-5)); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ValidateAmount(MaxAmount); err != nil {
		t.Fatalf("MaxAmount should be valid: %v", err)
	}
	if err := ValidateAmount(MaxAmount.Add(decimal.RequireFromString("0.01"))); err != ErrInvalidAmount {
		t.Fatalf("amount above MaxAmount: expected ErrInvalidAmount, got %v", err)
	}
}

func TestValidateBalance(t *testing.T) {
	tests := []struct {
		balance string
		ok      bool
	}{
		{"0", true},
		{"9999999999999.99", true},
		{"-9999999999999.99", true},
		{"10000000000000.00", false},
		{"-10000000000000.00", false},
	}
	for _, tt := range tests {
		err := ValidateBalance(decimal.RequireFromString(tt.balance))
		if tt.ok && err != nil {
			t.Errorf("ValidateBalance(%s) = %v", tt.balance, err)
		}
		if !tt.ok && (!errors.Is(err, ErrBalanceOutOfRange) || !errors.Is(err, ErrInvalidAmount)) {
			t.Errorf("ValidateBalance(%s) = %v, want ErrBalanceOutOfRange", tt.balance, err)
		}
	}
}

func TestMaxBalanceCents(t *testing.T) {
	cents, err := ToCents(MaxAmount)
	if err != nil || cents != MaxBalanceCents {
		t.Fatalf("ToCents(MaxAmount) = %d, %v, want %d", cents, err, MaxBalanceCents)
	}
}
