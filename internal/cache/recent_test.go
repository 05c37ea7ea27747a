package cache

import (
	"reflect"
	"testing"
	"time"
)

func TestRecentOrderAndEviction(t *testing.T) {
	r := NewRecent(2, 0)
	r.Touch("a")
	r.Touch("b")
	r.Touch("a")
	r.Touch("c") // evicts b, the least recently touched

	if got, want := r.Keys(), []string{"c", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}

	r.Forget("c")
	r.Forget("missing")
	if got, want := r.Keys(), []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() after Forget = %v, want %v", got, want)
	}
}

func TestRecentExpiry(t *testing.T) {
	now := time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)
	r := NewRecent(10, time.Hour)
	r.now = func() time.Time { return now }

	r.Touch("old")
	now = now.Add(30 * time.Minute)
	r.Touch("new")
	now = now.Add(45 * time.Minute)

	if got, want := r.Keys(), []string{"new"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	r.Touch("new")
	now = now.Add(59 * time.Minute)
	if r.Len() != 1 {
		t.Fatalf("touch should refresh age, Len() = %d", r.Len())
	}
}

func TestRecentMinimumSize(t *testing.T) {
	r := NewRecent(0, 0)
	r.Touch("a")
	r.Touch("b")
	if got, want := r.Keys(), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
}
