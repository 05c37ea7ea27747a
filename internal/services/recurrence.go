// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence scheduling.
// Each interval (daily, weekly, monthly, yearly) has its own strategy that
// computes the next occurrence from an anchor date.

package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// RecurrenceStrategy computes occurrences of a schedule.
type RecurrenceStrategy interface {
	// Next returns the first occurrence after anchor.
	Next(anchor core.Date) core.Date
	// After returns the first occurrence of the schedule anchored on anchor
	// that falls strictly after current.
	After(anchor, current core.Date) core.Date
}

// DailyStrategy implements RecurrenceStrategy for daily transactions.
type DailyStrategy struct{}

func (DailyStrategy) Next(anchor core.Date) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 1)}
}

func (s DailyStrategy) After(_, current core.Date) core.Date {
	return s.Next(current)
}

// WeeklyStrategy implements RecurrenceStrategy for weekly transactions.
type WeeklyStrategy struct{}

func (WeeklyStrategy) Next(anchor core.Date) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 7)}
}

func (s WeeklyStrategy) After(_, current core.Date) core.Date {
	return s.Next(current)
}

// MonthlyStrategy moves one calendar month forward. When the target month is
// shorter than the anchor's day, the result is clamped to its last day.
// Occurrences are counted from the anchor, so a clamp does not carry over:
// Jan 31, Feb 29, Mar 31.
type MonthlyStrategy struct{}

func (MonthlyStrategy) Next(anchor core.Date) core.Date {
	return addMonthsClamped(anchor, 1)
}

func (MonthlyStrategy) After(anchor, current core.Date) core.Date {
	return periodAfter(anchor, current, 1)
}

// YearlyStrategy moves one calendar year forward; Feb 29 becomes Feb 28 in
// non-leap years and comes back in leap years.
type YearlyStrategy struct{}

func (YearlyStrategy) Next(anchor core.Date) core.Date {
	return addMonthsClamped(anchor, 12)
}

func (YearlyStrategy) After(anchor, current core.Date) core.Date {
	return periodAfter(anchor, current, 12)
}

// periodAfter returns anchor plus the smallest whole number of periods of
// the given length in months that lands after current.
func periodAfter(anchor, current core.Date, months int) core.Date {
	ay, am, _ := anchor.Date()
	cy, cm, _ := current.Date()
	k := ((cy-ay)*12 + int(cm-am)) / months
	if k < 1 {
		k = 1
	}
	next := addMonthsClamped(anchor, k*months)
	for !next.After(current.Time) {
		k++
		next = addMonthsClamped(anchor, k*months)
	}
	return next
}

// addMonthsClamped avoids time.AddDate's normalisation, which turns Jan 31
// plus one month into early March.
func addMonthsClamped(anchor core.Date, months int) core.Date {
	y, m, d := anchor.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), d)
}

// recurrenceStrategies maps intervals to their strategies.
var recurrenceStrategies = map[core.Interval]RecurrenceStrategy{
	core.Daily:   DailyStrategy{},
	core.Weekly:  WeeklyStrategy{},
	core.Monthly: MonthlyStrategy{},
	core.Yearly:  YearlyStrategy{},
}

// GetRecurrenceStrategy returns the strategy for interval, or an error
// wrapping core.ErrInvalidInterval.
func GetRecurrenceStrategy(interval core.Interval) (RecurrenceStrategy, error) {
	s, ok := recurrenceStrategies[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidInterval, interval)
	}
	return s, nil
}

// NextOccurrence returns the occurrence after anchor for interval.
//
//	NextOccurrence(2024-01-31, MONTHLY) -> 2024-02-29
//	NextOccurrence(2024-02-15, WEEKLY)  -> 2024-02-22
//	NextOccurrence(2024-03-01, YEARLY)  -> 2025-03-01
func NextOccurrence(anchor core.Date, interval core.Interval) (core.Date, error) {
	s, err := GetRecurrenceStrategy(interval)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(anchor), nil
}

// OccurrenceAfter returns the occurrence that follows current on the
// schedule anchored on anchor.
//
//	OccurrenceAfter(2024-01-31, 2024-02-29, MONTHLY) -> 2024-03-31
func OccurrenceAfter(anchor, current core.Date, interval core.Interval) (core.Date, error) {
	s, err := GetRecurrenceStrategy(interval)
	if err != nil {
		return core.Date{}, err
	}
	return s.After(anchor, current), nil
}

// nextRecurringDate derives a transaction's schedule: nil unless it is
// recurring with an interval.
func nextRecurringDate(in core.TransactionInput) (*core.Date, error) {
	if !in.HasSchedule() {
		return nil, nil
	}
	next, err := NextOccurrence(in.Date, *in.RecurringInterval)
	if err != nil {
		return nil, err
	}
	return &next, nil
}
