// This file implements the Strategy Pattern for recurring expenses.
// Each frequency has its own stepper that knows how to advance a date by
// one period; NextOccurrence walks from the start date until it passes now.

package core

import (
	"fmt"
	"time"
)

// Stepper advances a date by one period of its frequency.
type Stepper interface {
	Next(from time.Time, anchorDay int) time.Time
}

type dayStepper struct{ days int }

func (s dayStepper) Next(from time.Time, _ int) time.Time {
	return from.AddDate(0, 0, s.days)
}

// monthStepper keeps the anchor day and clamps it to the month length,
// so Jan 31 monthly goes to Feb 28/29 and back to Mar 31.
type monthStepper struct{ months int }

func (s monthStepper) Next(from time.Time, anchorDay int) time.Time {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, s.months, 0)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := anchorDay
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

var steppers = map[Frequency]Stepper{
	Daily:     dayStepper{days: 1},
	Weekly:    dayStepper{days: 7},
	Monthly:   monthStepper{months: 1},
	Quarterly: monthStepper{months: 3},
	Yearly:    monthStepper{months: 12},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(freq Frequency) (Stepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", freq)
	}
	return s, nil
}

// NextOccurrence returns the first occurrence of a recurring expense that
// falls on or after now's calendar day.
func NextOccurrence(freq Frequency, start Date, now time.Time) (Date, error) {
	stepper, err := GetStepper(freq)
	if err != nil {
		return Date{}, err
	}
	if start.IsZero() {
		return Date{}, ErrMissingDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	anchor := start.Day()
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for d.Before(today) {
		d = stepper.Next(d, anchor)
	}
	return Date{Time: d}, nil
}
