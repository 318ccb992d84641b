// Package forms holds uncommitted user input and turns it into validated
// request payloads or list filters.
package forms

import (
	"sort"
	"strings"
)

// Field names used as FieldErrors keys.
const (
	FieldTitle         = "title"
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldPaymentMethod = "paymentMethod"
	FieldDate          = "date"
	FieldFrequency     = "recurringFrequency"
	FieldDateRange     = "dateRange"
	FieldAmountRange   = "amountRange"
)

// FieldErrors maps a field to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Err returns nil when there are no errors, so callers can write
// `if err := form.Validate().Err(); err != nil`.
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}
