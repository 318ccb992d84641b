package forms

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

// FilterState is the browse page filter panel.
type FilterState struct {
	category      string
	paymentMethod string
	search        string
	tags          *TagSet
	dateFrom      *time.Time
	dateTo        *time.Time
	amountMin     *decimal.Decimal
	amountMax     *decimal.Decimal
}

func NewFilterState() *FilterState {
	return &FilterState{tags: NewTagSet()}
}

// SetCategory accepts loose input ("food"); blank clears the predicate.
func (s *FilterState) SetCategory(c string) error {
	c = sanitizeInput(c)
	if c == "" {
		s.category = ""
		return nil
	}
	match, ok := core.MatchCategory(c)
	if !ok {
		return FieldErrors{FieldCategory: "Unknown category"}
	}
	s.category = match
	return nil
}

func (s *FilterState) SetPaymentMethod(m string) error {
	m = sanitizeInput(m)
	if m == "" {
		s.paymentMethod = ""
		return nil
	}
	match, ok := core.MatchPaymentMethod(m)
	if !ok {
		return FieldErrors{FieldPaymentMethod: "Unknown payment method"}
	}
	s.paymentMethod = match
	return nil
}

func (s *FilterState) SetSearch(q string) {
	s.search = sanitizeInput(q)
}

func (s *FilterState) AddTag(tag string) bool {
	return s.tags.Add(tag)
}

func (s *FilterState) RemoveTag(tag string) bool {
	return s.tags.Remove(tag)
}

// SetDateRange takes YYYY-MM-DD bounds; either may be blank.
func (s *FilterState) SetDateRange(from, to string) error {
	var (
		f, t *time.Time
		errs = FieldErrors{}
	)
	parse := func(v string) *time.Time {
		if strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := core.ParseDate(v)
		if err != nil {
			errs.Add(FieldDateRange, "Dates must be YYYY-MM-DD")
			return nil
		}
		return &d.Time
	}
	f, t = parse(from), parse(to)
	if f != nil && t != nil && t.Before(*f) {
		errs.Add(FieldDateRange, "End date is before start date")
	}
	if err := errs.Err(); err != nil {
		return err
	}
	s.dateFrom, s.dateTo = f, t
	return nil
}

// SetAmountRange takes decimal bounds; either may be blank. Zero is a valid
// lower bound.
func (s *FilterState) SetAmountRange(lo, hi string) error {
	var (
		lower, upper *decimal.Decimal
		errs         = FieldErrors{}
	)
	parse := func(v string) *decimal.Decimal {
		v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		if v == "" {
			return nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			errs.Add(FieldAmountRange, "Amounts must be non-negative numbers")
			return nil
		}
		return &d
	}
	lower, upper = parse(lo), parse(hi)
	if lower != nil && upper != nil && upper.LessThan(*lower) {
		errs.Add(FieldAmountRange, "Maximum is below minimum")
	}
	if err := errs.Err(); err != nil {
		return err
	}
	s.amountMin, s.amountMax = lower, upper
	return nil
}

// Clear removes every predicate.
func (s *FilterState) Clear() {
	*s = *NewFilterState()
}

func (s *FilterState) HasActive() bool {
	return !s.Filters().IsEmpty()
}

// Filters snapshots the current predicates.
func (s *FilterState) Filters() core.ExpenseFilters {
	f := core.ExpenseFilters{
		Category:      s.category,
		PaymentMethod: s.paymentMethod,
		Search:        s.search,
		Tags:          s.tags.Tags(),
	}
	if s.dateFrom != nil {
		d := *s.dateFrom
		f.DateFrom = &d
	}
	if s.dateTo != nil {
		d := *s.dateTo
		f.DateTo = &d
	}
	if s.amountMin != nil {
		d := *s.amountMin
		f.AmountMin = &d
	}
	if s.amountMax != nil {
		d := *s.amountMax
		f.AmountMax = &d
	}
	return f
}
