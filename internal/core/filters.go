package core

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseFilters is a sparse conjunctive query. A nil or blank field means
// "no constraint".
type ExpenseFilters struct {
	Category      string
	Tags          []string
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountMin     *decimal.Decimal
	AmountMax     *decimal.Decimal
	PaymentMethod string
	Search        string
}

// IsEmpty reports whether no predicate is set.
func (f ExpenseFilters) IsEmpty() bool {
	return len(f.Values()) == 0
}

// Values renders the set predicates as query parameters. Tags are comma-joined.
func (f ExpenseFilters) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(f.Category); s != "" {
		v.Set("category", s)
	}
	if tags := cleanTags(f.Tags); len(tags) > 0 {
		v.Set("tags", strings.Join(tags, ","))
	}
	if f.DateFrom != nil && !f.DateFrom.IsZero() {
		v.Set("dateFrom", f.DateFrom.Format(dateLayout))
	}
	if f.DateTo != nil && !f.DateTo.IsZero() {
		v.Set("dateTo", f.DateTo.Format(dateLayout))
	}
	if f.AmountMin != nil {
		v.Set("amountMin", f.AmountMin.String())
	}
	if f.AmountMax != nil {
		v.Set("amountMax", f.AmountMax.String())
	}
	if s := strings.TrimSpace(f.PaymentMethod); s != "" {
		v.Set("paymentMethod", s)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		v.Set("search", s)
	}
	return v
}

// MarshalJSON serializes the normalized parameters, so filters that render
// the same query produce the same cache key.
func (f ExpenseFilters) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string)
	for k, vals := range f.Values() {
		flat[k] = vals[0]
	}
	return json.Marshal(flat)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
