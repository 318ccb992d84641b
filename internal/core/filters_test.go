package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExpenseFilters_EmptyEqualsNoFilter(t *testing.T) {
	blank := ExpenseFilters{
		Category: "  ",
		Tags:     []string{"", "  "},
		DateFrom: &time.Time{},
		Search:   "",
	}
	if !blank.IsEmpty() {
		t.Fatalf("blank filters should be empty, got %v", blank.Values())
	}

	a, err := json.Marshal(blank)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(ExpenseFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("blank and zero filters serialize differently: %s vs %s", a, b)
	}
}

func TestExpenseFilters_Values(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	minAmount := decimal.RequireFromString("10.5")
	f := ExpenseFilters{
		Category:      "Travel",
		Tags:          []string{"work", " trip "},
		DateFrom:      &from,
		AmountMin:     &minAmount,
		PaymentMethod: "Cash",
		Search:        "hotel",
	}
	v := f.Values()

	want := map[string]string{
		"category":      "Travel",
		"tags":          "work,trip",
		"dateFrom":      "2025-01-01",
		"amountMin":     "10.5",
		"paymentMethod": "Cash",
		"search":        "hotel",
	}
	for k, w := range want {
		if got := v.Get(k); got != w {
			t.Errorf("%s = %q, want %q", k, got, w)
		}
	}
	if v.Has("dateTo") || v.Has("amountMax") {
		t.Errorf("unset predicates must not be rendered: %v", v)
	}
	if f.IsEmpty() {
		t.Error("filters with predicates are not empty")
	}
}
