package core

import (
	"encoding/json"
	"testing"
)

func TestExpensePage_Unmarshal(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantLen   int
		wantTotal int
	}{
		{"bare array", `[{"_id":"a"},{"_id":"b"}]`, 2, 2},
		{"envelope", `{"expenses":[{"_id":"a"}],"total":47,"page":2,"limit":10}`, 1, 47},
		{"data envelope", `{"data":[{"_id":"a"},{"_id":"b"},{"_id":"c"}]}`, 3, 3},
		{"empty array", `[]`, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p ExpensePage
			if err := json.Unmarshal([]byte(tc.raw), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(p.Expenses) != tc.wantLen || p.Total != tc.wantTotal {
				t.Fatalf("got len=%d total=%d, want len=%d total=%d", len(p.Expenses), p.Total, tc.wantLen, tc.wantTotal)
			}
		})
	}
}
