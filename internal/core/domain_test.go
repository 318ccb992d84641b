package core

import (
	"encoding/json"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-01-01", "2025-01-01", true},
		{"2025-12-31T18:30:00Z", "2025-12-31", true},
		{" 2025-06-15 ", "2025-06-15", true},
		{"15/06/2025", "", false},
		{"", "", false},
	}
	for i, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok && (err != nil || got.String() != tc.want) {
			t.Fatalf("case %d expected %s, got %s (err=%v)", i, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCreateExpenseRequestValidate(t *testing.T) {
	good := CreateExpenseRequest{
		UserID:        "u1",
		Title:         "Groceries",
		Amount:        MustMoney("12.50"),
		Category:      "Food & Dining",
		Date:          NewDate(2025, 1, 1),
		PaymentMethod: "Cash",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	recurring := good
	recurring.IsRecurring = true
	recurring.RecurringFrequency = Monthly
	if err := recurring.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]func(r *CreateExpenseRequest){
		"no user":            func(r *CreateExpenseRequest) { r.UserID = "" },
		"blank title":        func(r *CreateExpenseRequest) { r.Title = "  " },
		"zero amount":        func(r *CreateExpenseRequest) { r.Amount = Money{} },
		"no category":        func(r *CreateExpenseRequest) { r.Category = "" },
		"no payment":         func(r *CreateExpenseRequest) { r.PaymentMethod = "" },
		"no date":            func(r *CreateExpenseRequest) { r.Date = Date{} },
		"recurring no freq":  func(r *CreateExpenseRequest) { r.IsRecurring = true },
		"freq not recurring": func(r *CreateExpenseRequest) { r.RecurringFrequency = Weekly },
	}
	for name, mutate := range bads {
		r := good
		mutate(&r)
		if err := r.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUpdateExpenseRequestNeedsID(t *testing.T) {
	req := UpdateExpenseRequest{CreateExpenseRequest: CreateExpenseRequest{
		UserID: "u1", Title: "x", Amount: MustMoney("1"), Category: "Other",
		Date: NewDate(2025, 1, 1), PaymentMethod: "Cash",
	}}
	if err := req.Validate(); err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := (Expense{Amount: MustMoney("0")}).Validate(); err != nil {
		t.Fatalf("zero amount is allowed on stored expenses, got %v", err)
	}
	if err := (Expense{Amount: MustMoney("-1")}).Validate(); err != ErrNegativeAmount {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestExpenseJSON(t *testing.T) {
	raw := `{"_id":"e1","title":"Taxi","description":"","amount":23.5,"category":"Transportation",
		"tags":["work"],"date":"2025-03-04T00:00:00.000Z","paymentMethod":"Cash","isRecurring":false,
		"createdAt":"2025-03-04T10:00:00Z","updatedAt":"2025-03-04T10:00:00Z"}`
	var e Expense
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.ID != "e1" || e.Date.String() != "2025-03-04" || !e.Amount.Equal(MustMoney("23.5").Decimal) {
		t.Fatalf("unexpected expense: %+v", e)
	}

	out, err := json.Marshal(CreateExpenseRequest{Amount: MustMoney("500"), Date: NewDate(2025, 3, 4)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if m["amount"] != float64(500) {
		t.Fatalf("amount should be a bare number, got %#v", m["amount"])
	}
	if _, ok := m["recurringFrequency"]; ok {
		t.Fatalf("recurringFrequency must be omitted when empty: %s", out)
	}
	if m["date"] != "2025-03-04" {
		t.Fatalf("date = %v", m["date"])
	}
}
