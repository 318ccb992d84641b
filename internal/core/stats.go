package core

import (
	"bytes"
	"encoding/json"
)

// ExpenseStats is the server-side aggregate for one user. Read-only on the client.
type ExpenseStats struct {
	TotalExpenses             int               `json:"totalExpenses"`
	TotalAmount               Money             `json:"totalAmount"`
	AverageExpense            Money             `json:"averageExpense"`
	CategoriesSpending        map[string]Money  `json:"categoriesSpending"`
	MonthlySpending           []MonthlySpending `json:"monthlySpending"`
	PaymentMethodDistribution map[string]Money  `json:"paymentMethodDistribution"`
	TopCategories             []CategoryShare   `json:"topCategories"`
	BudgetStatus              BudgetStatus      `json:"budgetStatus"`
}

type MonthlySpending struct {
	Month  string `json:"month"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// CategoryShare represents an amount aggregated by category name.
type CategoryShare struct {
	Category   string  `json:"category"`
	Amount     Money   `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type BudgetStatus struct {
	TotalBudget Money   `json:"totalBudget"`
	Spent       Money   `json:"spent"`
	Remaining   Money   `json:"remaining"`
	Percentage  float64 `json:"percentage"`
}

// LeaderboardEntry is one pre-aggregated row of the premium leaderboard.
type LeaderboardEntry struct {
	ID            string `json:"_id"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	TotalAmount   Money  `json:"totalAmount"`
	TotalExpenses int    `json:"totalExpenses"`
}

// PremiumStats has no documented schema; it is kept as an open object.
type PremiumStats map[string]any

// ExpensePage is one page of the canonical list endpoint.
type ExpensePage struct {
	Expenses []Expense `json:"expenses"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// UnmarshalJSON accepts the paged envelope or a bare array (legacy form).
func (p *ExpensePage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []Expense
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*p = ExpensePage{Expenses: items, Total: len(items), Page: 1, Limit: len(items)}
		return nil
	}

	type envelope ExpensePage
	var env struct {
		envelope
		Data []Expense `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	*p = ExpensePage(env.envelope)
	if p.Expenses == nil {
		p.Expenses = env.Data
	}
	if p.Total == 0 {
		p.Total = len(p.Expenses)
	}
	return nil
}
