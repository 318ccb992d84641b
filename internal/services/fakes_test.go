package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"expensetracker/internal/api"
	"expensetracker/internal/core"
)

// fakeAPI is an in-memory expense service.
type fakeAPI struct {
	mu       sync.Mutex
	expenses []core.Expense
	calls    map[string]int
	failNext error
	premium  map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}, premium: map[string]bool{}}
}

func (f *fakeAPI) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

func (f *fakeAPI) ListExpenses(_ context.Context, userID string, filters core.ExpenseFilters, page, limit int) (core.ExpensePage, error) {
	if err := f.hit("list"); err != nil {
		return core.ExpensePage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Expense
	for _, e := range f.expenses {
		if e.UserID != userID {
			continue
		}
		if filters.Category != "" && e.Category != filters.Category {
			continue
		}
		out = append(out, e)
	}
	return core.ExpensePage{Expenses: out, Total: len(out), Page: page, Limit: limit}, nil
}

func (f *fakeAPI) Stats(_ context.Context, userID string) (core.ExpenseStats, error) {
	if err := f.hit("stats"); err != nil {
		return core.ExpenseStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	n := 0
	for _, e := range f.expenses {
		if e.UserID == userID {
			total = total.Add(e.Amount.Decimal)
			n++
		}
	}
	return core.ExpenseStats{TotalExpenses: n, TotalAmount: core.Money{Decimal: total}}, nil
}

func (f *fakeAPI) CreateExpense(_ context.Context, req core.CreateExpenseRequest) (core.Expense, error) {
	if err := f.hit("create"); err != nil {
		return core.Expense{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e := core.Expense{
		ID:                 fmt.Sprintf("e%d", len(f.expenses)+1),
		UserID:             req.UserID,
		Title:              req.Title,
		Amount:             req.Amount,
		Category:           req.Category,
		Tags:               req.Tags,
		Date:               req.Date,
		PaymentMethod:      req.PaymentMethod,
		IsRecurring:        req.IsRecurring,
		RecurringFrequency: req.RecurringFrequency,
	}
	f.expenses = append(f.expenses, e)
	return e, nil
}

func (f *fakeAPI) UpdateExpense(_ context.Context, req core.UpdateExpenseRequest) (core.Expense, error) {
	if err := f.hit("update"); err != nil {
		return core.Expense{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.expenses {
		if e.ID == req.ID {
			f.expenses[i].Title = req.Title
			f.expenses[i].Amount = req.Amount
			f.expenses[i].Category = req.Category
			return f.expenses[i], nil
		}
	}
	return core.Expense{}, &api.APIError{StatusCode: 404, Message: "Expense not found"}
}

func (f *fakeAPI) DeleteExpense(_ context.Context, id string) error {
	if err := f.hit("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return &api.APIError{StatusCode: 404, Message: "Expense not found"}
}

func (f *fakeAPI) ParseExpense(ctx context.Context, req core.ParseExpenseRequest) (core.Expense, error) {
	if err := f.hit("parse"); err != nil {
		return core.Expense{}, err
	}
	return f.CreateExpense(ctx, core.CreateExpenseRequest{
		UserID:        req.UserID,
		Title:         "Groceries",
		Amount:        core.MustMoney("500"),
		Category:      "Food & Dining",
		PaymentMethod: "Cash",
		Date:          core.NewDate(2026, 10, 18),
	})
}

func (f *fakeAPI) Leaderboard(context.Context) ([]core.LeaderboardEntry, error) {
	if err := f.hit("leaderboard"); err != nil {
		return nil, err
	}
	return []core.LeaderboardEntry{{UserID: "u1", Name: "Asha", TotalAmount: core.NewMoney(900)}}, nil
}

func (f *fakeAPI) PremiumStats(context.Context) (core.PremiumStats, error) {
	if err := f.hit("premiumStats"); err != nil {
		return nil, err
	}
	return core.PremiumStats{"users": 3}, nil
}

func (f *fakeAPI) Register(_ context.Context, req api.RegisterRequest) (core.Session, error) {
	if err := f.hit("register"); err != nil {
		return core.Session{}, err
	}
	return core.Session{UserID: "u-new", Name: req.Name, Email: req.Email, Token: "tok-new"}, nil
}

func (f *fakeAPI) Login(_ context.Context, req api.LoginRequest) (core.Session, error) {
	if err := f.hit("login"); err != nil {
		return core.Session{}, err
	}
	return core.Session{UserID: "u1", Name: "Asha", Email: req.Email, Token: "tok-1"}, nil
}

func (f *fakeAPI) Profile(context.Context) (api.Profile, error) {
	if err := f.hit("profile"); err != nil {
		return api.Profile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.Profile{Name: "Asha K", Email: "asha@example.com", IsPremium: f.premium["u1"]}, nil
}

func (f *fakeAPI) ForgotPassword(context.Context, string) (api.MessageResponse, error) {
	if err := f.hit("forgot"); err != nil {
		return api.MessageResponse{}, err
	}
	return api.MessageResponse{}, nil
}

func (f *fakeAPI) ResetPassword(context.Context, string, string) (api.MessageResponse, error) {
	if err := f.hit("reset"); err != nil {
		return api.MessageResponse{}, err
	}
	return api.MessageResponse{Message: "Password updated"}, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, req api.CreateOrderRequest) (api.Order, error) {
	if err := f.hit("order"); err != nil {
		return api.Order{}, err
	}
	return api.Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency}, nil
}

func (f *fakeAPI) VerifyPayment(_ context.Context, req api.VerifyPaymentRequest) (api.MessageResponse, error) {
	if err := f.hit("verify"); err != nil {
		return api.MessageResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.premium[req.UserID] = true
	return api.MessageResponse{Success: true}, nil
}

type fakeCheckout struct {
	err    error
	orders []api.Order
}

func (c *fakeCheckout) Pay(_ context.Context, order api.Order, _ core.Session) (CheckoutResult, error) {
	c.orders = append(c.orders, order)
	if c.err != nil {
		return CheckoutResult{}, c.err
	}
	return CheckoutResult{PaymentID: "pay_1", OrderID: order.ID, Signature: "sig"}, nil
}
