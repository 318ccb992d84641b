package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"expensetracker/internal/core"
)

var (
	// ErrEmptyParse means the service understood nothing in the submitted text.
	ErrEmptyParse = errors.New("parse returned no expense")
	// ErrInvalidExpense marks a returned expense that breaks the amount or
	// recurrence rules.
	ErrInvalidExpense = errors.New("invalid expense in response")
)

type (
	RegisterRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// Profile is the answer of GET /auth/profile.
	Profile struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		IsPremium bool   `json:"isPremium,omitempty"`
	}

	// MessageResponse is the generic {message} / {success} acknowledgement.
	MessageResponse struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
	}

	// CreateOrderRequest amounts are in minor units (paise for INR).
	CreateOrderRequest struct {
		UserID   string `json:"userId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}

	Order struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}

	// VerifyPaymentRequest carries the checkout's signed confirmation.
	VerifyPaymentRequest struct {
		PaymentID string `json:"razorpayPaymentId"`
		OrderID   string `json:"razorpayOrderId"`
		Signature string `json:"razorpaySignature"`
		UserID    string `json:"userId"`
	}
)

// ListExpenses fetches one page of a user's expenses. Only set filter fields
// are sent; page and limit are omitted when not positive.
func (c *Client) ListExpenses(ctx context.Context, userID string, filters core.ExpenseFilters, page, limit int) (core.ExpensePage, error) {
	if userID == "" {
		return core.ExpensePage{}, core.ErrMissingUser
	}
	q := filters.Values()
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out core.ExpensePage
	if err := c.Do(ctx, http.MethodGet, "/expenses/Users/"+userID, q, nil, &out); err != nil {
		return core.ExpensePage{}, err
	}
	for _, e := range out.Expenses {
		if err := checkExpense(e); err != nil {
			return core.ExpensePage{}, err
		}
	}
	if out.Page == 0 {
		out.Page = max(page, 1)
	}
	if out.Limit == 0 {
		out.Limit = limit
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, userID string) (core.ExpenseStats, error) {
	if userID == "" {
		return core.ExpenseStats{}, core.ErrMissingUser
	}
	var out core.ExpenseStats
	err := c.Do(ctx, http.MethodGet, "/expenses/stats/"+userID, nil, nil, &out)
	return out, err
}

// CreateExpense validates req before sending it.
func (c *Client) CreateExpense(ctx context.Context, req core.CreateExpenseRequest) (core.Expense, error) {
	if err := req.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("invalid expense: %w", err)
	}
	var out core.Expense
	err := c.Do(ctx, http.MethodPost, "/expenses/", nil, req, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, req core.UpdateExpenseRequest) (core.Expense, error) {
	if err := req.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("invalid expense: %w", err)
	}
	var out core.Expense
	err := c.Do(ctx, http.MethodPut, "/expenses/"+req.ID, nil, req, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrMissingID
	}
	return c.Do(ctx, http.MethodDelete, "/expenses/"+id, nil, nil, nil)
}

// ParseExpense asks the service to turn free text into a stored expense.
func (c *Client) ParseExpense(ctx context.Context, req core.ParseExpenseRequest) (core.Expense, error) {
	if err := req.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("invalid parse request: %w", err)
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/expenses/gemini-expense", nil, req, &raw); err != nil {
		return core.Expense{}, err
	}
	return decodeParsed(raw)
}

// decodeParsed accepts the expense itself or a {"data": expense} envelope.
func decodeParsed(raw json.RawMessage) (core.Expense, error) {
	var env struct {
		Data *core.Expense `json:"data"`
	}
	var out core.Expense
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		out = *env.Data
	} else if err := json.Unmarshal(raw, &out); err != nil {
		return core.Expense{}, fmt.Errorf("decode parsed expense: %w", err)
	}
	if out.Amount.IsZero() && out.Title == "" && out.Category == "" {
		return core.Expense{}, ErrEmptyParse
	}
	if err := checkExpense(out); err != nil {
		return core.Expense{}, err
	}
	return out, nil
}

func checkExpense(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: expense %q: %w", ErrInvalidExpense, e.ID, err)
	}
	return nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error) {
	var out []core.LeaderboardEntry
	err := c.Do(ctx, http.MethodGet, "/Premium/leaderboard", nil, nil, &out)
	return out, err
}

func (c *Client) PremiumStats(ctx context.Context) (core.PremiumStats, error) {
	var out core.PremiumStats
	err := c.Do(ctx, http.MethodGet, "/Premium/stats/premium", nil, nil, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (core.Session, error) {
	var out core.Session
	err := c.Do(ctx, http.MethodPost, "/auth/register", nil, req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (core.Session, error) {
	var out core.Session
	err := c.Do(ctx, http.MethodPost, "/auth/login", nil, req, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.Do(ctx, http.MethodGet, "/auth/profile", nil, nil, &out)
	return out, err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (MessageResponse, error) {
	var out MessageResponse
	err := c.Do(ctx, http.MethodPost, "/auth/forgot-password", nil, map[string]string{"email": email}, &out)
	return out, err
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (MessageResponse, error) {
	var out MessageResponse
	err := c.Do(ctx, http.MethodPut, "/auth/reset-password/"+token, nil, map[string]string{"password": password}, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var out struct {
		Order Order `json:"order"`
	}
	err := c.Do(ctx, http.MethodPost, "/payment/create-order", nil, req, &out)
	return out.Order, err
}

func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (MessageResponse, error) {
	var out MessageResponse
	err := c.Do(ctx, http.MethodPost, "/payment/verify", nil, req, &out)
	return out, err
}
