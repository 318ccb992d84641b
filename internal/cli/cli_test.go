package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/api"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/router"
	"expensetracker/internal/services"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory expense tracker backend.
type fakeAPI struct {
	mu       sync.Mutex
	premium  bool
	expenses []core.Expense
	created  []core.CreateExpenseRequest
	deleted  []string
	parsed   []core.ParseExpenseRequest
	// parseFailures makes the next parse calls fail with a server error.
	parseFailures int
	verified      []api.VerifyPaymentRequest
	auth          []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		expenses: []core.Expense{
			{ID: "e1", Title: "Lunch", Amount: core.MustMoney("12.50"), Category: "Food & Dining",
				PaymentMethod: "Cash", Date: core.NewDate(2026, 10, 17)},
			{ID: "e2", Title: "Taxi", Amount: core.MustMoney("30"), Category: "Transportation",
				PaymentMethod: "Credit Card", Date: core.NewDate(2026, 10, 16)},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			http.Error(w, `{"message":"Invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		premium := f.premium
		f.mu.Unlock()
		writeJSON(w, core.Session{UserID: "u1", Name: "Ada", Email: req.Email, Token: "tok", IsPremium: premium})
	})
	mux.HandleFunc("GET /expenses/Users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, core.ExpensePage{Expenses: f.expenses, Total: len(f.expenses), Page: 1, Limit: 10})
	})
	mux.HandleFunc("POST /expenses/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req core.CreateExpenseRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.created = append(f.created, req)
		f.mu.Unlock()
		writeJSON(w, core.Expense{ID: "e3", Title: req.Title, Amount: req.Amount, Category: req.Category,
			PaymentMethod: req.PaymentMethod, Date: req.Date})
	})
	mux.HandleFunc("DELETE /expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		writeJSON(w, api.MessageResponse{Message: "deleted"})
	})
	mux.HandleFunc("POST /expenses/gemini-expense", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req core.ParseExpenseRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.parsed = append(f.parsed, req)
		fail := f.parseFailures > 0
		if fail {
			f.parseFailures--
		}
		f.mu.Unlock()
		if fail {
			http.Error(w, `{"message":"model unavailable"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"data": core.Expense{ID: "e4", Title: "Groceries", Amount: core.MustMoney("500"),
			Category: "Food & Dining", Date: core.NewDate(2026, 10, 18)}})
	})
	mux.HandleFunc("POST /payment/create-order", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{"order": api.Order{ID: "order_1", Amount: 29900, Currency: "INR"}})
	})
	mux.HandleFunc("POST /payment/verify", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req api.VerifyPaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.verified = append(f.verified, req)
		f.premium = true
		f.mu.Unlock()
		writeJSON(w, api.MessageResponse{Success: true})
	})
	mux.HandleFunc("GET /Premium/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, []core.LeaderboardEntry{{UserID: "u1", Name: "Ada", TotalAmount: core.MustMoney("900"), TotalExpenses: 3}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:           baseURL,
		APITimeout:           5 * time.Second,
		SessionBackend:       "memory",
		CacheMaxEntries:      64,
		CacheRetention:       time.Minute,
		CacheCleanupInterval: time.Minute,
		PageSize:             10,
		Currency:             "USD",
		SpeechLanguage:       "en-US",
	}
}

type testApp struct {
	*App
	out *bytes.Buffer
}

func newTestApp(t *testing.T, baseURL, input string) testApp {
	t.Helper()
	out := &bytes.Buffer{}
	a, err := NewApp(context.Background(), testConfig(baseURL), nil, IO{
		In:  strings.NewReader(input),
		Out: out,
		Err: io.Discard,
	})
	require.NoError(t, err)
	a.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return testApp{App: a, out: out}
}

func (a testApp) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, a.Run(context.Background(), []string{"login", "--email", "ada@example.com", "--password", "secret"}))
}

func TestRun_GuardsRoutes(t *testing.T) {
	_, srv := newFakeAPI(t)

	tests := []struct {
		name   string
		login  bool
		args   []string
		wantTo string
	}{
		{"list without session", false, []string{"list"}, router.LoginPath},
		{"dashboard without session", false, []string{"dashboard"}, router.LoginPath},
		{"leaderboard without session", false, []string{"leaderboard"}, router.LoginPath},
		{"leaderboard on free plan", true, []string{"leaderboard"}, router.UpgradePath},
		{"voice on free plan", true, []string{"voice"}, router.UpgradePath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, srv.URL, "")
			if tt.login {
				a.signIn(t)
			}
			err := a.Run(context.Background(), tt.args)
			var redirect *RedirectError
			require.ErrorAs(t, err, &redirect)
			assert.Equal(t, tt.wantTo, redirect.To)
		})
	}
}

func TestRedirectError_Messages(t *testing.T) {
	assert.Equal(t, "list needs a signed-in user: run 'tracker login'",
		(&RedirectError{Command: "list", To: router.LoginPath}).Error())
	assert.Equal(t, "analytics is a premium feature: run 'tracker upgrade'",
		(&RedirectError{Command: "analytics", To: router.UpgradePath}).Error())
}

func TestRun_UnknownCommand(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")

	err := a.Run(context.Background(), []string{"frobnicate"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestRun_HelpListsCommands(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")

	require.NoError(t, a.Run(context.Background(), nil))
	out := a.out.String()
	for _, name := range []string{"login", "list", "voice", "upgrade", "reset-password"} {
		assert.Contains(t, out, name)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")

	err := a.Run(context.Background(), []string{"login", "--email", "ada@example.com", "--password", "nope"})
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Nil(t, a.Sessions.Current())
}

func TestList_RendersPageWithBearerToken(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"list"}))

	out := a.out.String()
	assert.Contains(t, out, "Lunch")
	assert.Contains(t, out, "Taxi")
	assert.Contains(t, out, "Visible total: $42.50 (2 of 2)")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.auth)
	assert.Equal(t, "Bearer tok", fake.auth[0])
}

func TestList_RejectsBadFilters(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	err := a.Run(context.Background(), []string{"list", "--from", "2026-10-18", "--to", "2026-10-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "End date is before start date")
}

func TestAdd_SendsValidatedRequest(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	err := a.Run(context.Background(), []string{"add",
		"--title", "Coffee", "--amount", "3,40", "--category", "Food & Dining",
		"--payment", "Cash", "--tags", "work, morning", "--recurring", "weekly"})
	require.NoError(t, err)
	assert.Contains(t, a.out.String(), "Added Coffee ($3.40) on 2026-10-18.")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.created, 1)
	req := fake.created[0]
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "3.4", req.Amount.String())
	assert.Equal(t, []string{"work", "morning"}, req.Tags)
	assert.True(t, req.IsRecurring)
	assert.Equal(t, core.Weekly, req.RecurringFrequency)
}

func TestAdd_ReportsFieldErrors(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	err := a.Run(context.Background(), []string{"add", "--title", "Coffee", "--amount", "-3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.created)
}

func TestDelete_WithYes(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"delete", "--id", "e2", "--yes"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"e2"}, fake.deleted)
}

func TestFindExpense(t *testing.T) {
	_, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "")
	a.signIn(t)

	e, err := a.findExpense(context.Background(), "e2")
	require.NoError(t, err)
	assert.Equal(t, "Taxi", e.Title)

	_, err = a.findExpense(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestUpgrade_UnlocksPremiumRoutes(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "pay_1\nsig_1\n")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"upgrade"}))
	out := a.out.String()
	assert.Contains(t, out, "order_1")
	assert.Contains(t, out, "₹299")
	assert.Contains(t, out, "Premium unlocked")
	assert.True(t, a.Sessions.Current().IsPremium)

	fake.mu.Lock()
	require.Len(t, fake.verified, 1)
	assert.Equal(t, "pay_1", fake.verified[0].PaymentID)
	assert.Equal(t, "order_1", fake.verified[0].OrderID)
	assert.Equal(t, "sig_1", fake.verified[0].Signature)
	fake.mu.Unlock()

	require.NoError(t, a.Run(context.Background(), []string{"leaderboard"}))
	assert.Contains(t, a.out.String(), "Ada")
}

func TestUpgrade_BlankPaymentCancels(t *testing.T) {
	fake, srv := newFakeAPI(t)
	a := newTestApp(t, srv.URL, "\n")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"upgrade"}))
	assert.Contains(t, a.out.String(), "Checkout canceled")
	assert.False(t, a.Sessions.Current().IsPremium)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.verified)
}

func TestVoice_TypedTranscript(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.premium = true
	a := newTestApp(t, srv.URL, "  spent 500 on groceries  \n")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"voice", "--yes"}))
	out := a.out.String()
	assert.Contains(t, out, `Heard: "spent 500 on groceries"`)
	assert.Contains(t, out, "You spent $500.00 on Groceries in the category Food & Dining on 2026-10-18.")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.parsed, 1)
	assert.Equal(t, "u1", fake.parsed[0].UserID)
}

func TestVoice_RetryAfterFailedSaveKeepsTranscript(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.premium = true
	fake.parseFailures = 1
	a := newTestApp(t, srv.URL, "spent 500 on groceries\ny\ny\n")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"voice"}))
	assert.Contains(t, a.out.String(), "Retry?")
	assert.Contains(t, a.out.String(), "You spent $500.00 on Groceries")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.parsed, 2)
	assert.Equal(t, fake.parsed[0].Text, fake.parsed[1].Text)
}

func TestVoice_FailedSaveWithYesReturnsError(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.premium = true
	fake.parseFailures = 1
	a := newTestApp(t, srv.URL, "spent 500 on groceries\n")
	a.signIn(t)

	require.Error(t, a.Run(context.Background(), []string{"voice", "--yes"}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.parsed, 1)
}

func TestVoice_DeclinedTranscriptIsNotSent(t *testing.T) {
	fake, srv := newFakeAPI(t)
	fake.premium = true
	a := newTestApp(t, srv.URL, "spent 500 on groceries\nn\n")
	a.signIn(t)

	require.NoError(t, a.Run(context.Background(), []string{"voice"}))
	assert.Contains(t, a.out.String(), "Discarded.")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.parsed)
}

func TestPrompter_CanceledReadKeepsLine(t *testing.T) {
	pr, pw := io.Pipe()
	p := NewPrompter(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.ReadLine(ctx)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	go func() { _, _ = pw.Write([]byte("yes\n")) }()
	line, err := p.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yes", line)
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"no\n", true, false},
	}
	for _, tt := range tests {
		p := NewPrompter(strings.NewReader(tt.input), io.Discard)
		got, err := p.Confirm(context.Background(), "Save?", tt.def)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestPrompter_PipedPasswordIsALine(t *testing.T) {
	p := NewPrompter(strings.NewReader("hunter2\r\n"), io.Discard)
	assert.False(t, p.Interactive())

	pw, err := p.Password(context.Background(), "Password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

func TestTerminalCheckout(t *testing.T) {
	order := api.Order{ID: "order_9", Amount: 29900, Currency: "INR"}
	payer := core.Session{UserID: "u1", Email: "ada@example.com"}

	t.Run("collects payment id and signature", func(t *testing.T) {
		out := &bytes.Buffer{}
		c := NewTerminalCheckout(NewPrompter(strings.NewReader("pay_9\nsig_9\n"), out), out)
		res, err := c.Pay(context.Background(), order, payer)
		require.NoError(t, err)
		assert.Equal(t, services.CheckoutResult{PaymentID: "pay_9", OrderID: "order_9", Signature: "sig_9"}, res)
		assert.Contains(t, out.String(), "ada@example.com")
	})

	t.Run("blank signature cancels", func(t *testing.T) {
		c := NewTerminalCheckout(NewPrompter(strings.NewReader("pay_9\n\n"), io.Discard), io.Discard)
		_, err := c.Pay(context.Background(), order, payer)
		assert.True(t, errors.Is(err, services.ErrCheckoutCanceled))
	})
}

func TestSetupLogger_WritesToGivenOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := SetupLogger("debug", buf)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}
