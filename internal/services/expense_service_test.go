package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
)

func newExpenseService(t *testing.T) (*ExpenseService, *fakeAPI, *cache.Store) {
	t.Helper()
	fake := newFakeAPI()
	store := cache.New(cache.Options{})
	return NewExpenseService(fake, store, nil), fake, store
}

func lunch(userID string) core.CreateExpenseRequest {
	return core.CreateExpenseRequest{
		UserID:        userID,
		Title:         "Lunch",
		Amount:        core.MustMoney("12.50"),
		Category:      "Food & Dining",
		PaymentMethod: "Credit Card",
		Date:          core.NewDate(2026, 10, 18),
		Tags:          []string{"work"},
	}
}

// waitSettled reads states until a loaded one satisfies pred.
func waitSettled[T any](t *testing.T, ch <-chan cache.State[T], pred func(T) bool) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if st.HasData && !st.Loading && pred(st.Data) {
				return st.Data
			}
		case <-timeout:
			t.Fatal("timed out waiting for state")
			var zero T
			return zero
		}
	}
}

func TestListQuery_EmptyFiltersShareKeyWithNoFilters(t *testing.T) {
	plain := ListQuery{UserID: "u1", Page: 1, Limit: 10}
	blank := ListQuery{UserID: "u1", Page: 1, Limit: 10, Filters: core.ExpenseFilters{Search: "  ", Tags: []string{}}}
	assert.Equal(t, plain.Key(), blank.Key())

	other := ListQuery{UserID: "u1", Page: 1, Limit: 10, Filters: core.ExpenseFilters{Category: "Travel"}}
	assert.NotEqual(t, plain.Key(), other.Key())
}

func TestExpenseService_ListIsCached(t *testing.T) {
	svc, fake, _ := newExpenseService(t)
	ctx := context.Background()

	q := ListQuery{UserID: "u1", Page: 1, Limit: 10}
	_, err := svc.ListExpenses(ctx, q)
	require.NoError(t, err)
	_, err = svc.ListExpenses(ctx, ListQuery{UserID: "u1", Page: 1, Limit: 10, Filters: core.ExpenseFilters{Search: " "}})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.count("list"))

	_, err = svc.ListExpenses(ctx, ListQuery{})
	assert.ErrorIs(t, err, core.ErrMissingUser)
}

func TestExpenseService_CreateRefreshesMountedViews(t *testing.T) {
	svc, fake, _ := newExpenseService(t)
	ctx := context.Background()

	lists := make(chan cache.State[core.ExpensePage], 32)
	stats := make(chan cache.State[core.ExpenseStats], 32)
	listSub := svc.WatchExpenses(ListQuery{UserID: "u1", Page: 1, Limit: 10}, func(s cache.State[core.ExpensePage]) { lists <- s })
	defer listSub.Unsubscribe()
	statsSub := svc.WatchStats("u1", func(s cache.State[core.ExpenseStats]) { stats <- s })
	defer statsSub.Unsubscribe()

	waitSettled(t, lists, func(p core.ExpensePage) bool { return p.Total == 0 })
	waitSettled(t, stats, func(s core.ExpenseStats) bool { return s.TotalExpenses == 0 })

	created, err := svc.CreateExpense(ctx, lunch("u1"))
	require.NoError(t, err)

	page := waitSettled(t, lists, func(p core.ExpensePage) bool { return p.Total == 1 })
	assert.Equal(t, created.ID, page.Expenses[0].ID)
	st := waitSettled(t, stats, func(s core.ExpenseStats) bool { return s.TotalExpenses == 1 })
	assert.Equal(t, "12.5", st.TotalAmount.String())
	assert.Equal(t, 2, fake.count("list"))
}

func TestExpenseService_UnmountedListRefetchesOnNextRead(t *testing.T) {
	svc, fake, _ := newExpenseService(t)
	ctx := context.Background()
	q := ListQuery{UserID: "u1", Page: 1, Limit: 10}

	_, err := svc.ListExpenses(ctx, q)
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, lunch("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("list"), "nothing mounted, nothing refetched")

	page, err := svc.ListExpenses(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 2, fake.count("list"))
}

func TestExpenseService_UpdateInvalidatesListsAndStats(t *testing.T) {
	svc, _, store := newExpenseService(t)
	ctx := context.Background()

	created, err := svc.CreateExpense(ctx, lunch("u1"))
	require.NoError(t, err)
	q := ListQuery{UserID: "u1", Page: 1, Limit: 10}
	_, err = svc.ListExpenses(ctx, q)
	require.NoError(t, err)
	_, err = svc.Stats(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Leaderboard(ctx)
	require.NoError(t, err)

	req := core.UpdateExpenseRequest{ID: created.ID, CreateExpenseRequest: lunch("u1")}
	req.Title = "Team lunch"
	_, err = svc.UpdateExpense(ctx, req)
	require.NoError(t, err)

	listSnap, _ := store.Snapshot(q.Key())
	statsSnap, _ := store.Snapshot(statsKey("u1"))
	boardSnap, _ := store.Snapshot(leaderboardKey)
	assert.True(t, listSnap.Stale)
	assert.True(t, statsSnap.Stale)
	assert.False(t, boardSnap.Stale)

	page, err := svc.ListExpenses(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "Team lunch", page.Expenses[0].Title)
}

func TestExpenseService_FailedMutationKeepsCache(t *testing.T) {
	svc, fake, store := newExpenseService(t)
	ctx := context.Background()
	q := ListQuery{UserID: "u1", Page: 1, Limit: 10}
	_, err := svc.ListExpenses(ctx, q)
	require.NoError(t, err)

	fake.failWith(&api.APIError{StatusCode: 500, Message: "db down"})
	_, err = svc.CreateExpense(ctx, lunch("u1"))
	require.Error(t, err)
	assert.Equal(t, 500, api.StatusCode(err))

	snap, _ := store.Snapshot(q.Key())
	assert.False(t, snap.Stale)

	err = svc.DeleteExpense(ctx, "missing")
	assert.True(t, api.IsNotFound(err))
	snap, _ = store.Snapshot(q.Key())
	assert.False(t, snap.Stale)
}

func TestExpenseService_InvalidInputNeverReachesNetwork(t *testing.T) {
	svc, fake, _ := newExpenseService(t)
	ctx := context.Background()

	bad := lunch("u1")
	bad.IsRecurring = true
	_, err := svc.CreateExpense(ctx, bad)
	assert.ErrorIs(t, err, core.ErrMissingFrequency)

	_, err = svc.UpdateExpense(ctx, core.UpdateExpenseRequest{CreateExpenseRequest: lunch("u1")})
	assert.ErrorIs(t, err, core.ErrMissingID)

	assert.ErrorIs(t, svc.DeleteExpense(ctx, ""), core.ErrMissingID)

	_, err = svc.ParseExpense(ctx, "u1", "   ")
	assert.ErrorIs(t, err, core.ErrEmptyText)

	assert.Zero(t, fake.count("create")+fake.count("update")+fake.count("delete")+fake.count("parse"))
}

func TestExpenseService_ParseInvalidatesLikeCreate(t *testing.T) {
	svc, _, store := newExpenseService(t)
	ctx := context.Background()

	_, err := svc.Stats(ctx, "u1")
	require.NoError(t, err)

	e, err := svc.ParseExpense(ctx, "u1", "I spent 500 on groceries today")
	require.NoError(t, err)
	assert.Equal(t, "500", e.Amount.String())
	assert.NotEmpty(t, e.Category)

	snap, _ := store.Snapshot(statsKey("u1"))
	assert.True(t, snap.Stale)
}

func TestExpenseService_PremiumQueries(t *testing.T) {
	svc, fake, _ := newExpenseService(t)
	ctx := context.Background()

	board, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	_, _ = svc.Leaderboard(ctx)
	assert.Equal(t, 1, fake.count("leaderboard"))

	ps, err := svc.PremiumStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ps["users"])
}
