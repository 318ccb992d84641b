package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// single is a view over one cached query.
type single[T any] struct {
	*live[T]
	subscribe func(fn func(cache.State[T])) *cache.Subscription
	opts      Options
	name      string
}

func newSingle[T any](name string, subscribe func(func(cache.State[T])) *cache.Subscription, opts Options) *single[T] {
	return &single[T]{
		live:      newLive[T](make(chan struct{}, 1)),
		subscribe: subscribe,
		opts:      opts.withDefaults(),
		name:      name,
	}
}

func (v *single[T]) Mount() {
	v.attach(v.subscribe(v.set))
}

func (v *single[T]) Unmount() {
	v.detach()
}

func (v *single[T]) Updates() <-chan struct{} { return v.updates }

func (v *single[T]) Wait(ctx context.Context) error {
	return waitFor(ctx, v.updates, func() bool { return !v.loading() })
}

func (v *single[T]) Retry(ctx context.Context) error {
	err := v.retry(ctx)
	if err != nil && !errors.Is(err, ErrNotMounted) {
		v.opts.Logger.WarnContext(ctx, "View retry failed", "view", v.name, log.FieldError, err.Error())
	}
	return err
}

// StatsWatcher subscribes to the aggregate statistics of a user.
type StatsWatcher interface {
	WatchStats(userID string, fn func(cache.State[core.ExpenseStats])) *cache.Subscription
}

// StatsView shows summary cards and text bar charts.
type StatsView struct {
	*single[core.ExpenseStats]
}

func NewStatsView(svc StatsWatcher, userID string, opts Options) *StatsView {
	return &StatsView{newSingle("stats", func(fn func(cache.State[core.ExpenseStats])) *cache.Subscription {
		return svc.WatchStats(userID, fn)
	}, opts)}
}

type card struct {
	Label string
	Value string
}

type barRow struct {
	Label  string
	Amount string
	Bar    string
}

type statsData struct {
	Status     status
	Cards      []card
	Categories []barRow
	Monthly    []barRow
	Methods    []barRow
}

func statsCards(s core.ExpenseStats, currency string) []card {
	cards := []card{
		{"Expenses", fmt.Sprint(s.TotalExpenses)},
		{"Total spent", core.FormatCurrency(s.TotalAmount.Decimal, currency)},
		{"Average expense", core.FormatCurrency(s.AverageExpense.Decimal, currency)},
	}
	b := s.BudgetStatus
	if b.TotalBudget.IsPositive() {
		cards = append(cards,
			card{"Budget", fmt.Sprintf("%s of %s (%.0f%%)",
				core.FormatCurrency(b.Spent.Decimal, currency),
				core.FormatCurrency(b.TotalBudget.Decimal, currency),
				b.Percentage)},
			card{"Remaining", core.FormatCurrency(b.Remaining.Decimal, currency)},
		)
	}
	return cards
}

// sortedBars orders a name to amount map by amount, largest first.
func sortedBars(m map[string]core.Money, currency string) []barRow {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := m[names[i]].Decimal, m[names[j]].Decimal
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return names[i] < names[j]
	})

	top := decimal.Zero
	if len(names) > 0 {
		top = m[names[0]].Decimal
	}
	rows := make([]barRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, barRow{
			Label:  name,
			Amount: core.FormatCurrency(m[name].Decimal, currency),
			Bar:    bar(m[name].Decimal, top),
		})
	}
	return rows
}

func monthlyBars(months []core.MonthlySpending, currency string) []barRow {
	top := decimal.Zero
	for _, m := range months {
		top = decimal.Max(top, m.Amount.Decimal)
	}
	rows := make([]barRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, barRow{
			Label:  m.Month,
			Amount: core.FormatCurrency(m.Amount.Decimal, currency),
			Bar:    bar(m.Amount.Decimal, top),
		})
	}
	return rows
}

func (v *StatsView) data() statsData {
	st := v.current()
	d := statsData{Status: statusOf(st)}
	if !st.HasData {
		return d
	}
	c := v.opts.Currency
	d.Cards = statsCards(st.Data, c)
	d.Categories = sortedBars(st.Data.CategoriesSpending, c)
	d.Monthly = monthlyBars(st.Data.MonthlySpending, c)
	d.Methods = sortedBars(st.Data.PaymentMethodDistribution, c)
	return d
}

func (v *StatsView) Render(w io.Writer) error {
	return execute(w, "stats", v.data())
}

// LeaderboardWatcher subscribes to the premium leaderboard.
type LeaderboardWatcher interface {
	WatchLeaderboard(fn func(cache.State[[]core.LeaderboardEntry])) *cache.Subscription
}

type LeaderboardView struct {
	*single[[]core.LeaderboardEntry]
}

func NewLeaderboardView(svc LeaderboardWatcher, opts Options) *LeaderboardView {
	return &LeaderboardView{newSingle("leaderboard", svc.WatchLeaderboard, opts)}
}

type leaderRow struct {
	Rank   int
	Name   string
	Amount string
	Count  int
}

// Render lists entries in the order the service ranked them.
func (v *LeaderboardView) Render(w io.Writer) error {
	st := v.current()
	d := struct {
		Status status
		Rows   []leaderRow
	}{Status: statusOf(st)}
	for i, e := range st.Data {
		name := e.Name
		if name == "" {
			name = e.Email
		}
		d.Rows = append(d.Rows, leaderRow{
			Rank:   i + 1,
			Name:   name,
			Amount: core.FormatCurrency(e.TotalAmount.Decimal, v.opts.Currency),
			Count:  e.TotalExpenses,
		})
	}
	return execute(w, "leaderboard", d)
}

// PremiumStatsWatcher subscribes to the premium analytics object.
type PremiumStatsWatcher interface {
	WatchPremiumStats(fn func(cache.State[core.PremiumStats])) *cache.Subscription
}

// AnalyticsView prints the premium statistics object key by key.
type AnalyticsView struct {
	*single[core.PremiumStats]
}

func NewAnalyticsView(svc PremiumStatsWatcher, opts Options) *AnalyticsView {
	return &AnalyticsView{newSingle("analytics", svc.WatchPremiumStats, opts)}
}

type keyValue struct {
	Key   string
	Value string
}

func (v *AnalyticsView) Render(w io.Writer) error {
	st := v.current()
	d := struct {
		Status status
		Rows   []keyValue
	}{Status: statusOf(st)}

	keys := make([]string, 0, len(st.Data))
	for k := range st.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Rows = append(d.Rows, keyValue{Key: k, Value: formatValue(st.Data[k])})
	}
	return execute(w, "analytics", d)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return "-"
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
