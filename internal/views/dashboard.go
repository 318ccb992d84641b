package views

import (
	"context"
	"errors"
	"io"
	"sort"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

// RecentCount is how many expenses the dashboard shows.
const RecentCount = 3

// DashboardWatcher is what the dashboard subscribes to.
type DashboardWatcher interface {
	ExpenseWatcher
	StatsWatcher
}

// DashboardView combines the stats cards with the most recent expenses.
type DashboardView struct {
	stats   *live[core.ExpenseStats]
	recent  *live[core.ExpensePage]
	updates chan struct{}
	svc     DashboardWatcher
	userID  string
	name    string
	opts    Options
}

func NewDashboardView(svc DashboardWatcher, userID, name string, opts Options) *DashboardView {
	updates := make(chan struct{}, 1)
	return &DashboardView{
		stats:   newLive[core.ExpenseStats](updates),
		recent:  newLive[core.ExpensePage](updates),
		updates: updates,
		svc:     svc,
		userID:  userID,
		name:    name,
		opts:    opts.withDefaults(),
	}
}

func (v *DashboardView) recentQuery() services.ListQuery {
	return services.ListQuery{UserID: v.userID, Page: 1, Limit: RecentCount}
}

func (v *DashboardView) Mount() {
	v.stats.attach(v.svc.WatchStats(v.userID, v.stats.set))
	v.recent.attach(v.svc.WatchExpenses(v.recentQuery(), v.recent.set))
}

func (v *DashboardView) Unmount() {
	v.stats.detach()
	v.recent.detach()
}

func (v *DashboardView) Updates() <-chan struct{} { return v.updates }

func (v *DashboardView) Wait(ctx context.Context) error {
	return waitFor(ctx, v.updates, func() bool {
		return !v.stats.loading() && !v.recent.loading()
	})
}

// Retry refetches both panels and joins their errors.
func (v *DashboardView) Retry(ctx context.Context) error {
	errStats := v.stats.retry(ctx)
	errRecent := v.recent.retry(ctx)
	return errors.Join(errStats, errRecent)
}

// recentExpenses returns the newest expenses of a page, newest first.
func recentExpenses(page core.ExpensePage, n int) []core.Expense {
	out := append([]core.Expense(nil), page.Expenses...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (v *DashboardView) Render(w io.Writer) error {
	stats, recent := v.stats.current(), v.recent.current()
	d := struct {
		Name         string
		StatsStatus  status
		Cards        []card
		RecentStatus status
		Recent       []expenseRow
	}{
		Name:         v.name,
		StatsStatus:  statusOf(stats),
		RecentStatus: statusOf(recent),
	}
	if stats.HasData {
		d.Cards = statsCards(stats.Data, v.opts.Currency)
	}
	now := v.opts.Now()
	for _, e := range recentExpenses(recent.Data, RecentCount) {
		d.Recent = append(d.Recent, rowOf(e, v.opts.Currency, now))
	}
	return execute(w, "dashboard", d)
}

var (
	_ View = (*ListView)(nil)
	_ View = (*StatsView)(nil)
	_ View = (*LeaderboardView)(nil)
	_ View = (*AnalyticsView)(nil)
	_ View = (*DashboardView)(nil)
)
