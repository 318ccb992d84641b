// Package views renders the client's screens from live cache subscriptions.
// A view keeps the latest snapshot of every query it mounts and signals
// Updates whenever one changes; Render draws whatever it holds, including
// retained data next to a retry hint after a failed refetch.
package views

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/web"
)

var ErrNotMounted = errors.New("view is not mounted")

// View is one screen bound to cached queries.
type View interface {
	Mount()
	Unmount()
	// Wait blocks until no mounted query is loading for the first time.
	Wait(ctx context.Context) error
	Render(w io.Writer) error
	Retry(ctx context.Context) error
	Updates() <-chan struct{}
}

// Options are shared by all views.
type Options struct {
	Currency string
	Now      func() time.Time
	Logger   *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	o.Logger = o.Logger.WithComponent(log.ComponentView)
	return o
}

var templates = template.Must(template.ParseFS(web.TemplatesFS, "templates/*.tmpl"))

// execute renders a named template through a tabwriter so tab-separated
// columns line up.
func execute(w io.Writer, name string, data any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := templates.ExecuteTemplate(tw, name, data); err != nil {
		return err
	}
	return tw.Flush()
}

// live holds the latest state of one subscription.
type live[T any] struct {
	mu      sync.Mutex
	state   cache.State[T]
	sub     *cache.Subscription
	updates chan struct{}
}

func newLive[T any](updates chan struct{}) *live[T] {
	return &live[T]{updates: updates, state: cache.State[T]{Loading: true}}
}

func (l *live[T]) set(st cache.State[T]) {
	l.mu.Lock()
	l.state = st
	l.mu.Unlock()
	select {
	case l.updates <- struct{}{}:
	default:
	}
}

func (l *live[T]) current() cache.State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// attach replaces the subscription, releasing the previous one.
func (l *live[T]) attach(sub *cache.Subscription) {
	l.mu.Lock()
	old := l.sub
	l.sub = sub
	l.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
}

func (l *live[T]) detach() {
	l.attach(nil)
}

func (l *live[T]) loading() bool {
	st := l.current()
	return st.Loading && !st.HasData && st.Err == nil
}

func (l *live[T]) retry(ctx context.Context) error {
	l.mu.Lock()
	sub := l.sub
	l.mu.Unlock()
	if sub == nil {
		return ErrNotMounted
	}
	_, err := sub.Refetch(ctx)
	return err
}

// waitFor blocks until ready reports true, rechecking on every update.
func waitFor(ctx context.Context, updates <-chan struct{}, ready func() bool) error {
	for !ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updates:
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// status is the template-facing summary of a query state.
type status struct {
	HasData    bool
	Loading    bool
	Refreshing bool
	Error      string
}

func statusOf[T any](st cache.State[T]) status {
	s := status{HasData: st.HasData}
	switch {
	case st.Err != nil:
		s.Error = st.Err.Error()
	case st.Loading && !st.HasData:
		s.Loading = true
	case st.Loading || st.Stale:
		s.Refreshing = true
	}
	return s
}

type expenseRow struct {
	ID            string
	Date          string
	Title         string
	Category      string
	PaymentMethod string
	Amount        string
	Tags          string
	Recurring     string
}

func rowOf(e core.Expense, currency string, now time.Time) expenseRow {
	r := expenseRow{
		ID:            e.ID,
		Date:          e.Date.String(),
		Title:         e.Title,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Amount:        core.FormatCurrency(e.Amount.Decimal, currency),
		Tags:          strings.Join(e.Tags, ", "),
	}
	if e.IsRecurring {
		r.Recurring = string(e.RecurringFrequency)
		if next, err := core.NextOccurrence(e.RecurringFrequency, e.Date, now); err == nil {
			r.Recurring += ", next " + next.String()
		}
	}
	return r
}

const barWidth = 24

// bar draws amount as a share of top.
func bar(amount, top decimal.Decimal) string {
	if !top.IsPositive() || !amount.IsPositive() {
		return ""
	}
	n := int(amount.Div(top).Mul(decimal.NewFromInt(barWidth)).Round(0).IntPart())
	if n < 1 {
		n = 1
	}
	if n > barWidth {
		n = barWidth
	}
	return strings.Repeat("#", n)
}
