package views

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
)

// ExpenseWatcher subscribes to pages of the expense list.
type ExpenseWatcher interface {
	WatchExpenses(q services.ListQuery, fn func(cache.State[core.ExpensePage])) *cache.Subscription
}

// ListView is the paged, filtered expense list.
type ListView struct {
	*live[core.ExpensePage]
	svc    ExpenseWatcher
	userID string
	opts   Options

	qmu     sync.Mutex
	filters core.ExpenseFilters
	pager   *pagination.Pager
	active  bool
	seq     uint64
}

func NewListView(svc ExpenseWatcher, userID string, limit int, opts Options) *ListView {
	return &ListView{
		live:   newLive[core.ExpensePage](make(chan struct{}, 1)),
		svc:    svc,
		userID: userID,
		opts:   opts.withDefaults(),
		pager:  pagination.New(limit),
	}
}

func (v *ListView) Updates() <-chan struct{} { return v.updates }

func (v *ListView) Mount() {
	v.qmu.Lock()
	v.active = true
	v.qmu.Unlock()
	v.watch()
}

func (v *ListView) Unmount() {
	v.qmu.Lock()
	v.active = false
	v.seq++
	v.qmu.Unlock()
	v.detach()
}

func (v *ListView) query() services.ListQuery {
	return services.ListQuery{
		UserID:  v.userID,
		Filters: v.filters,
		Page:    v.pager.Page,
		Limit:   v.pager.Limit,
	}
}

// watch subscribes to the current page and filters.
func (v *ListView) watch() {
	v.qmu.Lock()
	if !v.active {
		v.qmu.Unlock()
		return
	}
	v.seq++
	seq, q := v.seq, v.query()
	v.qmu.Unlock()

	sub := v.svc.WatchExpenses(q, func(st cache.State[core.ExpensePage]) {
		v.receive(seq, q.Page, st)
	})

	v.qmu.Lock()
	defer v.qmu.Unlock()
	if seq != v.seq {
		sub.Unsubscribe()
		return
	}
	v.attach(sub)
}

func (v *ListView) receive(seq uint64, page int, st cache.State[core.ExpensePage]) {
	v.qmu.Lock()
	if seq != v.seq {
		v.qmu.Unlock()
		return
	}
	moved := false
	if st.HasData {
		v.pager.SetTotal(st.Data.Total)
		moved = v.pager.Page != page
	}
	v.qmu.Unlock()

	v.set(st)
	if moved {
		// the list shrank under the current page
		v.opts.Logger.Debug("List page out of range", log.FieldOperation, log.OpList, "page", page, "total", st.Data.Total)
		go v.watch()
	}
}

// SetPage moves to page and re-subscribes when mounted.
func (v *ListView) SetPage(page int) {
	v.qmu.Lock()
	if page < 1 {
		page = 1
	}
	if v.pager.Total > 0 {
		v.pager.SetPage(page)
	} else {
		v.pager.Page = page
	}
	v.qmu.Unlock()
	v.watch()
}

func (v *ListView) Next() {
	v.qmu.Lock()
	page := v.pager.Page + 1
	v.qmu.Unlock()
	v.SetPage(page)
}

func (v *ListView) Prev() {
	v.qmu.Lock()
	page := v.pager.Page - 1
	v.qmu.Unlock()
	v.SetPage(page)
}

// SetFilters replaces the filters and goes back to the first page.
func (v *ListView) SetFilters(f core.ExpenseFilters) {
	v.qmu.Lock()
	v.filters = f
	v.pager.Page = 1
	v.qmu.Unlock()
	v.watch()
}

// SetLimit changes the page size and goes back to the first page.
func (v *ListView) SetLimit(limit int) {
	v.qmu.Lock()
	v.pager.SetLimit(limit)
	v.qmu.Unlock()
	v.watch()
}

func (v *ListView) Wait(ctx context.Context) error {
	return waitFor(ctx, v.updates, func() bool { return !v.loading() })
}

func (v *ListView) Retry(ctx context.Context) error {
	err := v.retry(ctx)
	if err != nil && !errors.Is(err, ErrNotMounted) {
		v.opts.Logger.WarnContext(ctx, "List retry failed", log.FieldOperation, log.OpList, log.FieldError, err.Error())
	}
	return err
}

type pageButton struct {
	N       int
	Current bool
}

type listData struct {
	Status     status
	Rows       []expenseRow
	Total      string
	Count      int
	TotalItems int
	Filtered   bool
	Page       int
	Pages      int
	Window     []pageButton
	HasPrev    bool
	HasNext    bool
}

func (v *ListView) data() listData {
	st := v.current()
	v.qmu.Lock()
	pager := *v.pager
	filtered := !v.filters.IsEmpty()
	v.qmu.Unlock()

	d := listData{
		Status:   statusOf(st),
		Filtered: filtered,
		Page:     pager.Page,
		Pages:    pager.TotalPages(),
		HasPrev:  pager.HasPrev(),
		HasNext:  pager.HasNext(),
	}
	for _, n := range pager.Window() {
		d.Window = append(d.Window, pageButton{N: n, Current: n == pager.Page})
	}

	now := v.opts.Now()
	sum := decimal.Zero
	for _, e := range st.Data.Expenses {
		d.Rows = append(d.Rows, rowOf(e, v.opts.Currency, now))
		sum = sum.Add(e.Amount.Decimal)
	}
	d.Total = core.FormatCurrency(sum, v.opts.Currency)
	d.Count = len(st.Data.Expenses)
	d.TotalItems = st.Data.Total
	return d
}

// VisibleTotal sums the amounts on the current page.
func (v *ListView) VisibleTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range v.current().Data.Expenses {
		sum = sum.Add(e.Amount.Decimal)
	}
	return sum
}

func (v *ListView) Render(w io.Writer) error {
	return execute(w, "expense_list", v.data())
}
