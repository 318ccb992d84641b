// Package pagination computes page counts and the page-button window of the
// expense list.
package pagination

// MaxButtons is the widest page-button window.
const MaxButtons = 5

// DefaultLimit is used when a non-positive page size is given.
const DefaultLimit = 10

// Pager tracks the current page of a list of Total items.
type Pager struct {
	Page  int `json:"currentPage"`
	Limit int `json:"limit"`
	Total int `json:"totalItems"`
}

func New(limit int) *Pager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pager{Page: 1, Limit: limit}
}

// TotalPages is ceil(Total/Limit); an empty list has no pages.
func (p *Pager) TotalPages() int {
	if p.Total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// SetTotal records the item count reported by the service and pulls the
// current page back into range.
func (p *Pager) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.Total = total
	p.SetPage(p.Page)
}

// SetPage moves to page, clamped to [1, TotalPages].
func (p *Pager) SetPage(page int) {
	if last := p.TotalPages(); page > last {
		page = last
	}
	if page < 1 {
		page = 1
	}
	p.Page = page
}

// SetLimit changes the page size and goes back to the first page.
func (p *Pager) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	p.Limit = limit
	p.Page = 1
}

func (p *Pager) HasPrev() bool {
	return p.Page > 1
}

func (p *Pager) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p *Pager) Next() {
	p.SetPage(p.Page + 1)
}

func (p *Pager) Prev() {
	p.SetPage(p.Page - 1)
}

// Window returns the page buttons to show for the current page.
func (p *Pager) Window() []int {
	return Window(p.Page, p.TotalPages())
}

// Window lists at most MaxButtons pages centred on current, shifted so it
// never starts before 1 or runs past total.
func Window(current, total int) []int {
	if total <= 0 {
		return []int{}
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start, end := 1, total
	if total > MaxButtons {
		start = current - MaxButtons/2
		if start < 1 {
			start = 1
		}
		end = start + MaxButtons - 1
		if end > total {
			end = total
			start = end - MaxButtons + 1
		}
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
