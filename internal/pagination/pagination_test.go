package pagination

import (
	"reflect"
	"testing"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, limit int
		want         int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{47, 10, 5},
		{47, 5, 10},
		{100, 25, 4},
	}

	for _, tt := range tests {
		p := &Pager{Page: 1, Limit: tt.limit, Total: tt.total}
		if got := p.TotalPages(); got != tt.want {
			t.Errorf("TotalPages(total=%d, limit=%d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           []int
	}{
		{"no pages", 1, 0, []int{}},
		{"single page", 1, 1, []int{1}},
		{"five pages from first", 1, 5, []int{1, 2, 3, 4, 5}},
		{"five pages from last", 5, 5, []int{1, 2, 3, 4, 5}},
		{"three pages", 2, 3, []int{1, 2, 3}},
		{"clamped at start", 1, 10, []int{1, 2, 3, 4, 5}},
		{"second page", 2, 10, []int{1, 2, 3, 4, 5}},
		{"centred", 6, 10, []int{4, 5, 6, 7, 8}},
		{"clamped at end", 10, 10, []int{6, 7, 8, 9, 10}},
		{"near end", 9, 10, []int{6, 7, 8, 9, 10}},
		{"current out of range", 42, 7, []int{3, 4, 5, 6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(tt.current, tt.total)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Window(%d, %d) = %v, want %v", tt.current, tt.total, got, tt.want)
			}
			if len(got) > MaxButtons {
				t.Errorf("window has %d buttons", len(got))
			}
		})
	}
}

func TestPager_FortySevenItems(t *testing.T) {
	p := New(10)
	p.SetTotal(47)

	if got := p.TotalPages(); got != 5 {
		t.Fatalf("TotalPages() = %d, want 5", got)
	}
	if got := p.Window(); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("Window() on page 1 = %v", got)
	}
	p.SetPage(5)
	if got := p.Window(); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("Window() on page 5 = %v", got)
	}
	if p.HasNext() || !p.HasPrev() {
		t.Errorf("page 5 of 5: HasNext=%v HasPrev=%v", p.HasNext(), p.HasPrev())
	}
}

func TestPager_Navigation(t *testing.T) {
	p := New(10)
	p.SetTotal(95)

	p.SetPage(99)
	if p.Page != 10 {
		t.Errorf("SetPage(99) = %d, want 10", p.Page)
	}
	p.SetPage(-3)
	if p.Page != 1 {
		t.Errorf("SetPage(-3) = %d, want 1", p.Page)
	}

	p.Next()
	p.Next()
	if p.Page != 3 {
		t.Errorf("after two Next() page = %d, want 3", p.Page)
	}
	p.Prev()
	if p.Page != 2 {
		t.Errorf("after Prev() page = %d, want 2", p.Page)
	}

	p.SetLimit(25)
	if p.Page != 1 || p.Limit != 25 {
		t.Errorf("SetLimit(25) = page %d limit %d, want page 1 limit 25", p.Page, p.Limit)
	}
	if p.TotalPages() != 4 {
		t.Errorf("TotalPages() = %d, want 4", p.TotalPages())
	}
}

func TestPager_ShrinkingTotalClampsPage(t *testing.T) {
	p := New(10)
	p.SetTotal(50)
	p.SetPage(5)

	p.SetTotal(31)
	if p.Page != 4 {
		t.Errorf("page after shrink = %d, want 4", p.Page)
	}

	p.SetTotal(0)
	if p.Page != 1 || p.HasNext() || p.HasPrev() {
		t.Errorf("empty list: page=%d next=%v prev=%v", p.Page, p.HasNext(), p.HasPrev())
	}
}

func TestNew_DefaultsLimit(t *testing.T) {
	if p := New(0); p.Limit != DefaultLimit || p.Page != 1 {
		t.Errorf("New(0) = %+v", p)
	}
}
