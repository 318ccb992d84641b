package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Expense struct {
		ID                 string    `json:"_id"`
		UserID             string    `json:"userId,omitempty"`
		Title              string    `json:"title"`
		Description        string    `json:"description"`
		Amount             Money     `json:"amount"`
		Category           string    `json:"category"`
		Tags               []string  `json:"tags"`
		Date               Date      `json:"date"`
		PaymentMethod      string    `json:"paymentMethod"`
		IsRecurring        bool      `json:"isRecurring"`
		RecurringFrequency Frequency `json:"recurringFrequency,omitempty"`
		CreatedAt          time.Time `json:"createdAt"`
		UpdatedAt          time.Time `json:"updatedAt"`
	}

	// CreateExpenseRequest is the body of POST /expenses/.
	CreateExpenseRequest struct {
		UserID             string    `json:"userId"`
		Title              string    `json:"title"`
		Description        string    `json:"description"`
		Amount             Money     `json:"amount"`
		Category           string    `json:"category"`
		Tags               []string  `json:"tags"`
		Date               Date      `json:"date"`
		PaymentMethod      string    `json:"paymentMethod"`
		IsRecurring        bool      `json:"isRecurring"`
		RecurringFrequency Frequency `json:"recurringFrequency,omitempty"`
	}

	// UpdateExpenseRequest is the body of PUT /expenses/:id. ID travels in the path.
	UpdateExpenseRequest struct {
		ID string `json:"-"`
		CreateExpenseRequest
	}

	// ParseExpenseRequest asks the remote service to turn free text into an expense.
	ParseExpenseRequest struct {
		UserID string `json:"userId"`
		Text   string `json:"text"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrEmptyTitle         = errors.New("empty title")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
	ErrMissingDate        = errors.New("missing date")
	ErrMissingFrequency   = errors.New("recurring expense needs a frequency")
	ErrUnexpectedFreq     = errors.New("frequency set on a non-recurring expense")
	ErrMissingUser        = errors.New("missing user id")
	ErrMissingID          = errors.New("missing expense id")
	ErrEmptyText          = errors.New("empty text")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (e Expense) Validate() error {
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return checkRecurrence(e.IsRecurring, e.RecurringFrequency)
}

func (r CreateExpenseRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	if r.Date.IsZero() {
		return ErrMissingDate
	}
	return checkRecurrence(r.IsRecurring, r.RecurringFrequency)
}

func (r UpdateExpenseRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	return r.CreateExpenseRequest.Validate()
}

func (r ParseExpenseRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

func checkRecurrence(recurring bool, freq Frequency) error {
	if recurring && freq == "" {
		return ErrMissingFrequency
	}
	if !recurring && freq != "" {
		return ErrUnexpectedFreq
	}
	return nil
}
