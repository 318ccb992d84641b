package forms

import (
	"errors"
	"time"

	"expensetracker/internal/core"
)

// ExpenseForm is the add/edit expense form. Values stay as typed until a
// request is built from them.
type ExpenseForm struct {
	Title         string
	Description   string
	Amount        string
	Category      string
	PaymentMethod string
	Date          string
	Tags          *TagSet

	recurring bool
	frequency string
}

// NewExpenseForm returns an empty form dated today.
func NewExpenseForm(today time.Time) *ExpenseForm {
	return &ExpenseForm{
		Date: today.Format("2006-01-02"),
		Tags: NewTagSet(),
	}
}

// LoadExpense pre-fills the form for editing e.
func (f *ExpenseForm) LoadExpense(e core.Expense) {
	f.Title = e.Title
	f.Description = e.Description
	f.Amount = e.Amount.String()
	f.Category = e.Category
	f.PaymentMethod = e.PaymentMethod
	f.Date = e.Date.String()
	f.Tags = NewTagSet(e.Tags...)
	f.recurring = e.IsRecurring
	f.frequency = ""
	if e.IsRecurring {
		f.frequency = string(e.RecurringFrequency)
	}
}

// SetRecurring toggles recurrence; turning it off drops the frequency.
func (f *ExpenseForm) SetRecurring(on bool) {
	f.recurring = on
	if !on {
		f.frequency = ""
	}
}

func (f *ExpenseForm) Recurring() bool {
	return f.recurring
}

// SetFrequency records the frequency choice. It is kept only while
// recurrence is on.
func (f *ExpenseForm) SetFrequency(freq string) {
	if f.recurring {
		f.frequency = freq
	}
}

func (f *ExpenseForm) Frequency() string {
	return f.frequency
}

// Validate checks every field and reports all problems at once.
func (f *ExpenseForm) Validate() FieldErrors {
	errs := FieldErrors{}
	f.parse(errs)
	return errs
}

type parsed struct {
	amount        core.Money
	category      string
	paymentMethod string
	date          core.Date
	frequency     core.Frequency
}

func (f *ExpenseForm) parse(errs FieldErrors) parsed {
	var p parsed

	if sanitizeInput(f.Title) == "" {
		errs.Add(FieldTitle, "Title is required")
	}

	if sanitizeInput(f.Amount) == "" {
		errs.Add(FieldAmount, "Amount is required")
	} else if m, err := core.ParseAmount(f.Amount); err != nil {
		errs.Add(FieldAmount, "Amount must be a number greater than 0")
	} else {
		p.amount = m
	}

	if sanitizeInput(f.Category) == "" {
		errs.Add(FieldCategory, "Category is required")
	} else if c, ok := core.MatchCategory(f.Category); !ok {
		errs.Add(FieldCategory, "Unknown category")
	} else {
		p.category = c
	}

	if sanitizeInput(f.PaymentMethod) == "" {
		errs.Add(FieldPaymentMethod, "Payment method is required")
	} else if m, ok := core.MatchPaymentMethod(f.PaymentMethod); !ok {
		errs.Add(FieldPaymentMethod, "Unknown payment method")
	} else {
		p.paymentMethod = m
	}

	if sanitizeInput(f.Date) == "" {
		errs.Add(FieldDate, "Date is required")
	} else if d, err := core.ParseDate(f.Date); err != nil {
		errs.Add(FieldDate, "Date must be YYYY-MM-DD")
	} else {
		p.date = d
	}

	if f.recurring {
		if sanitizeInput(f.frequency) == "" {
			errs.Add(FieldFrequency, "Choose how often it repeats")
		} else if fr, ok := core.ParseFrequency(f.frequency); !ok {
			errs.Add(FieldFrequency, "Unknown frequency")
		} else {
			p.frequency = fr
		}
	}
	return p
}

// CreateRequest validates the form and builds the create payload. Nothing
// is built when validation fails.
func (f *ExpenseForm) CreateRequest(userID string) (core.CreateExpenseRequest, error) {
	errs := FieldErrors{}
	p := f.parse(errs)
	if err := errs.Err(); err != nil {
		return core.CreateExpenseRequest{}, err
	}

	tags := []string{}
	if f.Tags != nil {
		tags = f.Tags.Tags()
	}
	req := core.CreateExpenseRequest{
		UserID:        userID,
		Title:         sanitizeInput(f.Title),
		Description:   sanitizeInput(f.Description),
		Amount:        p.amount,
		Category:      p.category,
		Tags:          tags,
		Date:          p.date,
		PaymentMethod: p.paymentMethod,
		IsRecurring:   f.recurring,
	}
	if f.recurring {
		req.RecurringFrequency = p.frequency
	}
	if err := req.Validate(); err != nil {
		return core.CreateExpenseRequest{}, err
	}
	return req, nil
}

// UpdateRequest is CreateRequest for an existing expense.
func (f *ExpenseForm) UpdateRequest(id, userID string) (core.UpdateExpenseRequest, error) {
	if id == "" {
		return core.UpdateExpenseRequest{}, core.ErrMissingID
	}
	req, err := f.CreateRequest(userID)
	if err != nil {
		return core.UpdateExpenseRequest{}, err
	}
	return core.UpdateExpenseRequest{ID: id, CreateExpenseRequest: req}, nil
}

// AsFieldErrors extracts FieldErrors from err.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Reset empties the form after a successful submit.
func (f *ExpenseForm) Reset(today time.Time) {
	*f = *NewExpenseForm(today)
}
