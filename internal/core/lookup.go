package core

import "strings"

// Frequency is the repetition of a recurring expense.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// Categories lists the categories offered by the expense form and filter panel.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Entertainment",
	"Utilities",
	"Health & Fitness",
	"Shopping",
	"Travel",
	"Education",
	"Bills & Payments",
	"Insurance",
	"Other",
}

var PaymentMethods = []string{
	"Credit Card",
	"Debit Card",
	"Cash",
	"Bank Transfer",
	"Digital Wallet",
	"Check",
}

var Frequencies = []Frequency{Daily, Weekly, Monthly, Quarterly, Yearly}

func IsKnownCategory(c string) bool {
	return contains(Categories, c)
}

func IsKnownPaymentMethod(m string) bool {
	return contains(PaymentMethods, m)
}

// ParseFrequency is case-insensitive and returns false for unknown values.
func ParseFrequency(s string) (Frequency, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range Frequencies {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// MatchCategory resolves loose user input ("food") to a known category.
func MatchCategory(s string) (string, bool) {
	return match(Categories, s)
}

func MatchPaymentMethod(s string) (string, bool) {
	return match(PaymentMethods, s)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func match(list []string, s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for _, item := range list {
		if strings.ToLower(item) == s {
			return item, true
		}
	}
	for _, item := range list {
		if strings.HasPrefix(strings.ToLower(item), s) {
			return item, true
		}
	}
	return "", false
}
