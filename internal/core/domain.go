package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

// CategoryOther is the fallback category for quick-add income and empty reports.
const CategoryOther Category = "Other"

// DateLayout is the ISO 8601 calendar date layout used for storage and export.
const DateLayout = "2006-01-02"

type (
	Type string

	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one recorded income or expense event. Records are never
	// mutated after creation; the month index is derived from Date.
	Transaction struct {
		ID            int64
		Title         string
		Amount        Money
		Type          Type
		Category      Category
		Date          Date
		PaymentMethod string
	}

	// Input carries raw form values for a new transaction.
	Input struct {
		Title         string
		Amount        string
		Type          string
		Category      string
		Date          string
		PaymentMethod string
	}

	// Rules bounds what NewTransaction accepts.
	Rules struct {
		MaxTitleLength int
		// MinAmount is exclusive: amounts must be strictly greater.
		MinAmount  Money
		Categories []Category
	}
)

// DefaultCategories is the built-in category set.
var DefaultCategories = []Category{"Food", "Shopping", "Travel", "Rent", "Salary", "Other"}

var (
	ErrEmptyTitle      = errors.New("title is required")
	ErrTitleTooLong    = errors.New("title too long")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountTooSmall  = errors.New("amount below minimum")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrEmptyCategory   = errors.New("category is required")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidID       = errors.New("invalid id")
	ErrDuplicateID     = errors.New("duplicate id")
)

// DefaultRules mirrors the strictest dashboard variant.
func DefaultRules() Rules {
	return Rules{
		MaxTitleLength: 50,
		MinAmount:      Money{Cents: 1},
		Categories:     append([]Category(nil), DefaultCategories...),
	}
}

// ParseType accepts "income" or "expense" in any case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t Type) Valid() bool {
	return t == Income || t == Expense
}

func (t Type) String() string {
	return string(t)
}

func (c Category) String() string {
	return string(c)
}

// Has reports whether the category is part of the rule set. An empty set
// accepts any non-empty category.
func (r Rules) Has(c Category) bool {
	if len(r.Categories) == 0 {
		return true
	}
	for _, known := range r.Categories {
		if strings.EqualFold(string(known), string(c)) {
			return true
		}
	}
	return false
}

func (r Rules) canonical(c Category) Category {
	for _, known := range r.Categories {
		if strings.EqualFold(string(known), string(c)) {
			return known
		}
	}
	return c
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month (1-12)
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Older variants stored full ISO timestamps.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month returns the zero-based month index (0-11) of the transaction date,
// or -1 when the record carries no date.
func (t Transaction) Month() int {
	if t.Date.IsZero() {
		return -1
	}
	return t.Date.Month() - 1
}

// Validate checks the record invariants. It does not enforce form rules
// such as title length or the category set.
func (t Transaction) Validate() error {
	var problems []error
	if t.ID <= 0 {
		problems = append(problems, ErrInvalidID)
	}
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, ErrEmptyTitle)
	}
	if err := t.Amount.Validate(); err != nil {
		problems = append(problems, err)
	}
	if !t.Type.Valid() {
		problems = append(problems, fmt.Errorf("%w: %q", ErrInvalidType, string(t.Type)))
	}
	if strings.TrimSpace(string(t.Category)) == "" {
		problems = append(problems, ErrEmptyCategory)
	}
	if err := t.Date.Validate(); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

type transactionJSON struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Amount        Money    `json:"amount"`
	Type          Type     `json:"type"`
	Category      Category `json:"category"`
	Date          Date     `json:"date"`
	Month         *int     `json:"month,omitempty"`
	PaymentMethod string   `json:"paymentMethod,omitempty"`
}

// MarshalJSON writes the persisted layout, including the derived month index.
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := transactionJSON{
		ID:            t.ID,
		Title:         t.Title,
		Amount:        t.Amount,
		Type:          t.Type,
		Category:      t.Category,
		Date:          t.Date,
		PaymentMethod: t.PaymentMethod,
	}
	if !t.Date.IsZero() {
		m := t.Month()
		out.Month = &m
	}
	return json.Marshal(out)
}

// UnmarshalJSON ignores any stored month; it is always derived from date.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var in transactionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = Transaction{
		ID:            in.ID,
		Title:         in.Title,
		Amount:        in.Amount,
		Type:          in.Type,
		Category:      in.Category,
		Date:          in.Date,
		PaymentMethod: in.PaymentMethod,
	}
	return nil
}

// NewTransaction validates form input and builds a record stamped with now.
// Every problem found is reported in a single *ValidationError.
func NewTransaction(in Input, rules Rules, now time.Time) (Transaction, error) {
	var problems []error

	title := strings.TrimSpace(in.Title)
	if title == "" {
		problems = append(problems, ErrEmptyTitle)
	} else if rules.MaxTitleLength > 0 && utf8.RuneCountInString(title) > rules.MaxTitleLength {
		problems = append(problems, fmt.Errorf("%w: must be less than %d characters", ErrTitleTooLong, rules.MaxTitleLength))
	}

	var amount Money
	if cents, err := ParseDecimalToCents(in.Amount); err != nil {
		problems = append(problems, fmt.Errorf("%w: please enter a valid amount", ErrInvalidAmount))
	} else {
		amount = Money{Cents: cents}
		if amount.Cents <= rules.MinAmount.Cents {
			problems = append(problems, fmt.Errorf("%w: must be greater than %s", ErrAmountTooSmall, rules.MinAmount.StringFixed()))
		}
	}

	typ := Expense
	if strings.TrimSpace(in.Type) != "" {
		t, err := ParseType(in.Type)
		if err != nil {
			problems = append(problems, err)
		} else {
			typ = t
		}
	}

	category := Category(strings.TrimSpace(in.Category))
	switch {
	case category == "" && typ == Income:
		category = CategoryOther
	case category == "":
		problems = append(problems, fmt.Errorf("%w: please select a category", ErrEmptyCategory))
	case !rules.Has(category):
		problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownCategory, string(category)))
	default:
		category = rules.canonical(category)
	}

	date := DateOf(now)
	if strings.TrimSpace(in.Date) != "" {
		d, err := ParseDate(in.Date)
		if err != nil {
			problems = append(problems, err)
		} else {
			date = d
		}
	}

	if len(problems) > 0 {
		return Transaction{}, &ValidationError{Problems: problems}
	}

	return Transaction{
		ID:            now.UnixMilli(),
		Title:         title,
		Amount:        amount,
		Type:          typ,
		Category:      category,
		Date:          date,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
	}, nil
}
