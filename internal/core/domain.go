package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Payment method tags with a meaning for the system itself. Any other
// value is user-supplied free text.
const (
	PaymentMethodRecurring = "auto-recurring"
	PaymentMethodAIDraft   = "ai-draft"
)

// Sync status of a transaction with respect to the spreadsheet integration.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const dateLayout = "2006-01-02"

type (
	Frequency string

	// Date is a calendar date without a time component, always UTC midnight.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID              string    `json:"id"`
		Date            Date      `json:"date"`
		Description     string    `json:"description"`
		Category        string    `json:"category"`
		Amount          Money     `json:"amount"`
		PaymentMethod   string    `json:"paymentMethod"`
		RecurringRuleID string    `json:"recurringRuleId,omitempty"`
		SyncStatus      string    `json:"syncStatus,omitempty"`
		SyncAttempts    int       `json:"syncAttempts,omitempty"`
		// Resync marks a transaction edited after it reached the sheet. Its
		// old row has to be removed before the new one is appended.
		Resync          bool      `json:"-"`
		CreatedAt       time.Time `json:"createdAt"`
	}

	RecurringRule struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		Frequency   Frequency `json:"frequency"`
		NextDueDate Date      `json:"nextDueDate"`
		// AnchorDay is the day of month monthly and yearly rules aim for. It
		// is taken from NextDueDate when the rule is created or rescheduled.
		AnchorDay   int       `json:"anchorDay"`
		Active      bool      `json:"active"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrMissingReference = errors.New("missing reference")
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// ParseFrequency normalises case and surrounding space.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, keeping the calendar date t has in its
// own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	if y := d.Time.Year(); y < 1900 || y > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidDate, y)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is an earlier calendar date than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is a later calendar date than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same calendar date.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
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

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrEmptyDescription)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsIncome reports whether the transaction brings money in.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsIncome()
}

func (r RecurringRule) Validate() error {
	if err := r.NextDueDate.Validate(); err != nil {
		return fmt.Errorf("invalid next due date: %w", err)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if len(r.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrEmptyDescription)
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// TransactionDescription is the description stamped on occurrences
// generated from the rule.
// Anchor returns AnchorDay, or the next due date's day when it is unset.
func (r RecurringRule) Anchor() int {
	if r.AnchorDay >= 1 && r.AnchorDay <= 31 {
		return r.AnchorDay
	}
	return r.NextDueDate.Day()
}

// Rescheduled returns r with its anchor carried over from stored, unless
// the update moves the next due date, which re-anchors on the new day.
func (r RecurringRule) Rescheduled(stored RecurringRule) RecurringRule {
	if r.NextDueDate.Equal(stored.NextDueDate) {
		r.AnchorDay = stored.Anchor()
	} else {
		r.AnchorDay = r.NextDueDate.Day()
	}
	return r
}

func (r RecurringRule) TransactionDescription() string {
	if d := strings.TrimSpace(r.Description); d != "" {
		return d
	}
	return r.Category + " (recurring)"
}
