package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

type (
	Budget struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Month    string `json:"month"` // YYYY-MM
		Limit    Money  `json:"limit"`
	}

	Lender struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Contact string `json:"contact,omitempty"`
		Notes   string `json:"notes,omitempty"`
	}

	// LoanTransaction is money borrowed from (positive) or repaid to
	// (negative) a lender.
	LoanTransaction struct {
		ID       string `json:"id"`
		LenderID string `json:"lenderId"`
		Date     Date   `json:"date"`
		Amount   Money  `json:"amount"`
		Note     string `json:"note,omitempty"`
	}

	Asset struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind string `json:"kind,omitempty"`
		Unit string `json:"unit,omitempty"`
	}

	// AssetTransaction records a purchase (positive quantity) or sale
	// (negative quantity) of an asset.
	AssetTransaction struct {
		ID        string  `json:"id"`
		AssetID   string  `json:"assetId"`
		Date      Date    `json:"date"`
		Quantity  float64 `json:"quantity"`
		UnitPrice Money   `json:"unitPrice"`
		Note      string  `json:"note,omitempty"`
	}

	// ItemRate is the price of one unit of a named item on a date.
	ItemRate struct {
		ID   string `json:"id"`
		Item string `json:"item"`
		Rate Money  `json:"rate"`
		Date Date   `json:"date"`
	}

	Profile struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Currency string `json:"currency"`
		Theme    string `json:"theme"`
	}
)

// ParseMonth parses a YYYY-MM string into year and month.
func ParseMonth(s string) (year, month int, err error) {
	t, perr := time.Parse("2006-01", strings.TrimSpace(s))
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t.Year(), int(t.Month()), nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if _, _, err := ParseMonth(b.Month); err != nil {
		return err
	}
	if b.Limit.Cents <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidAmount)
	}
	return nil
}

func (l Lender) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (lt LoanTransaction) Validate() error {
	if strings.TrimSpace(lt.LenderID) == "" {
		return fmt.Errorf("%w: lender id", ErrMissingReference)
	}
	if err := lt.Date.Validate(); err != nil {
		return err
	}
	return lt.Amount.Validate()
}

func (a Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (at AssetTransaction) Validate() error {
	if strings.TrimSpace(at.AssetID) == "" {
		return fmt.Errorf("%w: asset id", ErrMissingReference)
	}
	if err := at.Date.Validate(); err != nil {
		return err
	}
	if at.Quantity == 0 {
		return fmt.Errorf("%w: quantity cannot be zero", ErrInvalidAmount)
	}
	if at.UnitPrice.Cents < 0 {
		return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidAmount)
	}
	return nil
}

func (r ItemRate) Validate() error {
	if strings.TrimSpace(r.Item) == "" {
		return ErrEmptyName
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if r.Rate.Cents <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidAmount)
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Currency) != 3 || strings.ToUpper(p.Currency) != p.Currency {
		return fmt.Errorf("invalid currency %q: expected ISO 4217 code", p.Currency)
	}
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("invalid theme %q", p.Theme)
	}
	return nil
}
