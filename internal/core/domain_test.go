package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
		{NewDate(1800, 1, 1), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfDropsTime(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got := DateOf(time.Date(2025, 3, 4, 23, 59, 0, 0, loc))
	if !got.Equal(NewDate(2025, 3, 4)) {
		t.Fatalf("expected 2025-03-04, got %s", got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected date %s", d)
	}
	for _, in := range []string{"", "2023-02-29", "2024/01/01", "tomorrow"} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2025-06-01"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.D.String() != "2025-06-01" {
		t.Fatalf("got %s", v.D)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2025-06-01"}` {
		t.Fatalf("got %s", b)
	}
	if err := json.Unmarshal([]byte(`{"d":"01/06/2025"}`), &v); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"daily", Daily, true},
		{" Weekly ", Weekly, true},
		{"MONTHLY", Monthly, true},
		{"yearly", Yearly, true},
		{"fortnightly", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidFrequency) {
			t.Fatalf("%q expected ErrInvalidFrequency, got %v", tc.in, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Category:    "Food",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	income := good
	income.Amount = Money{Cents: -5000}
	if err := income.Validate(); err != nil {
		t.Fatalf("expected income to be valid, got %v", err)
	}
	if !income.IsIncome() {
		t.Fatalf("negative amount should be income")
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	bads := []Transaction{
		{Date: Date{}, Category: "c", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Category: "c", Amount: Money{Cents: 0}},
		{Date: NewDate(2025, 1, 1), Category: " ", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Category: "c", Amount: Money{Cents: 1}, Description: string(long)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	good := RecurringRule{
		Category:    "Rent",
		Amount:      Money{Cents: 90000},
		Frequency:   Monthly,
		NextDueDate: NewDate(2025, 1, 31),
		Active:      true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Frequency = "hourly"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
	bad = good
	bad.NextDueDate = Date{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestRuleTransactionDescription(t *testing.T) {
	r := RecurringRule{Category: "Gym"}
	if got := r.TransactionDescription(); got != "Gym (recurring)" {
		t.Fatalf("unexpected fallback %q", got)
	}
	r.Description = "Monthly gym pass"
	if got := r.TransactionDescription(); got != "Monthly gym pass" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestEntityValidate(t *testing.T) {
	cases := []struct {
		name string
		v    interface{ Validate() error }
		ok   bool
	}{
		{"budget ok", Budget{Category: "Food", Month: "2025-03", Limit: Money{Cents: 1}}, true},
		{"budget bad month", Budget{Category: "Food", Month: "2025-13", Limit: Money{Cents: 1}}, false},
		{"budget zero limit", Budget{Category: "Food", Month: "2025-03"}, false},
		{"lender ok", Lender{Name: "Bank"}, true},
		{"lender no name", Lender{}, false},
		{"loan ok", LoanTransaction{LenderID: "l1", Date: NewDate(2025, 1, 1), Amount: Money{Cents: -10}}, true},
		{"loan no lender", LoanTransaction{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 10}}, false},
		{"asset ok", Asset{Name: "Gold"}, true},
		{"asset tx sale", AssetTransaction{AssetID: "a", Date: NewDate(2025, 1, 1), Quantity: -1.5}, true},
		{"asset tx zero qty", AssetTransaction{AssetID: "a", Date: NewDate(2025, 1, 1)}, false},
		{"rate ok", ItemRate{Item: "gold", Rate: Money{Cents: 100}, Date: NewDate(2025, 1, 1)}, true},
		{"rate negative", ItemRate{Item: "gold", Rate: Money{Cents: -1}, Date: NewDate(2025, 1, 1)}, false},
		{"profile ok", Profile{Name: "me", Currency: "EUR", Theme: ThemeDark}, true},
		{"profile bad currency", Profile{Name: "me", Currency: "eur", Theme: ThemeDark}, false},
		{"profile bad theme", Profile{Name: "me", Currency: "EUR", Theme: "neon"}, false},
	}
	for _, tc := range cases {
		err := tc.v.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
