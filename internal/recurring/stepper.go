package recurring

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Stepper is the strategy that advances a due date by one period of a
// frequency. anchorDay is the rule's persisted day of month; calendar
// steppers aim for it and clamp to the month's last day.
type Stepper interface {
	Next(cur core.Date, anchorDay int) core.Date
}

// StepperFunc adapts a plain function to Stepper.
type StepperFunc func(cur core.Date, anchorDay int) core.Date

func (f StepperFunc) Next(cur core.Date, anchorDay int) core.Date {
	return f(cur, anchorDay)
}

// DailyStepper advances by one day.
type DailyStepper struct{}

func (DailyStepper) Next(cur core.Date, _ int) core.Date {
	return cur.AddDays(1)
}

// WeeklyStepper advances by seven days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(cur core.Date, _ int) core.Date {
	return cur.AddDays(7)
}

// MonthlyStepper advances to the anchor day of the next calendar month,
// clamped to that month's last day.
type MonthlyStepper struct{}

func (MonthlyStepper) Next(cur core.Date, anchorDay int) core.Date {
	y, m := cur.Year(), time.Month(cur.Month())+1
	if m > time.December {
		y, m = y+1, time.January
	}
	return clampedDate(y, m, anchorDay)
}

// YearlyStepper advances to the same month of the next year, clamped the
// same way as MonthlyStepper.
type YearlyStepper struct{}

func (YearlyStepper) Next(cur core.Date, anchorDay int) core.Date {
	return clampedDate(cur.Year()+1, time.Month(cur.Month()), anchorDay)
}

func clampedDate(year int, month time.Month, day int) core.Date {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return core.NewDate(year, int(month), day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// steppers maps frequencies to their strategy. Register additions from init
// functions; the map is not guarded for concurrent writes.
var steppers = map[core.Frequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// StepperFor returns the stepper registered for a frequency.
func StepperFor(f core.Frequency) (Stepper, error) {
	s, ok := steppers[f]
	if !ok {
		return nil, fmt.Errorf("%w: no stepper for %q", core.ErrInvalidFrequency, f)
	}
	return s, nil
}

// RegisterStepper installs or replaces the stepper for a frequency.
func RegisterStepper(f core.Frequency, s Stepper) {
	steppers[f] = s
}
