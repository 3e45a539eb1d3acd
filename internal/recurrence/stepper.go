// Package recurrence materializes due occurrences of recurring templates.
//
// This file implements the Strategy Pattern for schedule advancement. Each
// frequency has a Stepper that moves a template's next date forward by exactly
// one period.
package recurrence

import (
	"fmt"
	"time"

	"conti/internal/core"
)

// Stepper is the strategy interface for advancing a schedule by one period.
type Stepper interface {
	// Next returns the occurrence one period after current. anchorDay is the
	// day of month the schedule was created on; steppers that move by months
	// use it to clamp to shorter months without drifting.
	Next(current core.Date, anchorDay int) core.Date
}

// WeeklyStepper adds seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Next(current core.Date, _ int) core.Date {
	return current.AddDays(7)
}

// MonthlyStepper moves to the same day of the following month, clamped to the
// last day when that month is shorter (Jan 31 -> Feb 29 -> Mar 31).
type MonthlyStepper struct{}

func (MonthlyStepper) Next(current core.Date, anchorDay int) core.Date {
	return addMonthsClamped(current, 1, anchorDay)
}

// YearlyStepper moves to the same day of the following year. A Feb 29 anchor
// lands on Feb 28 in common years and returns to Feb 29 in leap years.
type YearlyStepper struct{}

func (YearlyStepper) Next(current core.Date, anchorDay int) core.Date {
	return addMonthsClamped(current, 12, anchorDay)
}

func addMonthsClamped(d core.Date, months, anchorDay int) core.Date {
	if anchorDay < 1 {
		anchorDay = d.Day
	}
	total := int(d.Month) - 1 + months
	year := d.Year + total/12
	month := time.Month(total%12 + 1)
	day := anchorDay
	if last := core.DaysIn(year, month); day > last {
		day = last
	}
	return core.NewDate(year, int(month), day)
}

// steppers maps frequencies to their corresponding strategies.
var steppers = map[core.Frequency]Stepper{
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper for a frequency.
// Returns an error wrapping core.ErrInvalidFrequency if it is not supported.
func GetStepper(frequency core.Frequency) (Stepper, error) {
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// RegisterStepper registers a stepper for an additional frequency.
func RegisterStepper(frequency core.Frequency, s Stepper) {
	steppers[frequency] = s
}

// FirstOccurrenceAfter returns the next date of a template created from a
// transaction dated on date: one period later. The first occurrence is the
// transaction itself.
func FirstOccurrenceAfter(date core.Date, frequency core.Frequency) (core.Date, error) {
	if !date.Valid() {
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, date.String())
	}
	s, err := GetStepper(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(date, date.Day), nil
}
