package core

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar date without time of day, encoded as YYYY-MM-DD.
//
// Decoding never fails: malformed text, or a JSON value that is not a string,
// is kept verbatim and the value reports
// Valid() == false, so one bad record does not prevent a whole collection from
// loading. Encoding an invalid Date writes the original text back.
type Date struct {
	civil.Date
	raw string
	bad bool
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Date: civil.Date{Year: year, Month: time.Month(month), Day: day}}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{Date: civil.DateOf(t)}
}

// ParseDate parses an ISO 8601 calendar date.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Date: d}, nil
}

// Valid reports whether d holds a real calendar date.
func (d Date) Valid() bool {
	return !d.bad && d.Date.IsValid()
}

func (d Date) String() string {
	if d.bad {
		return d.raw
	}
	return d.Date.String()
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Date.Before(other.Date)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Date.After(other.Date)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date{Date: d.Date.AddDays(n)}
}

// Midday returns noon of d in loc. Materialized transactions are stamped at
// noon so that converting between zones never moves them to another day.
func (d Date) Midday(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := civil.ParseDate(string(b))
	if err != nil || !parsed.IsValid() {
		*d = Date{raw: string(b), bad: true}
		return nil
	}
	*d = Date{Date: parsed}
	return nil
}

// UnmarshalJSON accepts any JSON value. Only strings can hold a valid date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{raw: string(b), bad: true}
		return nil
	}
	return d.UnmarshalText([]byte(s))
}
