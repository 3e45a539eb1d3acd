// Package clock supplies "today" as a calendar date.
package clock

import (
	"fmt"
	"time"

	"conti/internal/core"
)

// Clock returns the current calendar date.
type Clock interface {
	Today() core.Date
}

// System reads the wall clock and converts it to a date in Location.
type System struct {
	Location *time.Location
	now      func() time.Time
}

// NewSystem returns a System clock for the named IANA zone. An empty name
// means UTC.
func NewSystem(zone string) (*System, error) {
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("load location %q: %w", zone, err)
		}
		loc = l
	}
	return &System{Location: loc, now: time.Now}, nil
}

func (s *System) Today() core.Date {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(now().In(loc))
}

// Fixed always returns the same date.
type Fixed core.Date

func (f Fixed) Today() core.Date { return core.Date(f) }
