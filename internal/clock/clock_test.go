package clock

import (
	"testing"
	"time"

	"conti/internal/core"
)

func TestSystemToday(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	instant := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want core.Date
	}{
		{"utc", time.UTC, core.NewDate(2024, 3, 15)},
		{"ahead of utc", tokyo, core.NewDate(2024, 3, 16)},
		{"nil location", nil, core.NewDate(2024, 3, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &System{Location: tt.loc, now: func() time.Time { return instant }}
			if got := c.Today(); got != tt.want {
				t.Errorf("Today() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSystem(t *testing.T) {
	c, err := NewSystem("")
	if err != nil || c.Location != time.UTC {
		t.Fatalf("expected UTC clock, got %v (err=%v)", c, err)
	}
	if _, err := NewSystem("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestFixed(t *testing.T) {
	d := core.NewDate(2024, 2, 29)
	if got := Fixed(d).Today(); got != d {
		t.Errorf("Today() = %v, want %v", got, d)
	}
}
