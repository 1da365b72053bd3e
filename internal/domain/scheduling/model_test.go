package scheduling

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	m := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	tests := []struct {
		name                   string
		aStart, aEnd           time.Time
		bStart, bEnd           time.Time
		want                   bool
	}{
		{"identical", m(0), m(30), m(0), m(30), true},
		{"partial overlap", m(0), m(30), m(15), m(45), true},
		{"contained", m(0), m(60), m(15), m(30), true},
		{"touching end-to-start", m(0), m(30), m(30), m(60), false},
		{"touching start-to-end", m(30), m(60), m(0), m(30), false},
		{"disjoint", m(0), m(30), m(60), m(90), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Symmetric.
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeekWindow(t *testing.T) {
	tests := []struct {
		name       string
		in         time.Time
		wantMonday time.Time
	}{
		{
			"wednesday",
			time.Date(2026, time.March, 4, 15, 30, 0, 0, time.UTC),
			time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"monday maps to itself",
			time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"sunday belongs to the preceding monday",
			time.Date(2026, time.March, 8, 23, 59, 0, 0, time.UTC),
			time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			"year boundary",
			time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC),
			time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := WeekWindow(tt.in)
			if !from.Equal(tt.wantMonday) {
				t.Errorf("expected week start %v, got %v", tt.wantMonday, from)
			}
			if want := tt.wantMonday.AddDate(0, 0, 7); !to.Equal(want) {
				t.Errorf("expected week end %v, got %v", want, to)
			}
			if !from.Before(tt.in.Add(time.Nanosecond)) || !tt.in.Before(to) {
				t.Errorf("anchor %v not inside [%v, %v)", tt.in, from, to)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusScheduled, StatusCompleted, StatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ValidStatus("noshow") {
		t.Error("expected unknown status to be invalid")
	}
}
