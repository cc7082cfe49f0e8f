package timetable

import (
	"testing"
	"time"
)

func TestParseWireDate(t *testing.T) {
	d, err := ParseWireDate("05.09.2025", time.Local)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Day() != 5 || d.Month() != time.September || d.Year() != 2025 {
		t.Errorf("parsed wrong date: %v", d)
	}
	if got := FormatWireDate(d); got != "05.09.2025" {
		t.Errorf("FormatWireDate = %q, want 05.09.2025", got)
	}

	if _, err := ParseWireDate("2025-09-05", time.Local); err == nil {
		t.Error("ISO date must not parse as wire date")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "08:30", want: TimeOfDay{8, 30}},
		{in: " 23:59 ", want: TimeOfDay{23, 59}},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "1030", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTimeOfDayMinutesSince(t *testing.T) {
	start := TimeOfDay{11, 20}
	end := TimeOfDay{10, 30}
	if got := start.MinutesSince(end); got != 50 {
		t.Errorf("MinutesSince = %d, want 50", got)
	}
	if got := end.MinutesSince(start); got != -50 {
		t.Errorf("reverse MinutesSince = %d, want -50", got)
	}
}

func TestLessonStartsAt(t *testing.T) {
	d := time.Date(2025, 9, 15, 0, 0, 0, 0, time.Local)
	l := Lesson{Date: d, TimeStart: TimeOfDay{8, 30}}
	want := time.Date(2025, 9, 15, 8, 30, 0, 0, time.Local)
	if !l.StartsAt().Equal(want) {
		t.Errorf("StartsAt = %v, want %v", l.StartsAt(), want)
	}
}
