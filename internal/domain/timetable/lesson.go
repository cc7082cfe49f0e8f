package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WireDateLayout is the day-first textual date form the schedule site uses
// in both request parameters and rendered pages. It does not sort as a
// string, so it never leaks past the scraper boundary or message text:
// internally dates are time.Time values truncated to midnight.
const WireDateLayout = "02.01.2006"

// ParseWireDate parses a DD.MM.YYYY date in the given location.
func ParseWireDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(WireDateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid wire date %q: %w", s, err)
	}
	return t, nil
}

// FormatWireDate renders a date in the site's DD.MM.YYYY form.
func FormatWireDate(t time.Time) string {
	return t.Format(WireDateLayout)
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TimeOfDay is a wall-clock HH:MM value without a date attached.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day out of range: %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the wall-clock time with a calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// MinutesSince returns the whole minutes elapsed from other to t within the
// same day. Negative if t is earlier.
func (t TimeOfDay) MinutesSince(other TimeOfDay) int {
	return (t.Hour-other.Hour)*60 + (t.Minute - other.Minute)
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Hour < other.Hour || (t.Hour == other.Hour && t.Minute < other.Minute)
}

// Lesson is one timetable slot of a group. The whole lesson set of a group
// is replaced on every refresh, so ID is not stable across refreshes; the
// (GroupID, Date, Number) tuple is the only durable lookup key.
type Lesson struct {
	ID        int64
	GroupID   int64 // external group key, see Group.ExternalID
	Date      time.Time
	Number    int
	TimeStart TimeOfDay
	TimeEnd   TimeOfDay
	Subject   string
	Kind      string
	Audience  string
	Teacher   string
}

// StartsAt returns the lesson's absolute start instant.
func (l Lesson) StartsAt() time.Time {
	return l.TimeStart.On(l.Date)
}

// LessonWithGroup is a lesson joined with its group's display name, used by
// the teacher and room search projections.
type LessonWithGroup struct {
	Lesson
	GroupName string
}
