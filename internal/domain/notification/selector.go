package notification

import (
	"strings"
	"time"

	"timetable_notification_bot/internal/domain/subscription"
	"timetable_notification_bot/internal/domain/timetable"
)

// DefaultWindow is the due-window tolerance: once a lesson's fire instant
// (start minus lead) has passed, the candidate stays due for this long.
// The polling interval must not exceed it or notifications are skipped.
const DefaultWindow = 5 * time.Minute

// Selector computes the set of due notification candidates for an instant.
// It is pure: it performs no I/O and keeps no state between calls, so
// evaluating the same snapshot twice yields the same candidates — any
// deduplication is the caller's concern.
type Selector struct {
	window time.Duration
}

func NewSelector(window time.Duration) Selector {
	if window <= 0 {
		window = DefaultWindow
	}
	return Selector{window: window}
}

// Select evaluates all five category rules over the given snapshot.
// lessons maps an external group ID to that group's lessons for the current
// and next day, ordered by date then start time.
func (s Selector) Select(now time.Time, targets []subscription.Target, lessons map[int64][]timetable.Lesson) []Candidate {
	var out []Candidate
	today := timetable.DateOf(now)

	for _, t := range targets {
		day := lessons[t.GroupID]
		if len(day) == 0 {
			continue
		}

		if t.GeneralEnabled {
			for _, l := range day {
				if s.due(now, l, t.GeneralLead) {
					out = append(out, Candidate{
						Category:    CategoryGeneral,
						TelegramID:  t.TelegramID,
						GroupName:   t.GroupName,
						Lesson:      l,
						LeadMinutes: t.GeneralLead,
					})
				}
			}
		}

		if t.DailyEnabled {
			if first, ok := firstLessonOn(day, today); ok && s.due(now, first, t.DailyLead) {
				out = append(out, Candidate{
					Category:    CategoryDaily,
					TelegramID:  t.TelegramID,
					GroupName:   t.GroupName,
					Lesson:      first,
					LeadMinutes: t.DailyLead,
				})
			}
		}

		if t.GapEnabled {
			for _, l := range gapLessons(day) {
				if s.due(now, l, t.GapLead) {
					out = append(out, Candidate{
						Category:    CategoryGap,
						TelegramID:  t.TelegramID,
						GroupName:   t.GroupName,
						Lesson:      l,
						LeadMinutes: t.GapLead,
					})
				}
			}
		}

		for _, f := range t.Subjects {
			for _, l := range day {
				if containsFold(l.Subject, f.Pattern) && s.due(now, l, f.LeadMinutes) {
					out = append(out, Candidate{
						Category:    CategorySubject,
						TelegramID:  t.TelegramID,
						GroupName:   t.GroupName,
						Lesson:      l,
						LeadMinutes: f.LeadMinutes,
						Pattern:     f.Pattern,
					})
				}
			}
		}

		for _, f := range t.Teachers {
			for _, l := range day {
				if l.Teacher != "" && containsFold(l.Teacher, f.Pattern) && s.due(now, l, f.LeadMinutes) {
					out = append(out, Candidate{
						Category:    CategoryTeacher,
						TelegramID:  t.TelegramID,
						GroupName:   t.GroupName,
						Lesson:      l,
						LeadMinutes: f.LeadMinutes,
						Pattern:     f.Pattern,
					})
				}
			}
		}
	}

	return out
}

// due applies the one-sided window test: the candidate fires during
// [start-lead, start-lead+window]. A process stalled past the window
// silently skips the notification — lessons are transient, there is no
// backfill.
func (s Selector) due(now time.Time, l timetable.Lesson, leadMinutes int) bool {
	fireAt := l.StartsAt().Add(-time.Duration(leadMinutes) * time.Minute)
	diff := fireAt.Sub(now)
	return diff >= 0 && diff <= s.window
}

// firstLessonOn returns the earliest-starting lesson of the given date.
func firstLessonOn(lessons []timetable.Lesson, date time.Time) (timetable.Lesson, bool) {
	var first timetable.Lesson
	found := false
	for _, l := range lessons {
		if !l.Date.Equal(date) {
			continue
		}
		if !found || l.TimeStart.Before(first.TimeStart) {
			first = l
			found = true
		}
	}
	return first, found
}

// gapLessons runs the gap detector per day over a multi-day ordered slice.
func gapLessons(lessons []timetable.Lesson) []timetable.Lesson {
	var out []timetable.Lesson
	for start := 0; start < len(lessons); {
		end := start
		for end < len(lessons) && lessons[end].Date.Equal(lessons[start].Date) {
			end++
		}
		day := lessons[start:end]
		for i, flagged := range timetable.GapFlags(day) {
			if flagged {
				out = append(out, day[i])
			}
		}
		start = end
	}
	return out
}

func containsFold(s, pattern string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
}
