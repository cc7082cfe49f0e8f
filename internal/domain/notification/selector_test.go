package notification

import (
	"testing"
	"time"

	"timetable_notification_bot/internal/domain/subscription"
	"timetable_notification_bot/internal/domain/timetable"
)

var testDay = time.Date(2025, 9, 15, 0, 0, 0, 0, time.Local)

func mkLesson(date time.Time, number int, start, end, subject, teacher string) timetable.Lesson {
	ts, err := timetable.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	te, err := timetable.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return timetable.Lesson{
		GroupID:   10,
		Date:      date,
		Number:    number,
		TimeStart: ts,
		TimeEnd:   te,
		Subject:   subject,
		Kind:      "лекция",
		Teacher:   teacher,
	}
}

func generalTarget(lead int) subscription.Target {
	return subscription.Target{
		TelegramID:     42,
		GroupID:        10,
		GroupName:      "ИТпб21",
		GeneralEnabled: true,
		GeneralLead:    lead,
	}
}

func countByCategory(cands []Candidate, cat Category) int {
	n := 0
	for _, c := range cands {
		if c.Category == cat {
			n++
		}
	}
	return n
}

func TestSelectorDueWindow(t *testing.T) {
	s := NewSelector(5 * time.Minute)
	lesson := mkLesson(testDay, 1, "10:00", "11:30", "Математика", "Иванов")
	lessons := map[int64][]timetable.Lesson{10: {lesson}}
	target := []subscription.Target{generalTarget(30)}

	fireAt := lesson.StartsAt().Add(-30 * time.Minute) // 09:30

	cases := []struct {
		name string
		now  time.Time
		due  bool
	}{
		{"window opens at fire-35", fireAt.Add(-5 * time.Minute), true},
		{"just before window", fireAt.Add(-5*time.Minute - time.Second), false},
		{"window closes at fire instant", fireAt, true},
		{"past fire instant", fireAt.Add(time.Second), false},
		{"mid window", fireAt.Add(-2 * time.Minute), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := s.Select(c.now, target, lessons)
			if (len(got) == 1) != c.due {
				t.Errorf("at %v: due = %v, want %v", c.now, len(got) == 1, c.due)
			}
		})
	}
}

func TestSelectorIsStateless(t *testing.T) {
	s := NewSelector(0) // defaults to 5 minutes
	lesson := mkLesson(testDay, 1, "10:00", "11:30", "Математика", "")
	lessons := map[int64][]timetable.Lesson{10: {lesson}}
	target := []subscription.Target{generalTarget(30)}
	now := lesson.StartsAt().Add(-32 * time.Minute)

	// Two evaluations inside the window both report due: the selector does
	// not deduplicate, that is the caller's job.
	first := s.Select(now, target, lessons)
	second := s.Select(now.Add(time.Minute), target, lessons)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both evaluations due, got %d and %d", len(first), len(second))
	}
}

func TestSelectorGeneralDisabled(t *testing.T) {
	s := NewSelector(DefaultWindow)
	lesson := mkLesson(testDay, 1, "10:00", "11:30", "Математика", "")
	lessons := map[int64][]timetable.Lesson{10: {lesson}}
	target := generalTarget(30)
	target.GeneralEnabled = false

	got := s.Select(lesson.StartsAt().Add(-31*time.Minute), []subscription.Target{target}, lessons)
	if len(got) != 0 {
		t.Fatalf("master switch off: expected no candidates, got %d", len(got))
	}
}

func TestSelectorDailyFirstLessonOnly(t *testing.T) {
	s := NewSelector(DefaultWindow)
	first := mkLesson(testDay, 1, "08:30", "10:00", "Математика", "")
	second := mkLesson(testDay, 2, "10:10", "11:40", "Физика", "")
	lessons := map[int64][]timetable.Lesson{10: {first, second}}
	target := subscription.Target{
		TelegramID:   42,
		GroupID:      10,
		GroupName:    "ИТпб21",
		DailyEnabled: true,
		DailyLead:    60,
	}

	now := first.StartsAt().Add(-62 * time.Minute)
	got := s.Select(now, []subscription.Target{target}, lessons)
	if len(got) != 1 {
		t.Fatalf("expected 1 daily candidate, got %d", len(got))
	}
	if got[0].Category != CategoryDaily || got[0].Lesson.Number != 1 {
		t.Errorf("daily candidate must be the day's first lesson, got %+v", got[0])
	}

	// The second lesson never fires the daily rule even inside its window.
	now = second.StartsAt().Add(-61 * time.Minute)
	if got := s.Select(now, []subscription.Target{target}, lessons); len(got) != 0 {
		t.Errorf("daily rule fired for a non-first lesson: %+v", got)
	}
}

func TestSelectorDailyIgnoresTomorrow(t *testing.T) {
	s := NewSelector(DefaultWindow)
	tomorrow := testDay.AddDate(0, 0, 1)
	lesson := mkLesson(tomorrow, 1, "08:30", "10:00", "Математика", "")
	lessons := map[int64][]timetable.Lesson{10: {lesson}}
	target := subscription.Target{
		TelegramID: 42, GroupID: 10, GroupName: "ИТпб21",
		DailyEnabled: true, DailyLead: 24 * 60,
	}

	// now is on testDay; the daily rule only considers the current date,
	// so tomorrow's first lesson produces nothing even though a 24h lead
	// would put it in the window.
	now := lesson.StartsAt().Add(-24*time.Hour - 2*time.Minute)
	if got := s.Select(now, []subscription.Target{target}, lessons); len(got) != 0 {
		t.Errorf("daily rule must only consider the current date, got %+v", got)
	}
}

func TestSelectorGapCategory(t *testing.T) {
	s := NewSelector(DefaultWindow)
	lessons := map[int64][]timetable.Lesson{10: {
		mkLesson(testDay, 1, "08:30", "10:00", "Математика", ""),
		mkLesson(testDay, 3, "11:50", "13:20", "Физика", ""),
	}}
	target := subscription.Target{
		TelegramID: 42, GroupID: 10, GroupName: "ИТпб21",
		GapEnabled: true, GapLead: 30,
	}

	now := time.Date(2025, 9, 15, 11, 18, 0, 0, time.Local) // 11:50 - 30m = 11:20
	got := s.Select(now, []subscription.Target{target}, lessons)
	if len(got) != 1 {
		t.Fatalf("expected 1 gap candidate, got %d", len(got))
	}
	if got[0].Category != CategoryGap || got[0].Lesson.Number != 3 {
		t.Errorf("expected gap candidate for pair 3, got %+v", got[0])
	}
}

func TestSelectorSubjectPatternCaseInsensitive(t *testing.T) {
	s := NewSelector(DefaultWindow)
	target := subscription.Target{
		TelegramID: 42, GroupID: 10, GroupName: "ИТпб21",
		Subjects: []subscription.PatternLead{{Pattern: "матем", LeadMinutes: 30}},
	}

	cases := []struct {
		subject string
		matches bool
	}{
		{"Математика (лекция)", true},
		{"МАТЕМАТИКА", true},
		{"Физика", false},
	}
	for _, c := range cases {
		lesson := mkLesson(testDay, 1, "10:00", "11:30", c.subject, "")
		lessons := map[int64][]timetable.Lesson{10: {lesson}}
		now := lesson.StartsAt().Add(-31 * time.Minute)
		got := s.Select(now, []subscription.Target{target}, lessons)
		if (len(got) == 1) != c.matches {
			t.Errorf("subject %q: matched = %v, want %v", c.subject, len(got) == 1, c.matches)
		}
		if c.matches && got[0].Pattern != "матем" {
			t.Errorf("candidate must carry the matched pattern, got %q", got[0].Pattern)
		}
	}
}

func TestSelectorTeacherPatternSkipsEmptyField(t *testing.T) {
	s := NewSelector(DefaultWindow)
	target := subscription.Target{
		TelegramID: 42, GroupID: 10, GroupName: "ИТпб21",
		Teachers: []subscription.PatternLead{{Pattern: "иванов", LeadMinutes: 30}},
	}

	withTeacher := mkLesson(testDay, 1, "10:00", "11:30", "Математика", "Иванов И.И.")
	noTeacher := mkLesson(testDay, 2, "11:50", "13:20", "Физика", "")
	lessons := map[int64][]timetable.Lesson{10: {withTeacher, noTeacher}}

	now := withTeacher.StartsAt().Add(-31 * time.Minute)
	got := s.Select(now, []subscription.Target{target}, lessons)
	if len(got) != 1 || got[0].Category != CategoryTeacher {
		t.Fatalf("expected 1 teacher candidate, got %+v", got)
	}
}

func TestSelectorCategoriesFireIndependently(t *testing.T) {
	s := NewSelector(DefaultWindow)
	lesson := mkLesson(testDay, 1, "10:00", "11:30", "Математика", "Иванов И.И.")
	lessons := map[int64][]timetable.Lesson{10: {lesson}}
	target := subscription.Target{
		TelegramID:     42,
		GroupID:        10,
		GroupName:      "ИТпб21",
		GeneralEnabled: true,
		GeneralLead:    30,
		Subjects:       []subscription.PatternLead{{Pattern: "матем", LeadMinutes: 30}},
		Teachers:       []subscription.PatternLead{{Pattern: "иванов", LeadMinutes: 30}},
	}

	now := lesson.StartsAt().Add(-31 * time.Minute)
	got := s.Select(now, []subscription.Target{target}, lessons)
	// One lesson, three categories in range: three independent candidates,
	// no cross-category deduplication.
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}
	for _, cat := range []Category{CategoryGeneral, CategorySubject, CategoryTeacher} {
		if countByCategory(got, cat) != 1 {
			t.Errorf("expected exactly one %s candidate", cat)
		}
	}
}
