package notification

import "timetable_notification_bot/internal/domain/timetable"

// Category identifies one of the five independent notification rules.
type Category string

const (
	CategoryGeneral Category = "GENERAL" // every lesson of the subscribed group
	CategoryDaily   Category = "DAILY"   // first lesson of the current day
	CategoryGap     Category = "GAP"     // lessons following a gap
	CategorySubject Category = "SUBJECT" // lessons matching a subject pattern
	CategoryTeacher Category = "TEACHER" // lessons matching a teacher pattern
)

// Candidate is one due notification: deliver Lesson to TelegramID under the
// given category. The same lesson may appear in several candidates for the
// same user — one per category that fired — and they are delivered as
// independent messages.
//
// (TelegramID, Category, Lesson.GroupID, Lesson.Date, Lesson.Number) is a
// natural dedup key should a sent-log ever be layered on top.
type Candidate struct {
	Category    Category
	TelegramID  int64
	GroupName   string
	Lesson      timetable.Lesson
	LeadMinutes int
	Pattern     string // matched filter pattern, subject/teacher only
}
