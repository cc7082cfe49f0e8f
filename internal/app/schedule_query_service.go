package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timetable_notification_bot/internal/domain/timetable"
)

const (
	teacherSearchDays = 5 // how far ahead /teacher and /room look
	minSearchRunes    = 3
)

var ErrSearchQueryTooShort = fmt.Errorf("search query must be at least 3 characters")

// remoteAudienceMarker flags lessons held in the e-learning system rather
// than a physical room; /room skips them.
const remoteAudienceMarker = "ЭИОС"

// ScheduleQueryService answers read-only timetable questions for the bot
// commands.
type ScheduleQueryService interface {
	TimetableForDate(ctx context.Context, groupID int64, date time.Time) ([]timetable.Lesson, error)
	TimetableForPeriod(ctx context.Context, groupID int64, from, to time.Time) ([]timetable.Lesson, error)

	// UpcomingLessons returns today's and tomorrow's lessons starting within
	// the given number of hours from now.
	UpcomingLessons(ctx context.Context, groupID int64, hours int) ([]timetable.Lesson, error)

	// TeacherLessons finds lessons of any group taught by a matching
	// teacher over the next few days.
	TeacherLessons(ctx context.Context, query string) ([]timetable.LessonWithGroup, error)

	// RoomLessons finds lessons of any group held in a matching room over
	// the next few days, skipping remote e-learning entries.
	RoomLessons(ctx context.Context, query string) ([]timetable.LessonWithGroup, error)
}

type ScheduleQueryServiceImpl struct {
	lessonRepo timetable.LessonRepository
}

func NewScheduleQueryServiceImpl(lr timetable.LessonRepository) *ScheduleQueryServiceImpl {
	return &ScheduleQueryServiceImpl{lessonRepo: lr}
}

func (s *ScheduleQueryServiceImpl) TimetableForDate(ctx context.Context, groupID int64, date time.Time) ([]timetable.Lesson, error) {
	return s.lessonRepo.ListForDate(ctx, groupID, date)
}

func (s *ScheduleQueryServiceImpl) TimetableForPeriod(ctx context.Context, groupID int64, from, to time.Time) ([]timetable.Lesson, error) {
	return s.lessonRepo.ListForPeriod(ctx, groupID, from, to)
}

func (s *ScheduleQueryServiceImpl) UpcomingLessons(ctx context.Context, groupID int64, hours int) ([]timetable.Lesson, error) {
	now := time.Now()
	today := timetable.DateOf(now)
	lessons, err := s.lessonRepo.ListForPeriod(ctx, groupID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	horizon := time.Duration(hours) * time.Hour
	upcoming := make([]timetable.Lesson, 0, len(lessons))
	for _, l := range lessons {
		until := l.StartsAt().Sub(now)
		if until >= 0 && until <= horizon {
			upcoming = append(upcoming, l)
		}
	}
	return upcoming, nil
}

func (s *ScheduleQueryServiceImpl) TeacherLessons(ctx context.Context, query string) ([]timetable.LessonWithGroup, error) {
	query, err := normalizeSearchQuery(query)
	if err != nil {
		return nil, err
	}
	today := timetable.DateOf(time.Now())
	return s.lessonRepo.FindByTeacher(ctx, query, today, today.AddDate(0, 0, teacherSearchDays))
}

func (s *ScheduleQueryServiceImpl) RoomLessons(ctx context.Context, query string) ([]timetable.LessonWithGroup, error) {
	query, err := normalizeSearchQuery(query)
	if err != nil {
		return nil, err
	}
	today := timetable.DateOf(time.Now())
	lessons, err := s.lessonRepo.FindByAudience(ctx, query, today, today.AddDate(0, 0, teacherSearchDays))
	if err != nil {
		return nil, err
	}

	rooms := make([]timetable.LessonWithGroup, 0, len(lessons))
	for _, l := range lessons {
		if strings.Contains(strings.ToUpper(l.Audience), remoteAudienceMarker) {
			continue
		}
		rooms = append(rooms, l)
	}
	return rooms, nil
}

func normalizeSearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchRunes {
		return "", ErrSearchQueryTooShort
	}
	return query, nil
}
