package timetable

import (
	"context"
	"time"
)

// GroupRepository persists the group catalog and per-group refresh settings.
type GroupRepository interface {
	// Upsert inserts a group or updates its name, keyed by ExternalID.
	Upsert(ctx context.Context, group *Group) error
	List(ctx context.Context) ([]*Group, error)
	GetByExternalID(ctx context.Context, externalID int64) (*Group, error)

	// UpdatePeriodDays returns the look-ahead window (in days) used when
	// refreshing the group's timetable. Groups without an explicit setting
	// get the supplied default.
	UpdatePeriodDays(ctx context.Context, externalID int64, defaultDays int) (int, error)
	SetUpdatePeriodDays(ctx context.Context, externalID int64, days int) error
}

// LessonRepository persists per-group lesson sets.
type LessonRepository interface {
	// ReplaceForGroup atomically swaps the group's entire stored lesson set
	// for the given one. An empty set removes all stored lessons.
	ReplaceForGroup(ctx context.Context, groupID int64, lessons []Lesson) error

	ListForDate(ctx context.Context, groupID int64, date time.Time) ([]Lesson, error)
	ListForPeriod(ctx context.Context, groupID int64, from, to time.Time) ([]Lesson, error)

	// ListForDates loads the lessons of several groups across several dates
	// in one round trip, keyed by group, ordered by date then start time.
	ListForDates(ctx context.Context, groupIDs []int64, dates []time.Time) (map[int64][]Lesson, error)

	FindByTeacher(ctx context.Context, pattern string, from, to time.Time) ([]LessonWithGroup, error)
	FindByAudience(ctx context.Context, pattern string, from, to time.Time) ([]LessonWithGroup, error)
}

// CatalogSource fetches the group catalog from the schedule site. An empty
// result is a soft failure, not an error.
type CatalogSource interface {
	FetchGroups(ctx context.Context) ([]CatalogEntry, error)
}

// ScheduleSource fetches a group's timetable for a date span from the
// schedule site. An empty result is a soft failure, not an error.
type ScheduleSource interface {
	FetchTimetable(ctx context.Context, groupID int64, from, to time.Time) ([]Lesson, error)
}
