package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"timetable_notification_bot/internal/domain/timetable"

	"github.com/lib/pq" // For pq.Array and driver registration
)

type PostgresLessonRepository struct {
	db *sql.DB
}

func NewPostgresLessonRepository(db *sql.DB) *PostgresLessonRepository {
	return &PostgresLessonRepository{db: db}
}

// ReplaceForGroup swaps the group's stored lesson set inside one
// transaction: delete everything, then insert the new rows. An empty slice
// therefore clears the group's timetable.
func (r *PostgresLessonRepository) ReplaceForGroup(ctx context.Context, groupID int64, lessons []timetable.Lesson) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for timetable replace: %w", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, `DELETE FROM lessons WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("error deleting old lessons for group %d: %w", groupID, err)
	}

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO lessons
               (group_id, lesson_date, number, time_start, time_end, subject, kind, audience, teacher)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("failed to prepare lesson insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lessons {
		_, err := stmt.ExecContext(ctx, groupID, l.Date, l.Number,
			l.TimeStart.String(), l.TimeEnd.String(), l.Subject, l.Kind, l.Audience, l.Teacher)
		if err != nil {
			return fmt.Errorf("error inserting lesson (G:%d, D:%s, N:%d): %w",
				groupID, timetable.FormatWireDate(l.Date), l.Number, err)
		}
	}

	return txn.Commit()
}

const lessonColumns = `group_id, lesson_date, number, time_start, time_end, subject, kind, audience, teacher`

func (r *PostgresLessonRepository) ListForDate(ctx context.Context, groupID int64, date time.Time) ([]timetable.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons
               WHERE group_id = $1 AND lesson_date = $2
               ORDER BY time_start`
	rows, err := r.db.QueryContext(ctx, query, groupID, timetable.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("error querying lessons for date: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

func (r *PostgresLessonRepository) ListForPeriod(ctx context.Context, groupID int64, from, to time.Time) ([]timetable.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons
               WHERE group_id = $1 AND lesson_date BETWEEN $2 AND $3
               ORDER BY lesson_date, time_start`
	rows, err := r.db.QueryContext(ctx, query, groupID, timetable.DateOf(from), timetable.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("error querying lessons for period: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

func (r *PostgresLessonRepository) ListForDates(ctx context.Context, groupIDs []int64, dates []time.Time) (map[int64][]timetable.Lesson, error) {
	if len(groupIDs) == 0 || len(dates) == 0 {
		return map[int64][]timetable.Lesson{}, nil
	}

	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = timetable.DateOf(d)
	}

	query := `SELECT ` + lessonColumns + ` FROM lessons
               WHERE group_id = ANY($1::bigint[]) AND lesson_date = ANY($2::date[])
               ORDER BY group_id, lesson_date, time_start`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupIDs), pq.Array(days))
	if err != nil {
		return nil, fmt.Errorf("error querying lessons for dates: %w", err)
	}
	defer rows.Close()

	lessons, err := scanLessons(rows)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[int64][]timetable.Lesson)
	for _, l := range lessons {
		byGroup[l.GroupID] = append(byGroup[l.GroupID], l)
	}
	return byGroup, nil
}

func (r *PostgresLessonRepository) FindByTeacher(ctx context.Context, pattern string, from, to time.Time) ([]timetable.LessonWithGroup, error) {
	query := `SELECT l.group_id, l.lesson_date, l.number, l.time_start, l.time_end,
                      l.subject, l.kind, l.audience, l.teacher, g.name
               FROM lessons l
               JOIN groups g ON l.group_id = g.external_id
               WHERE l.teacher ILIKE '%' || $1 || '%'
                 AND l.teacher != ''
                 AND l.lesson_date BETWEEN $2 AND $3
               ORDER BY l.lesson_date, l.time_start`
	rows, err := r.db.QueryContext(ctx, query, pattern, timetable.DateOf(from), timetable.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("error querying lessons by teacher: %w", err)
	}
	defer rows.Close()
	return scanLessonsWithGroup(rows)
}

func (r *PostgresLessonRepository) FindByAudience(ctx context.Context, pattern string, from, to time.Time) ([]timetable.LessonWithGroup, error) {
	query := `SELECT l.group_id, l.lesson_date, l.number, l.time_start, l.time_end,
                      l.subject, l.kind, l.audience, l.teacher, g.name
               FROM lessons l
               JOIN groups g ON l.group_id = g.external_id
               WHERE l.audience ILIKE '%' || $1 || '%'
                 AND l.lesson_date BETWEEN $2 AND $3
               ORDER BY l.lesson_date, l.time_start`
	rows, err := r.db.QueryContext(ctx, query, pattern, timetable.DateOf(from), timetable.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("error querying lessons by audience: %w", err)
	}
	defer rows.Close()
	return scanLessonsWithGroup(rows)
}

// scanLessons reads lesson rows, silently dropping rows whose stored HH:MM
// values fail to parse — a malformed record skips that lesson, never the
// whole batch.
func scanLessons(rows *sql.Rows) ([]timetable.Lesson, error) {
	lessons := make([]timetable.Lesson, 0)
	for rows.Next() {
		var (
			l          timetable.Lesson
			start, end string
		)
		if err := rows.Scan(&l.GroupID, &l.Date, &l.Number, &start, &end,
			&l.Subject, &l.Kind, &l.Audience, &l.Teacher); err != nil {
			return nil, fmt.Errorf("error scanning lesson row: %w", err)
		}
		var err error
		if l.TimeStart, err = timetable.ParseTimeOfDay(start); err != nil {
			continue
		}
		if l.TimeEnd, err = timetable.ParseTimeOfDay(end); err != nil {
			continue
		}
		l.Date = timetable.DateOf(l.Date.Local())
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson rows: %w", err)
	}
	return lessons, nil
}

func scanLessonsWithGroup(rows *sql.Rows) ([]timetable.LessonWithGroup, error) {
	lessons := make([]timetable.LessonWithGroup, 0)
	for rows.Next() {
		var (
			l          timetable.LessonWithGroup
			start, end string
		)
		if err := rows.Scan(&l.GroupID, &l.Date, &l.Number, &start, &end,
			&l.Subject, &l.Kind, &l.Audience, &l.Teacher, &l.GroupName); err != nil {
			return nil, fmt.Errorf("error scanning lesson row: %w", err)
		}
		var err error
		if l.TimeStart, err = timetable.ParseTimeOfDay(start); err != nil {
			continue
		}
		if l.TimeEnd, err = timetable.ParseTimeOfDay(end); err != nil {
			continue
		}
		l.Date = timetable.DateOf(l.Date.Local())
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson rows: %w", err)
	}
	return lessons, nil
}
