package database

import (
	"context"
	"database/sql"
	"fmt"

	"timetable_notification_bot/internal/domain/timetable"
)

var ErrGroupNotFound = fmt.Errorf("group not found")

type PostgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

func (r *PostgresGroupRepository) Upsert(ctx context.Context, group *timetable.Group) error {
	query := `INSERT INTO groups (name, external_id)
               VALUES ($1, $2)
               ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, group.Name, group.ExternalID).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("error upserting group %d: %w", group.ExternalID, err)
	}
	return nil
}

func (r *PostgresGroupRepository) List(ctx context.Context) ([]*timetable.Group, error) {
	query := `SELECT id, name, external_id FROM groups ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*timetable.Group, 0)
	for rows.Next() {
		g := timetable.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.ExternalID); err != nil {
			return nil, fmt.Errorf("error scanning group row: %w", err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func (r *PostgresGroupRepository) GetByExternalID(ctx context.Context, externalID int64) (*timetable.Group, error) {
	query := `SELECT id, name, external_id FROM groups WHERE external_id = $1`
	g := timetable.Group{}
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(&g.ID, &g.Name, &g.ExternalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("error getting group by external ID: %w", err)
	}
	return &g, nil
}

func (r *PostgresGroupRepository) UpdatePeriodDays(ctx context.Context, externalID int64, defaultDays int) (int, error) {
	query := `SELECT days FROM update_periods WHERE group_id = $1`
	var days int
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(&days)
	if err != nil {
		if err == sql.ErrNoRows {
			return defaultDays, nil
		}
		return 0, fmt.Errorf("error getting update period for group %d: %w", externalID, err)
	}
	return days, nil
}

func (r *PostgresGroupRepository) SetUpdatePeriodDays(ctx context.Context, externalID int64, days int) error {
	query := `INSERT INTO update_periods (group_id, days)
               VALUES ($1, $2)
               ON CONFLICT (group_id) DO UPDATE SET days = EXCLUDED.days`
	if _, err := r.db.ExecContext(ctx, query, externalID, days); err != nil {
		return fmt.Errorf("error setting update period for group %d: %w", externalID, err)
	}
	return nil
}
