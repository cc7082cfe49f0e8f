package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"timetable_notification_bot/internal/domain/updates"
)

var ErrLedgerEntryNotFound = fmt.Errorf("update ledger entry not found")

type PostgresUpdateRepository struct {
	db *sql.DB
}

func NewPostgresUpdateRepository(db *sql.DB) *PostgresUpdateRepository {
	return &PostgresUpdateRepository{db: db}
}

func (r *PostgresUpdateRepository) Get(ctx context.Context, kind string, entityID int64) (*updates.Entry, error) {
	query := `SELECT id, entity_kind, entity_id, last_update, next_update, status
               FROM update_ledger
               WHERE entity_kind = $1 AND entity_id = $2`
	e := updates.Entry{}
	err := r.db.QueryRowContext(ctx, query, kind, entityID).Scan(
		&e.ID, &e.EntityKind, &e.EntityID, &e.LastUpdate, &e.NextUpdate, &e.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("error getting ledger entry (%s, %d): %w", kind, entityID, err)
	}
	return &e, nil
}

// MarkStart records the beginning of a refresh attempt. An entry stuck in
// in_progress after a crash is caught by ResetInterrupted at the next start.
func (r *PostgresUpdateRepository) MarkStart(ctx context.Context, kind string, entityID int64) error {
	query := `INSERT INTO update_ledger (entity_kind, entity_id, last_update, status)
               VALUES ($1, $2, NOW(), $3)
               ON CONFLICT (entity_kind, entity_id) DO UPDATE SET
                 last_update = NOW(),
                 status = EXCLUDED.status`
	if _, err := r.db.ExecContext(ctx, query, kind, entityID, updates.StatusInProgress); err != nil {
		return fmt.Errorf("error marking ledger start (%s, %d): %w", kind, entityID, err)
	}
	return nil
}

func (r *PostgresUpdateRepository) Complete(ctx context.Context, kind string, entityID int64, nextUpdate time.Time, status updates.Status) error {
	query := `UPDATE update_ledger
               SET last_update = NOW(), next_update = $3, status = $4
               WHERE entity_kind = $1 AND entity_id = $2`
	res, err := r.db.ExecContext(ctx, query, kind, entityID, nextUpdate, status)
	if err != nil {
		return fmt.Errorf("error completing ledger entry (%s, %d): %w", kind, entityID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking ledger completion result: %w", err)
	}
	if affected == 0 {
		return ErrLedgerEntryNotFound
	}
	return nil
}

// ResetInterrupted flips every in_progress entry to interrupted and clears
// its next_update, making the entity immediately due again. Run once at
// startup before the scheduler starts.
func (r *PostgresUpdateRepository) ResetInterrupted(ctx context.Context) (int64, error) {
	query := `UPDATE update_ledger
               SET status = $1, next_update = NULL
               WHERE status = $2`
	res, err := r.db.ExecContext(ctx, query, updates.StatusInterrupted, updates.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("error resetting interrupted ledger entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting reset ledger entries: %w", err)
	}
	return affected, nil
}
