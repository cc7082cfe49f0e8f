package updates

import (
	"context"
	"time"
)

// Repository persists the update ledger.
type Repository interface {
	Get(ctx context.Context, kind string, entityID int64) (*Entry, error)

	// MarkStart records the beginning of a refresh attempt, upserting the
	// entry with status in_progress.
	MarkStart(ctx context.Context, kind string, entityID int64) error

	// Complete records the attempt's outcome and schedules the next one.
	Complete(ctx context.Context, kind string, entityID int64, nextUpdate time.Time, status Status) error

	// ResetInterrupted flips every in_progress entry to interrupted with
	// next_update cleared, returning how many were reset. Called once at
	// startup: an entry still in_progress then belongs to a crashed run.
	ResetInterrupted(ctx context.Context) (int64, error)
}
