package updates

import (
	"database/sql"
	"time"
)

// Entity kinds tracked by the update ledger.
const (
	KindGroupList = "groups_list"
	KindTimetable = "timetable"
)

// Status is the outcome of the last refresh attempt for an entity.
type Status string

const (
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed" // soft failure: empty fetch result
	StatusError       Status = "error"
	StatusInterrupted Status = "interrupted" // crashed mid-refresh, reset at startup
)

// Entry is the ledger row governing one entity's refresh cadence.
// EntityID is the external group key for timetable entries and zero for the
// group list.
type Entry struct {
	ID         int64
	EntityKind string
	EntityID   int64
	LastUpdate sql.NullTime
	NextUpdate sql.NullTime
	Status     Status
}

// Due reports whether the entity should be refreshed at now. A missing
// entry is always due, as is one without a scheduled next update — which is
// how interrupted entries force an immediate retry.
func (e *Entry) Due(now time.Time) bool {
	if e == nil {
		return true
	}
	if e.NextUpdate.Valid && e.NextUpdate.Time.After(now) {
		return false
	}
	return true
}
