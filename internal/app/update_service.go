package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"timetable_notification_bot/internal/domain/timetable"
	"timetable_notification_bot/internal/domain/updates"
	idb "timetable_notification_bot/internal/infra/database"
	"timetable_notification_bot/internal/infra/metrics"
)

// Refresh cadences. A soft failure (empty fetch) and a hard error both
// retry after retryInterval instead of waiting a full cadence.
const (
	groupListCadence = 7 * 24 * time.Hour
	timetableCadence = 24 * time.Hour
	retryInterval    = 1 * time.Hour
)

// UpdateService drives the refresh pipeline: the group catalog from the
// schedule site into storage, and every group's timetable within its
// look-ahead window.
type UpdateService interface {
	// RefreshGroupList refreshes the group catalog if the ledger says it is
	// due; otherwise returns immediately.
	RefreshGroupList(ctx context.Context) error

	// RefreshTimetables walks all known groups and refreshes each one whose
	// ledger entry is due.
	RefreshTimetables(ctx context.Context) error

	// ForceRefreshGroup refreshes one group's timetable right away,
	// ignoring the ledger gate.
	ForceRefreshGroup(ctx context.Context, externalID int64) error

	// RecoverInterrupted flags refreshes left in_progress by a crashed run
	// so they retry on the next sweep. Call once at startup.
	RecoverInterrupted(ctx context.Context) (int64, error)
}

type UpdateServiceImpl struct {
	groupRepo  timetable.GroupRepository
	lessonRepo timetable.LessonRepository
	ledger     updates.Repository
	catalog    timetable.CatalogSource
	schedule   timetable.ScheduleSource
	logger     *log.Logger

	fetchDelay       time.Duration // pause between consecutive group fetches
	defaultLookahead int           // days, for groups without their own setting
}

func NewUpdateServiceImpl(
	gr timetable.GroupRepository,
	lr timetable.LessonRepository,
	ur updates.Repository,
	cs timetable.CatalogSource,
	ss timetable.ScheduleSource,
	logger *log.Logger,
	fetchDelay time.Duration,
	defaultLookahead int,
) *UpdateServiceImpl {
	return &UpdateServiceImpl{
		groupRepo:        gr,
		lessonRepo:       lr,
		ledger:           ur,
		catalog:          cs,
		schedule:         ss,
		logger:           logger,
		fetchDelay:       fetchDelay,
		defaultLookahead: defaultLookahead,
	}
}

func (s *UpdateServiceImpl) RefreshGroupList(ctx context.Context) error {
	entry, err := s.ledger.Get(ctx, updates.KindGroupList, 0)
	if err != nil && err != idb.ErrLedgerEntryNotFound {
		return fmt.Errorf("failed to read group list ledger entry: %w", err)
	}
	if err == nil && !entry.Due(time.Now()) {
		s.logger.Printf("INFO: Group catalog not due until %s. Skipping.", entry.NextUpdate.Time.Format(time.RFC3339))
		return nil
	}

	if err := s.ledger.MarkStart(ctx, updates.KindGroupList, 0); err != nil {
		return fmt.Errorf("failed to mark group list refresh start: %w", err)
	}

	entries, err := s.catalog.FetchGroups(ctx)
	if err != nil {
		s.logger.Printf("ERROR: Group catalog fetch failed: %v", err)
		metrics.RefreshRuns.WithLabelValues(updates.KindGroupList, string(updates.StatusError)).Inc()
		s.completeLedger(ctx, updates.KindGroupList, 0, time.Now().Add(retryInterval), updates.StatusError)
		return fmt.Errorf("group catalog fetch failed: %w", err)
	}
	if len(entries) == 0 {
		// Soft failure: the site answered but served no groups. Keep the
		// stored catalog and retry soon.
		s.logger.Println("WARN: Group catalog fetch returned no groups. Keeping stored catalog.")
		metrics.RefreshRuns.WithLabelValues(updates.KindGroupList, string(updates.StatusFailed)).Inc()
		s.completeLedger(ctx, updates.KindGroupList, 0, time.Now().Add(retryInterval), updates.StatusFailed)
		return nil
	}

	for _, e := range entries {
		group := &timetable.Group{Name: e.Name, ExternalID: e.ExternalID}
		if err := s.groupRepo.Upsert(ctx, group); err != nil {
			s.logger.Printf("ERROR: Failed to upsert group %q (%d): %v", e.Name, e.ExternalID, err)
			s.completeLedger(ctx, updates.KindGroupList, 0, time.Now().Add(retryInterval), updates.StatusError)
			return fmt.Errorf("failed to store group catalog: %w", err)
		}
	}

	s.logger.Printf("INFO: Group catalog refreshed: %d groups stored.", len(entries))
	metrics.RefreshRuns.WithLabelValues(updates.KindGroupList, string(updates.StatusCompleted)).Inc()
	s.completeLedger(ctx, updates.KindGroupList, 0, time.Now().Add(groupListCadence), updates.StatusCompleted)
	return nil
}

func (s *UpdateServiceImpl) RefreshTimetables(ctx context.Context) error {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups for timetable refresh: %w", err)
	}
	if len(groups) == 0 {
		s.logger.Println("INFO: No groups known yet. Timetable sweep has nothing to do.")
		return nil
	}

	refreshed := 0
	for _, group := range groups {
		if ctx.Err() != nil {
			s.logger.Printf("WARN: Timetable sweep cancelled after %d groups: %v", refreshed, ctx.Err())
			return ctx.Err()
		}

		entry, err := s.ledger.Get(ctx, updates.KindTimetable, group.ExternalID)
		if err != nil && err != idb.ErrLedgerEntryNotFound {
			s.logger.Printf("ERROR: Failed to read ledger for group %d: %v", group.ExternalID, err)
			continue
		}
		if err == nil && !entry.Due(time.Now()) {
			continue
		}

		// One group failing must not stop the sweep.
		if err := s.refreshGroupTimetable(ctx, group.ExternalID); err != nil {
			s.logger.Printf("ERROR: Timetable refresh failed for group %q (%d): %v", group.Name, group.ExternalID, err)
		}
		refreshed++

		if s.fetchDelay > 0 {
			time.Sleep(s.fetchDelay)
		}
	}

	s.logger.Printf("INFO: Timetable sweep finished: %d of %d groups attempted.", refreshed, len(groups))
	return nil
}

func (s *UpdateServiceImpl) ForceRefreshGroup(ctx context.Context, externalID int64) error {
	if _, err := s.groupRepo.GetByExternalID(ctx, externalID); err != nil {
		return err
	}
	return s.refreshGroupTimetable(ctx, externalID)
}

func (s *UpdateServiceImpl) RecoverInterrupted(ctx context.Context) (int64, error) {
	reset, err := s.ledger.ResetInterrupted(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset interrupted refreshes: %w", err)
	}
	if reset > 0 {
		s.logger.Printf("WARN: %d refresh(es) were interrupted by the previous shutdown and will retry.", reset)
	}
	return reset, nil
}

// refreshGroupTimetable fetches one group's lessons for its look-ahead
// window and atomically replaces the stored set. The ledger entry is
// in_progress for the duration, so a crash here surfaces at the next start.
func (s *UpdateServiceImpl) refreshGroupTimetable(ctx context.Context, externalID int64) error {
	if err := s.ledger.MarkStart(ctx, updates.KindTimetable, externalID); err != nil {
		return fmt.Errorf("failed to mark timetable refresh start: %w", err)
	}

	days, err := s.groupRepo.UpdatePeriodDays(ctx, externalID, s.defaultLookahead)
	if err != nil {
		s.completeLedger(ctx, updates.KindTimetable, externalID, time.Now().Add(retryInterval), updates.StatusError)
		return fmt.Errorf("failed to read look-ahead period: %w", err)
	}

	from := time.Now()
	to := from.AddDate(0, 0, days)
	lessons, err := s.schedule.FetchTimetable(ctx, externalID, from, to)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues(updates.KindTimetable, string(updates.StatusError)).Inc()
		s.completeLedger(ctx, updates.KindTimetable, externalID, time.Now().Add(retryInterval), updates.StatusError)
		return fmt.Errorf("timetable fetch failed: %w", err)
	}
	if len(lessons) == 0 {
		// Soft failure: keep the stored timetable and retry soon. The site
		// regularly serves empty pages under load.
		metrics.RefreshRuns.WithLabelValues(updates.KindTimetable, string(updates.StatusFailed)).Inc()
		s.completeLedger(ctx, updates.KindTimetable, externalID, time.Now().Add(retryInterval), updates.StatusFailed)
		return nil
	}

	if err := s.lessonRepo.ReplaceForGroup(ctx, externalID, lessons); err != nil {
		metrics.RefreshRuns.WithLabelValues(updates.KindTimetable, string(updates.StatusError)).Inc()
		s.completeLedger(ctx, updates.KindTimetable, externalID, time.Now().Add(retryInterval), updates.StatusError)
		return fmt.Errorf("failed to store timetable: %w", err)
	}

	metrics.RefreshRuns.WithLabelValues(updates.KindTimetable, string(updates.StatusCompleted)).Inc()
	metrics.LessonsStored.Set(float64(len(lessons)))
	s.completeLedger(ctx, updates.KindTimetable, externalID, time.Now().Add(timetableCadence), updates.StatusCompleted)
	return nil
}

// completeLedger records the outcome; a bookkeeping failure here is logged
// rather than returned, the refresh outcome itself takes precedence.
func (s *UpdateServiceImpl) completeLedger(ctx context.Context, kind string, entityID int64, nextUpdate time.Time, status updates.Status) {
	if err := s.ledger.Complete(ctx, kind, entityID, nextUpdate, status); err != nil {
		s.logger.Printf("ERROR: Failed to record ledger outcome (%s, %d, %s): %v", kind, entityID, status, err)
	}
}
