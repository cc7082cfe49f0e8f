package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"timetable_notification_bot/internal/domain/timetable"
	"timetable_notification_bot/internal/domain/updates"
	idb "timetable_notification_bot/internal/infra/database"
)

type fakeGroupRepo struct {
	groups  map[int64]*timetable.Group
	periods map[int64]int
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: map[int64]*timetable.Group{}, periods: map[int64]int{}}
}

func (r *fakeGroupRepo) Upsert(_ context.Context, g *timetable.Group) error {
	if existing, ok := r.groups[g.ExternalID]; ok {
		existing.Name = g.Name
		g.ID = existing.ID
		return nil
	}
	g.ID = int64(len(r.groups) + 1)
	copied := *g
	r.groups[g.ExternalID] = &copied
	return nil
}

func (r *fakeGroupRepo) List(_ context.Context) ([]*timetable.Group, error) {
	out := make([]*timetable.Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out, nil
}

func (r *fakeGroupRepo) GetByExternalID(_ context.Context, externalID int64) (*timetable.Group, error) {
	g, ok := r.groups[externalID]
	if !ok {
		return nil, idb.ErrGroupNotFound
	}
	return g, nil
}

func (r *fakeGroupRepo) UpdatePeriodDays(_ context.Context, externalID int64, defaultDays int) (int, error) {
	if days, ok := r.periods[externalID]; ok {
		return days, nil
	}
	return defaultDays, nil
}

func (r *fakeGroupRepo) SetUpdatePeriodDays(_ context.Context, externalID int64, days int) error {
	r.periods[externalID] = days
	return nil
}

type fakeLessonRepo struct {
	byGroup  map[int64][]timetable.Lesson
	replaces int
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{byGroup: map[int64][]timetable.Lesson{}}
}

func (r *fakeLessonRepo) ReplaceForGroup(_ context.Context, groupID int64, lessons []timetable.Lesson) error {
	r.replaces++
	r.byGroup[groupID] = lessons
	return nil
}

func (r *fakeLessonRepo) ListForDate(_ context.Context, groupID int64, date time.Time) ([]timetable.Lesson, error) {
	var out []timetable.Lesson
	for _, l := range r.byGroup[groupID] {
		if l.Date.Equal(timetable.DateOf(date)) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) ListForPeriod(_ context.Context, groupID int64, from, to time.Time) ([]timetable.Lesson, error) {
	var out []timetable.Lesson
	for _, l := range r.byGroup[groupID] {
		if !l.Date.Before(timetable.DateOf(from)) && !l.Date.After(timetable.DateOf(to)) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) ListForDates(_ context.Context, groupIDs []int64, dates []time.Time) (map[int64][]timetable.Lesson, error) {
	out := map[int64][]timetable.Lesson{}
	for _, id := range groupIDs {
		for _, l := range r.byGroup[id] {
			for _, d := range dates {
				if l.Date.Equal(timetable.DateOf(d)) {
					out[id] = append(out[id], l)
					break
				}
			}
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) FindByTeacher(_ context.Context, _ string, _, _ time.Time) ([]timetable.LessonWithGroup, error) {
	return nil, nil
}

func (r *fakeLessonRepo) FindByAudience(_ context.Context, _ string, _, _ time.Time) ([]timetable.LessonWithGroup, error) {
	return nil, nil
}

type fakeLedger struct {
	entries map[string]*updates.Entry
	starts  int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]*updates.Entry{}}
}

func ledgerKey(kind string, entityID int64) string {
	return fmt.Sprintf("%s/%d", kind, entityID)
}

func (l *fakeLedger) Get(_ context.Context, kind string, entityID int64) (*updates.Entry, error) {
	e, ok := l.entries[ledgerKey(kind, entityID)]
	if !ok {
		return nil, idb.ErrLedgerEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (l *fakeLedger) MarkStart(_ context.Context, kind string, entityID int64) error {
	l.starts++
	l.entries[ledgerKey(kind, entityID)] = &updates.Entry{
		EntityKind: kind,
		EntityID:   entityID,
		Status:     updates.StatusInProgress,
	}
	return nil
}

func (l *fakeLedger) Complete(_ context.Context, kind string, entityID int64, nextUpdate time.Time, status updates.Status) error {
	e, ok := l.entries[ledgerKey(kind, entityID)]
	if !ok {
		return idb.ErrLedgerEntryNotFound
	}
	e.NextUpdate.Time = nextUpdate
	e.NextUpdate.Valid = true
	e.Status = status
	return nil
}

func (l *fakeLedger) ResetInterrupted(_ context.Context) (int64, error) {
	var reset int64
	for _, e := range l.entries {
		if e.Status == updates.StatusInProgress {
			e.Status = updates.StatusInterrupted
			e.NextUpdate.Valid = false
			reset++
		}
	}
	return reset, nil
}

type fakeCatalog struct {
	entries []timetable.CatalogEntry
	err     error
	calls   int
}

func (c *fakeCatalog) FetchGroups(_ context.Context) ([]timetable.CatalogEntry, error) {
	c.calls++
	return c.entries, c.err
}

type fakeSchedule struct {
	lessons map[int64][]timetable.Lesson
	errFor  map[int64]error
	calls   int
}

func (s *fakeSchedule) FetchTimetable(_ context.Context, groupID int64, _, _ time.Time) ([]timetable.Lesson, error) {
	s.calls++
	if err := s.errFor[groupID]; err != nil {
		return nil, err
	}
	return s.lessons[groupID], nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func lessonAt(date time.Time, number int, start string) timetable.Lesson {
	tod, _ := timetable.ParseTimeOfDay(start)
	return timetable.Lesson{
		Date:      timetable.DateOf(date),
		Number:    number,
		TimeStart: tod,
		TimeEnd:   timetable.TimeOfDay{Hour: tod.Hour + 1, Minute: tod.Minute},
		Subject:   "Математика",
	}
}

func newTestUpdateService(gr *fakeGroupRepo, lr *fakeLessonRepo, ledger *fakeLedger, catalog *fakeCatalog, schedule *fakeSchedule) *UpdateServiceImpl {
	return NewUpdateServiceImpl(gr, lr, ledger, catalog, schedule, discardLogger(), 0, 30)
}

func TestRefreshGroupListStoresCatalog(t *testing.T) {
	gr := newFakeGroupRepo()
	ledger := newFakeLedger()
	catalog := &fakeCatalog{entries: []timetable.CatalogEntry{
		{Name: "БИПО22", ExternalID: 16479},
		{Name: "БОЗИоз23", ExternalID: 16522},
	}}
	svc := newTestUpdateService(gr, newFakeLessonRepo(), ledger, catalog, &fakeSchedule{})

	if err := svc.RefreshGroupList(context.Background()); err != nil {
		t.Fatalf("RefreshGroupList returned error: %v", err)
	}

	if len(gr.groups) != 2 {
		t.Errorf("expected 2 groups stored, got %d", len(gr.groups))
	}
	entry := ledger.entries[ledgerKey(updates.KindGroupList, 0)]
	if entry == nil || entry.Status != updates.StatusCompleted {
		t.Fatalf("expected completed ledger entry, got %+v", entry)
	}
	weekAhead := time.Now().Add(7 * 24 * time.Hour)
	if !entry.NextUpdate.Valid || entry.NextUpdate.Time.Before(weekAhead.Add(-time.Minute)) {
		t.Errorf("expected next update about a week ahead, got %v", entry.NextUpdate)
	}
}

func TestRefreshGroupListEmptyIsSoftFailure(t *testing.T) {
	gr := newFakeGroupRepo()
	gr.Upsert(context.Background(), &timetable.Group{Name: "БИПО22", ExternalID: 16479})
	ledger := newFakeLedger()
	svc := newTestUpdateService(gr, newFakeLessonRepo(), ledger, &fakeCatalog{}, &fakeSchedule{})

	if err := svc.RefreshGroupList(context.Background()); err != nil {
		t.Fatalf("soft failure must not be an error, got: %v", err)
	}

	if len(gr.groups) != 1 {
		t.Errorf("stored catalog must survive an empty fetch, got %d groups", len(gr.groups))
	}
	entry := ledger.entries[ledgerKey(updates.KindGroupList, 0)]
	if entry.Status != updates.StatusFailed {
		t.Errorf("expected status failed, got %s", entry.Status)
	}
	retryBy := time.Now().Add(retryInterval + time.Minute)
	if !entry.NextUpdate.Valid || entry.NextUpdate.Time.After(retryBy) {
		t.Errorf("expected retry within about an hour, got %v", entry.NextUpdate)
	}
}

func TestRefreshGroupListSkipsWhenNotDue(t *testing.T) {
	ledger := newFakeLedger()
	ledger.MarkStart(context.Background(), updates.KindGroupList, 0)
	ledger.Complete(context.Background(), updates.KindGroupList, 0, time.Now().Add(time.Hour), updates.StatusCompleted)
	catalog := &fakeCatalog{entries: []timetable.CatalogEntry{{Name: "БИПО22", ExternalID: 16479}}}
	svc := newTestUpdateService(newFakeGroupRepo(), newFakeLessonRepo(), ledger, catalog, &fakeSchedule{})

	if err := svc.RefreshGroupList(context.Background()); err != nil {
		t.Fatalf("RefreshGroupList returned error: %v", err)
	}
	if catalog.calls != 0 {
		t.Errorf("fetch must be skipped while the entry is not due, got %d calls", catalog.calls)
	}
}

func TestRefreshTimetablesIsolatesGroupFailures(t *testing.T) {
	ctx := context.Background()
	gr := newFakeGroupRepo()
	gr.Upsert(ctx, &timetable.Group{Name: "БИПО22", ExternalID: 1})
	gr.Upsert(ctx, &timetable.Group{Name: "БОЗИоз23", ExternalID: 2})

	lr := newFakeLessonRepo()
	ledger := newFakeLedger()
	tomorrow := time.Now().AddDate(0, 0, 1)
	schedule := &fakeSchedule{
		lessons: map[int64][]timetable.Lesson{2: {lessonAt(tomorrow, 1, "08:30")}},
		errFor:  map[int64]error{1: fmt.Errorf("connection reset")},
	}
	svc := newTestUpdateService(gr, lr, ledger, &fakeCatalog{}, schedule)

	if err := svc.RefreshTimetables(ctx); err != nil {
		t.Fatalf("sweep must absorb per-group failures, got: %v", err)
	}

	if len(lr.byGroup[2]) != 1 {
		t.Errorf("healthy group must still be refreshed, got %d lessons", len(lr.byGroup[2]))
	}
	if ledger.entries[ledgerKey(updates.KindTimetable, 1)].Status != updates.StatusError {
		t.Errorf("failing group must be marked error")
	}
	if ledger.entries[ledgerKey(updates.KindTimetable, 2)].Status != updates.StatusCompleted {
		t.Errorf("healthy group must be marked completed")
	}
}

func TestRefreshTimetablesEmptyFetchKeepsStoredLessons(t *testing.T) {
	ctx := context.Background()
	gr := newFakeGroupRepo()
	gr.Upsert(ctx, &timetable.Group{Name: "БИПО22", ExternalID: 1})

	lr := newFakeLessonRepo()
	lr.byGroup[1] = []timetable.Lesson{lessonAt(time.Now(), 1, "08:30")}
	ledger := newFakeLedger()
	svc := newTestUpdateService(gr, lr, ledger, &fakeCatalog{}, &fakeSchedule{})

	if err := svc.RefreshTimetables(ctx); err != nil {
		t.Fatalf("RefreshTimetables returned error: %v", err)
	}

	if lr.replaces != 0 {
		t.Errorf("empty fetch must not replace stored lessons")
	}
	if len(lr.byGroup[1]) != 1 {
		t.Errorf("stored lessons must survive an empty fetch")
	}
	if ledger.entries[ledgerKey(updates.KindTimetable, 1)].Status != updates.StatusFailed {
		t.Errorf("expected status failed after empty fetch")
	}
}

func TestRefreshTimetablesSkipsGroupsNotDue(t *testing.T) {
	ctx := context.Background()
	gr := newFakeGroupRepo()
	gr.Upsert(ctx, &timetable.Group{Name: "БИПО22", ExternalID: 1})

	ledger := newFakeLedger()
	ledger.MarkStart(ctx, updates.KindTimetable, 1)
	ledger.Complete(ctx, updates.KindTimetable, 1, time.Now().Add(12*time.Hour), updates.StatusCompleted)

	schedule := &fakeSchedule{}
	svc := newTestUpdateService(gr, newFakeLessonRepo(), ledger, &fakeCatalog{}, schedule)

	if err := svc.RefreshTimetables(ctx); err != nil {
		t.Fatalf("RefreshTimetables returned error: %v", err)
	}
	if schedule.calls != 0 {
		t.Errorf("group not due must not be fetched, got %d calls", schedule.calls)
	}
}

func TestForceRefreshGroupIgnoresLedgerGate(t *testing.T) {
	ctx := context.Background()
	gr := newFakeGroupRepo()
	gr.Upsert(ctx, &timetable.Group{Name: "БИПО22", ExternalID: 1})

	ledger := newFakeLedger()
	ledger.MarkStart(ctx, updates.KindTimetable, 1)
	ledger.Complete(ctx, updates.KindTimetable, 1, time.Now().Add(12*time.Hour), updates.StatusCompleted)

	lr := newFakeLessonRepo()
	schedule := &fakeSchedule{lessons: map[int64][]timetable.Lesson{1: {lessonAt(time.Now(), 1, "08:30")}}}
	svc := newTestUpdateService(gr, lr, ledger, &fakeCatalog{}, schedule)

	if err := svc.ForceRefreshGroup(ctx, 1); err != nil {
		t.Fatalf("ForceRefreshGroup returned error: %v", err)
	}
	if schedule.calls != 1 {
		t.Errorf("forced refresh must fetch regardless of the gate")
	}
	if len(lr.byGroup[1]) != 1 {
		t.Errorf("forced refresh must store the fetched lessons")
	}
}

func TestForceRefreshGroupUnknownGroup(t *testing.T) {
	svc := newTestUpdateService(newFakeGroupRepo(), newFakeLessonRepo(), newFakeLedger(), &fakeCatalog{}, &fakeSchedule{})
	if err := svc.ForceRefreshGroup(context.Background(), 42); err != idb.ErrGroupNotFound {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.MarkStart(ctx, updates.KindTimetable, 1)
	ledger.MarkStart(ctx, updates.KindTimetable, 2)
	ledger.MarkStart(ctx, updates.KindGroupList, 0)
	ledger.Complete(ctx, updates.KindGroupList, 0, time.Now().Add(time.Hour), updates.StatusCompleted)

	svc := newTestUpdateService(newFakeGroupRepo(), newFakeLessonRepo(), ledger, &fakeCatalog{}, &fakeSchedule{})
	reset, err := svc.RecoverInterrupted(ctx)
	if err != nil {
		t.Fatalf("RecoverInterrupted returned error: %v", err)
	}
	if reset != 2 {
		t.Errorf("expected 2 resets, got %d", reset)
	}

	for _, id := range []int64{1, 2} {
		e := ledger.entries[ledgerKey(updates.KindTimetable, id)]
		if e.Status != updates.StatusInterrupted {
			t.Errorf("group %d: expected interrupted, got %s", id, e.Status)
		}
		if !e.Due(time.Now()) {
			t.Errorf("group %d: interrupted entry must be immediately due", id)
		}
	}
}
