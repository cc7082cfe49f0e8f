package scheduler

import (
	"context"
	"log"
	"time"

	"timetable_notification_bot/internal/app"

	"github.com/robfig/cron/v3"
)

// RefreshScheduler drives the three periodic sweeps: group catalog refresh,
// per-group timetable refresh and the notification check. The cron specs
// only decide how often each sweep wakes up; the update ledger decides what
// actually gets refreshed inside it.
type RefreshScheduler struct {
	cronEngine          *cron.Cron
	updateService       app.UpdateService
	notifService        app.NotificationService
	logger              *log.Logger
	cronSpecGroups      string
	cronSpecTimetables  string
	cronSpecNotifyCheck string
}

func NewRefreshScheduler(
	updateService app.UpdateService,
	notifService app.NotificationService,
	logger *log.Logger,
	cronSpecGroups string, // e.g. "30 3 * * *"
	cronSpecTimetables string, // e.g. "0 * * * *"
	cronSpecNotifyCheck string, // e.g. "*/2 * * * *"
) *RefreshScheduler {
	return &RefreshScheduler{
		cronEngine:          cron.New(cron.WithLocation(time.Local)),
		updateService:       updateService,
		notifService:        notifService,
		logger:              logger,
		cronSpecGroups:      cronSpecGroups,
		cronSpecTimetables:  cronSpecTimetables,
		cronSpecNotifyCheck: cronSpecNotifyCheck,
	}
}

func (s *RefreshScheduler) Start() {
	s.logger.Println("INFO: Starting refresh scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecGroups, func() {
		s.logger.Println("INFO: Cron job triggered for group catalog refresh.")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.updateService.RefreshGroupList(ctx); err != nil {
			s.logger.Printf("ERROR: Error during group catalog refresh: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add group catalog refresh cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecTimetables, func() {
		s.logger.Println("INFO: Cron job triggered for timetable refresh sweep.")
		// Long timeout: the sweep walks every due group with a polite
		// delay between fetches.
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Minute)
		defer cancel()
		if err := s.updateService.RefreshTimetables(ctx); err != nil {
			s.logger.Printf("ERROR: Error during timetable refresh sweep: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add timetable refresh cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecNotifyCheck, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := s.notifService.RunCheck(ctx); err != nil {
			s.logger.Printf("ERROR: Error during notification check: %v", err)
		}
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add notification check cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Println("INFO: Refresh scheduler started with jobs.")
}

func (s *RefreshScheduler) Stop() {
	s.logger.Println("INFO: Stopping refresh scheduler...")
	ctx := s.cronEngine.Stop() // Stops new runs, waits for running jobs.
	<-ctx.Done()
	s.logger.Println("INFO: Refresh scheduler gracefully stopped.")
}
