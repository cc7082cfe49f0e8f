package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"timetable_notification_bot/internal/domain/notification"
	"timetable_notification_bot/internal/domain/subscription"
	domainTelegram "timetable_notification_bot/internal/domain/telegram"
	"timetable_notification_bot/internal/domain/timetable"
	"timetable_notification_bot/internal/infra/metrics"

	"gopkg.in/telebot.v3"
)

// NotificationService runs one notification-check cycle: snapshot the
// subscription targets and their lessons, select the due candidates and
// deliver them.
type NotificationService interface {
	RunCheck(ctx context.Context) error
}

type NotificationServiceImpl struct {
	subRepo        subscription.Repository
	lessonRepo     timetable.LessonRepository
	selector       notification.Selector
	telegramClient domainTelegram.Client
	logger         *log.Logger
}

func NewNotificationServiceImpl(
	sr subscription.Repository,
	lr timetable.LessonRepository,
	selector notification.Selector,
	tc domainTelegram.Client,
	logger *log.Logger,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		subRepo:        sr,
		lessonRepo:     lr,
		selector:       selector,
		telegramClient: tc,
		logger:         logger,
	}
}

func (s *NotificationServiceImpl) RunCheck(ctx context.Context) error {
	now := time.Now()

	targets, err := s.subRepo.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load notification targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	groupIDs := uniqueGroupIDs(targets)
	today := timetable.DateOf(now)
	lessons, err := s.lessonRepo.ListForDates(ctx, groupIDs, []time.Time{today, today.AddDate(0, 0, 1)})
	if err != nil {
		return fmt.Errorf("failed to load lessons for notification check: %w", err)
	}

	candidates := s.selector.Select(now, targets, lessons)
	if len(candidates) == 0 {
		return nil
	}

	sent := 0
	for _, c := range candidates {
		text := formatCandidate(c)
		err := s.telegramClient.SendMessage(c.TelegramID, text, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		if err != nil {
			// One blocked or vanished chat must not stop the rest.
			s.logger.Printf("ERROR: Failed to deliver %s notification to %d: %v", c.Category, c.TelegramID, err)
			metrics.NotificationFailures.WithLabelValues(string(c.Category)).Inc()
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(c.Category)).Inc()
		sent++
	}

	s.logger.Printf("INFO: Notification check done: %d of %d candidates delivered.", sent, len(candidates))
	return nil
}

func uniqueGroupIDs(targets []subscription.Target) []int64 {
	seen := make(map[int64]struct{}, len(targets))
	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t.GroupID]; ok {
			continue
		}
		seen[t.GroupID] = struct{}{}
		ids = append(ids, t.GroupID)
	}
	return ids
}

func formatCandidate(c notification.Candidate) string {
	var b strings.Builder

	switch c.Category {
	case notification.CategoryDaily:
		b.WriteString(fmt.Sprintf("🔔 *Скоро первая пара* (%s)\n\n", c.GroupName))
	case notification.CategoryGap:
		b.WriteString(fmt.Sprintf("⚠️ *Напоминание о паре после перерыва* (%s)\n\n", c.GroupName))
	case notification.CategorySubject:
		b.WriteString(fmt.Sprintf("📘 *Занятие по предмету «%s»* (%s)\n\n", c.Pattern, c.GroupName))
	case notification.CategoryTeacher:
		b.WriteString(fmt.Sprintf("👨‍🏫 *Занятие у преподавателя «%s»* (%s)\n\n", c.Pattern, c.GroupName))
	default:
		b.WriteString(fmt.Sprintf("🔔 *Скоро пара* (%s)\n\n", c.GroupName))
	}

	writeLesson(&b, c.Lesson)
	b.WriteString(fmt.Sprintf("\nДо начала занятия осталось примерно %s.", leadText(c.LeadMinutes)))
	return b.String()
}

func writeLesson(b *strings.Builder, l timetable.Lesson) {
	b.WriteString(fmt.Sprintf("%d-я пара, %s — %s\n", l.Number, l.TimeStart, l.TimeEnd))
	b.WriteString(fmt.Sprintf("*%s*", l.Subject))
	if l.Kind != "" {
		b.WriteString(fmt.Sprintf(" (%s)", l.Kind))
	}
	b.WriteString("\n")
	if l.Audience != "" {
		b.WriteString(fmt.Sprintf("Аудитория: %s\n", l.Audience))
	}
	if l.Teacher != "" {
		b.WriteString(fmt.Sprintf("Преподаватель: %s\n", l.Teacher))
	}
}

func leadText(minutes int) string {
	if minutes >= 60 && minutes%60 == 0 {
		return fmt.Sprintf("%d ч.", minutes/60)
	}
	return fmt.Sprintf("%d мин.", minutes)
}
