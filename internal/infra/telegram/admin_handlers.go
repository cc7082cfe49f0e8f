package telegram

import (
	"context"
	"fmt"
	"time"

	"timetable_notification_bot/internal/app"
	"timetable_notification_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// force refresh walks the site, give it room
const adminRefreshTimeout = 2 * time.Minute

func RegisterAdminHandlers(
	b *telebot.Bot,
	cfg *config.AppConfig,
	updateService app.UpdateService,
	subService app.SubscriptionService,
	baseLogger *logrus.Entry,
) {
	adminLogger := baseLogger.WithField("handler_group", "admin")

	// /refresh <группа> forces one group's timetable refresh, ignoring the
	// ledger gate. Without an argument it forces the group catalog instead.
	b.Handle("/refresh", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := adminLogger.WithField("command", "/refresh").WithField("sender_id", senderID)
		if senderID != cfg.AdminTelegramID {
			logCtx.Warn("Unauthorized /refresh attempt")
			return c.Send("Эта команда доступна только администратору.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), adminRefreshTimeout)
		defer cancel()

		args := c.Args()
		if len(args) == 0 {
			logCtx.Info("Forcing group catalog refresh")
			if err := updateService.RefreshGroupList(ctx); err != nil {
				logCtx.WithError(err).Error("Forced group catalog refresh failed")
				return c.Send(fmt.Sprintf("Обновление списка групп завершилось ошибкой: %v", err))
			}
			return c.Send("Список групп обновлён.")
		}

		group, matches, err := subService.ResolveGroup(ctx, args[0])
		switch {
		case err == app.ErrGroupQueryNoMatch:
			return c.Send(fmt.Sprintf("Группа «%s» не найдена.", args[0]))
		case err == app.ErrGroupQueryAmbiguous:
			return c.Send(fmt.Sprintf("По запросу «%s» найдено несколько групп (%d). Уточните запрос.", args[0], len(matches)))
		case err != nil:
			logCtx.WithError(err).Error("Failed to resolve group for forced refresh")
			return c.Send("Не удалось найти группу. Пожалуйста, попробуйте позже.")
		}

		logCtx.WithField("group", group.Name).Info("Forcing timetable refresh")
		if err := updateService.ForceRefreshGroup(ctx, group.ExternalID); err != nil {
			logCtx.WithError(err).Error("Forced timetable refresh failed")
			return c.Send(fmt.Sprintf("Обновление расписания группы %s завершилось ошибкой: %v", group.Name, err))
		}

		subscribers, err := subService.GroupSubscribers(ctx, group.ExternalID)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to count group subscribers")
			return c.Send(fmt.Sprintf("Расписание группы %s обновлено.", group.Name))
		}
		return c.Send(fmt.Sprintf("Расписание группы %s обновлено. Подписчиков: %d.", group.Name, len(subscribers)))
	})
}
