package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"timetable_notification_bot/internal/app"
	"timetable_notification_bot/internal/domain/timetable"
	idb "timetable_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const handlerTimeout = 15 * time.Second

func RegisterBotCommands(
	b *telebot.Bot,
	subService app.SubscriptionService,
	queryService app.ScheduleQueryService,
	baseLogger *logrus.Entry,
) {
	h := &commandHandlers{
		subService:   subService,
		queryService: queryService,
		logger:       baseLogger.WithField("handler_group", "bot_commands"),
	}

	b.Handle("/start", h.handleStart)
	b.Handle("/help", h.handleHelp)
	b.Handle("/subscribe", h.handleSubscribe)
	b.Handle("/unsubscribe", h.handleUnsubscribe)
	b.Handle("/subscriptions", h.handleSubscriptions)
	b.Handle("/today", h.handleToday)
	b.Handle("/tomorrow", h.handleTomorrow)
	b.Handle("/week", h.handleWeek)
	b.Handle("/teacher", h.handleTeacher)
	b.Handle("/room", h.handleRoom)
	b.Handle("/notify", h.handleNotify)
	b.Handle("/watch_subject", h.handleWatchSubject)
	b.Handle("/watch_teacher", h.handleWatchTeacher)
	b.Handle("/period", h.handlePeriod)
}

type commandHandlers struct {
	subService   app.SubscriptionService
	queryService app.ScheduleQueryService
	logger       *logrus.Entry
}

func (h *commandHandlers) handleStart(c telebot.Context) error {
	h.logger.WithField("command", "/start").WithField("sender_id", c.Sender().ID).Info("Processing /start command")
	return c.Send(fmt.Sprintf(
		"Привет, %s! Я бот расписания занятий.\n\n"+
			"Подпишитесь на свою группу командой /subscribe, и я буду присылать напоминания о парах.\n\n"+
			"Список всех команд: /help", c.Sender().FirstName))
}

func (h *commandHandlers) handleHelp(c telebot.Context) error {
	h.logger.WithField("command", "/help").WithField("sender_id", c.Sender().ID).Info("Processing /help command")

	var helpText strings.Builder
	helpText.WriteString("Доступные команды:\n\n")
	helpText.WriteString("`/subscribe <группа>`\n - Подписаться на уведомления о парах группы.\n\n")
	helpText.WriteString("`/unsubscribe <группа>`\n - Отписаться от группы.\n\n")
	helpText.WriteString("`/subscriptions`\n - Показать ваши подписки.\n\n")
	helpText.WriteString("`/today [группа]`\n - Расписание на сегодня.\n\n")
	helpText.WriteString("`/tomorrow [группа]`\n - Расписание на завтра.\n\n")
	helpText.WriteString("`/week [группа]`\n - Расписание на неделю.\n\n")
	helpText.WriteString("`/teacher <фамилия>`\n - Занятия преподавателя на ближайшие дни.\n\n")
	helpText.WriteString("`/room <аудитория>`\n - Занятия в аудитории на ближайшие дни.\n\n")
	helpText.WriteString("`/notify <группа> on|off`\n - Включить или выключить уведомления по подписке.\n\n")
	helpText.WriteString("`/notify <группа> <general|daily|gap> <on|off|минуты>`\n - Настроить отдельную категорию напоминаний или её время.\n\n")
	helpText.WriteString("`/watch_subject <группа> <предмет> [минуты]`\n - Отдельное напоминание о предмете.\n\n")
	helpText.WriteString("`/watch_teacher <группа> <фамилия> [минуты]`\n - Отдельное напоминание о занятиях преподавателя.\n\n")
	helpText.WriteString("`/period <группа> <14|30|90>`\n - На сколько дней вперёд загружать расписание группы.\n\n")
	helpText.WriteString("`/help`\n - Показать это справочное сообщение.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *commandHandlers) handleSubscribe(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/subscribe").WithField("sender_id", c.Sender().ID)
	args := c.Args()
	if len(args) < 1 {
		return c.Send("Укажите группу: `/subscribe БИПО22`", &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.resolveGroup(ctx, c, args[0])
	if err != nil || group == nil {
		return err
	}

	sender := c.Sender()
	created, err := h.subService.Subscribe(ctx, sender.ID, sender.Username, sender.FirstName, sender.LastName, group.ExternalID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to subscribe")
		return c.Send("Не удалось оформить подписку. Пожалуйста, попробуйте позже.")
	}
	if !created {
		return c.Send(fmt.Sprintf("Вы уже подписаны на группу %s.", group.Name))
	}
	logCtx.WithField("group", group.Name).Info("Subscription created")
	return c.Send(fmt.Sprintf("Готово! Вы подписаны на группу %s и будете получать напоминания о парах.", group.Name))
}

func (h *commandHandlers) handleUnsubscribe(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/unsubscribe").WithField("sender_id", c.Sender().ID)
	args := c.Args()
	if len(args) < 1 {
		return c.Send("Укажите группу: `/unsubscribe БИПО22`", &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.resolveGroup(ctx, c, args[0])
	if err != nil || group == nil {
		return err
	}

	err = h.subService.Unsubscribe(ctx, c.Sender().ID, group.ExternalID)
	if err == idb.ErrSubscriptionNotFound {
		return c.Send(fmt.Sprintf("Вы не были подписаны на группу %s.", group.Name))
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to unsubscribe")
		return c.Send("Не удалось отписаться. Пожалуйста, попробуйте позже.")
	}
	return c.Send(fmt.Sprintf("Подписка на группу %s удалена.", group.Name))
}

func (h *commandHandlers) handleSubscriptions(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/subscriptions").WithField("sender_id", c.Sender().ID)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	subs, err := h.subService.ListForUser(ctx, c.Sender().ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list subscriptions")
		return c.Send("Не удалось получить список подписок. Пожалуйста, попробуйте позже.")
	}
	if len(subs) == 0 {
		return c.Send("У вас пока нет подписок. Оформите первую: `/subscribe БИПО22`",
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	var b strings.Builder
	b.WriteString("Ваши подписки:\n")
	for _, s := range subs {
		state := "уведомления включены"
		if !s.NotificationsEnabled {
			state = "уведомления выключены"
		}
		b.WriteString(fmt.Sprintf("• %s (%s)\n", s.GroupName, state))
	}
	return c.Send(b.String())
}

func (h *commandHandlers) handleToday(c telebot.Context) error {
	return h.sendDaySchedule(c, "/today", timetable.DateOf(time.Now()), "сегодня")
}

func (h *commandHandlers) handleTomorrow(c telebot.Context) error {
	return h.sendDaySchedule(c, "/tomorrow", timetable.DateOf(time.Now()).AddDate(0, 0, 1), "завтра")
}

func (h *commandHandlers) sendDaySchedule(c telebot.Context, command string, date time.Time, dayWord string) error {
	logCtx := h.logger.WithField("command", command).WithField("sender_id", c.Sender().ID)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.targetGroup(ctx, c, c.Args())
	if err != nil || group == nil {
		return err
	}

	lessons, err := h.queryService.TimetableForDate(ctx, group.ExternalID, date)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load day schedule")
		return c.Send("Не удалось получить расписание. Пожалуйста, попробуйте позже.")
	}
	if len(lessons) == 0 {
		return c.Send(fmt.Sprintf("На %s у группы %s занятий нет. 🎉", dayWord, group.Name))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s — расписание на %s (%s)*\n\n", group.Name, dayWord, timetable.FormatWireDate(date)))
	writeLessonList(&b, lessons)
	return c.Send(b.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *commandHandlers) handleWeek(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/week").WithField("sender_id", c.Sender().ID)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.targetGroup(ctx, c, c.Args())
	if err != nil || group == nil {
		return err
	}

	from := timetable.DateOf(time.Now())
	to := from.AddDate(0, 0, 6)
	lessons, err := h.queryService.TimetableForPeriod(ctx, group.ExternalID, from, to)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load week schedule")
		return c.Send("Не удалось получить расписание. Пожалуйста, попробуйте позже.")
	}
	if len(lessons) == 0 {
		return c.Send(fmt.Sprintf("На ближайшую неделю у группы %s занятий нет.", group.Name))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s — расписание на неделю*\n", group.Name))
	var currentDate time.Time
	for _, l := range lessons {
		if !l.Date.Equal(currentDate) {
			currentDate = l.Date
			b.WriteString(fmt.Sprintf("\n📅 *%s*\n", timetable.FormatWireDate(currentDate)))
		}
		writeLessonLine(&b, l)
	}
	return c.Send(b.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *commandHandlers) handleTeacher(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/teacher").WithField("sender_id", c.Sender().ID)
	query := strings.Join(c.Args(), " ")

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	lessons, err := h.queryService.TeacherLessons(ctx, query)
	if err == app.ErrSearchQueryTooShort {
		return c.Send("Укажите фамилию преподавателя (не короче трёх букв): `/teacher Иванова`",
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to search lessons by teacher")
		return c.Send("Не удалось выполнить поиск. Пожалуйста, попробуйте позже.")
	}
	if len(lessons) == 0 {
		return c.Send(fmt.Sprintf("Занятий преподавателя «%s» в ближайшие дни не найдено.", query))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Занятия преподавателя «%s»*\n", query))
	writeCrossGroupList(&b, lessons)
	return c.Send(b.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *commandHandlers) handleRoom(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/room").WithField("sender_id", c.Sender().ID)
	query := strings.Join(c.Args(), " ")

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	lessons, err := h.queryService.RoomLessons(ctx, query)
	if err == app.ErrSearchQueryTooShort {
		return c.Send("Укажите аудиторию (не короче трёх символов): `/room Э-406`",
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to search lessons by room")
		return c.Send("Не удалось выполнить поиск. Пожалуйста, попробуйте позже.")
	}
	if len(lessons) == 0 {
		return c.Send(fmt.Sprintf("Занятий в аудитории «%s» в ближайшие дни не найдено.", query))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Занятия в аудитории «%s»*\n", query))
	writeCrossGroupList(&b, lessons)
	return c.Send(b.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

const notifyUsage = "Формат: `/notify <группа> on|off` или `/notify <группа> <general|daily|gap> <on|off|минуты>`"

var categoryWords = map[app.NotifyCategory]string{
	app.NotifyGeneral: "обо всех парах",
	app.NotifyDaily:   "о первой паре дня",
	app.NotifyGap:     "о парах после перерыва",
}

func (h *commandHandlers) handleNotify(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/notify").WithField("sender_id", c.Sender().ID)
	args := c.Args()
	if len(args) < 2 {
		return c.Send(notifyUsage, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.resolveGroup(ctx, c, args[0])
	if err != nil || group == nil {
		return err
	}

	// Two-argument form toggles the subscription's master switch.
	category := app.NotifyGeneral
	value := args[1]
	if len(args) >= 3 {
		category = app.NotifyCategory(strings.ToLower(args[1]))
		value = args[2]
		if _, ok := categoryWords[category]; !ok {
			return c.Send(notifyUsage, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
	}

	switch {
	case value == "on" || value == "off":
		err = h.subService.SetCategoryEnabled(ctx, c.Sender().ID, group.ExternalID, category, value == "on")
	default:
		minutes, convErr := strconv.Atoi(value)
		if convErr != nil {
			return c.Send(notifyUsage, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		err = h.subService.SetCategoryLead(ctx, c.Sender().ID, group.ExternalID, category, minutes)
		if err == app.ErrBadLeadMinutes {
			return c.Send("Время напоминания должно быть от 1 до 720 минут.")
		}
		if err == nil {
			return c.Send(fmt.Sprintf("Напоминания %s (%s) теперь приходят за %d мин. до начала.",
				categoryWords[category], group.Name, minutes))
		}
	}

	if err == idb.ErrSubscriptionNotFound {
		return c.Send(fmt.Sprintf("Вы не подписаны на группу %s.", group.Name))
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to change notification settings")
		return c.Send("Не удалось изменить настройку. Пожалуйста, попробуйте позже.")
	}
	if value == "on" {
		return c.Send(fmt.Sprintf("Уведомления %s (%s) включены.", categoryWords[category], group.Name))
	}
	return c.Send(fmt.Sprintf("Уведомления %s (%s) выключены.", categoryWords[category], group.Name))
}

func (h *commandHandlers) handleWatchSubject(c telebot.Context) error {
	return h.handleWatch(c, "/watch_subject", "предмету", h.subService.AddSubjectFilter)
}

func (h *commandHandlers) handleWatchTeacher(c telebot.Context) error {
	return h.handleWatch(c, "/watch_teacher", "преподавателю", h.subService.AddTeacherFilter)
}

func (h *commandHandlers) handleWatch(
	c telebot.Context,
	command, what string,
	add func(ctx context.Context, telegramID, groupID int64, pattern string, leadMinutes int) error,
) error {
	logCtx := h.logger.WithField("command", command).WithField("sender_id", c.Sender().ID)
	args := c.Args()
	if len(args) < 2 {
		return c.Send(fmt.Sprintf("Формат: `%s <группа> <шаблон> [минуты]`", command),
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	// A trailing number is the lead time, the rest is the pattern.
	patternArgs := args[1:]
	leadMinutes := 0
	if n, err := strconv.Atoi(patternArgs[len(patternArgs)-1]); err == nil && len(patternArgs) > 1 {
		leadMinutes = n
		patternArgs = patternArgs[:len(patternArgs)-1]
	}
	pattern := strings.Join(patternArgs, " ")

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.resolveGroup(ctx, c, args[0])
	if err != nil || group == nil {
		return err
	}

	err = add(ctx, c.Sender().ID, group.ExternalID, pattern, leadMinutes)
	switch {
	case err == app.ErrPatternTooShort:
		return c.Send("Шаблон должен быть не короче трёх символов.")
	case err == idb.ErrSubscriptionNotFound:
		return c.Send(fmt.Sprintf("Сначала подпишитесь на группу: `/subscribe %s`", group.Name),
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	case err != nil:
		logCtx.WithError(err).Error("Failed to add filter")
		return c.Send("Не удалось добавить напоминание. Пожалуйста, попробуйте позже.")
	}
	return c.Send(fmt.Sprintf("Готово! Напоминание по %s «%s» для группы %s добавлено.", what, pattern, group.Name))
}

func (h *commandHandlers) handlePeriod(c telebot.Context) error {
	logCtx := h.logger.WithField("command", "/period").WithField("sender_id", c.Sender().ID)
	args := c.Args()
	if len(args) < 2 {
		return c.Send("Формат: `/period <группа> <14|30|90>`", &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	days, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Send("Период должен быть числом: 14, 30 или 90 дней.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	group, err := h.resolveGroup(ctx, c, args[0])
	if err != nil || group == nil {
		return err
	}

	err = h.subService.SetLookaheadDays(ctx, group.ExternalID, days)
	if err == app.ErrBadLookaheadPeriod {
		return c.Send("Допустимые периоды: 14, 30 или 90 дней.")
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to set look-ahead period")
		return c.Send("Не удалось изменить период. Пожалуйста, попробуйте позже.")
	}
	return c.Send(fmt.Sprintf("Расписание группы %s теперь загружается на %d дней вперёд.", group.Name, days))
}

// resolveGroup matches the query against the catalog and reports no-match
// and ambiguity straight to the chat. A nil group with a nil error means the
// reply has already been sent.
func (h *commandHandlers) resolveGroup(ctx context.Context, c telebot.Context, query string) (*timetable.Group, error) {
	group, matches, err := h.subService.ResolveGroup(ctx, query)
	switch {
	case err == app.ErrGroupQueryNoMatch:
		return nil, c.Send(fmt.Sprintf("Группа «%s» не найдена. Проверьте название.", query))
	case err == app.ErrGroupQueryAmbiguous:
		var b strings.Builder
		b.WriteString(fmt.Sprintf("По запросу «%s» найдено несколько групп:\n", query))
		for i, g := range matches {
			if i == 10 {
				b.WriteString("…\n")
				break
			}
			b.WriteString(fmt.Sprintf("• %s\n", g.Name))
		}
		b.WriteString("Уточните запрос.")
		return nil, c.Send(b.String())
	case err != nil:
		h.logger.WithError(err).Error("Failed to resolve group query")
		return nil, c.Send("Не удалось найти группу. Пожалуйста, попробуйте позже.")
	}
	return group, nil
}

// targetGroup picks the group for schedule commands: the explicit argument
// when given, otherwise the sender's sole subscription.
func (h *commandHandlers) targetGroup(ctx context.Context, c telebot.Context, args []string) (*timetable.Group, error) {
	if len(args) > 0 {
		return h.resolveGroup(ctx, c, args[0])
	}

	subs, err := h.subService.ListForUser(ctx, c.Sender().ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list subscriptions for implicit group")
		return nil, c.Send("Не удалось определить группу. Пожалуйста, попробуйте позже.")
	}
	switch len(subs) {
	case 0:
		return nil, c.Send("Укажите группу или подпишитесь: `/subscribe БИПО22`",
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	case 1:
		return &timetable.Group{Name: subs[0].GroupName, ExternalID: subs[0].GroupID}, nil
	default:
		return nil, c.Send("У вас несколько подписок, укажите группу явно: `/today БИПО22`",
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}

func writeLessonList(b *strings.Builder, lessons []timetable.Lesson) {
	for _, l := range lessons {
		writeLessonLine(b, l)
	}
}

func writeLessonLine(b *strings.Builder, l timetable.Lesson) {
	b.WriteString(fmt.Sprintf("%d. %s — %s  %s", l.Number, l.TimeStart, l.TimeEnd, l.Subject))
	if l.Kind != "" {
		b.WriteString(fmt.Sprintf(" (%s)", l.Kind))
	}
	if l.Audience != "" {
		b.WriteString(fmt.Sprintf(", ауд. %s", l.Audience))
	}
	b.WriteString("\n")
}

func writeCrossGroupList(b *strings.Builder, lessons []timetable.LessonWithGroup) {
	var currentDate time.Time
	for i, l := range lessons {
		if i == 30 {
			b.WriteString("…\n")
			break
		}
		if !l.Date.Equal(currentDate) {
			currentDate = l.Date
			b.WriteString(fmt.Sprintf("\n📅 *%s*\n", timetable.FormatWireDate(currentDate)))
		}
		b.WriteString(fmt.Sprintf("%s — %s  %s (%s)", l.TimeStart, l.TimeEnd, l.Subject, l.GroupName))
		if l.Audience != "" {
			b.WriteString(fmt.Sprintf(", ауд. %s", l.Audience))
		}
		b.WriteString("\n")
	}
}
