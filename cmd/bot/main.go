package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timetable_notification_bot/internal/app"
	"timetable_notification_bot/internal/domain/notification"
	"timetable_notification_bot/internal/infra/config"
	idb "timetable_notification_bot/internal/infra/database"
	"timetable_notification_bot/internal/infra/logger"
	"timetable_notification_bot/internal/infra/metrics"
	"timetable_notification_bot/internal/infra/scheduler"
	"timetable_notification_bot/internal/infra/source"
	"timetable_notification_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Timetable Notification Bot starting...")

	mainLogger := log.New(os.Stdout, "MAIN: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	appLogger := logger.Get()

	mainLogger.Printf("INFO: Configuration loaded. LogLevel: %s, Environment: %s, Admin ID: %d",
		cfg.LogLevel, cfg.Environment, cfg.AdminTelegramID)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Println("INFO: Database connection established successfully.")

	if err := idb.RunMigrations(db); err != nil {
		mainLogger.Fatalf("FATAL: Could not run database migrations: %v", err)
	}
	mainLogger.Println("INFO: Database schema is up to date.")

	// Repositories
	groupRepo := idb.NewPostgresGroupRepository(db)
	lessonRepo := idb.NewPostgresLessonRepository(db)
	subRepo := idb.NewPostgresSubscriptionRepository(db)
	updateRepo := idb.NewPostgresUpdateRepository(db)
	mainLogger.Println("INFO: Repositories initialized.")

	// Schedule site client
	siteClient := source.NewClient(cfg.SourceBaseURL, appLogger.WithField("component", "source"))

	// Services
	updateSvcLogger := log.New(os.Stdout, "UPDATE_SVC: ", log.LstdFlags|log.Lshortfile)
	updateService := app.NewUpdateServiceImpl(
		groupRepo, lessonRepo, updateRepo, siteClient, siteClient,
		updateSvcLogger, cfg.GroupFetchDelay, cfg.DefaultLookahead,
	)

	subscriptionService := app.NewSubscriptionServiceImpl(subRepo, groupRepo)
	queryService := app.NewScheduleQueryServiceImpl(lessonRepo)
	mainLogger.Println("INFO: Application services initialized.")

	// Refreshes left in_progress by a crashed run retry on the next sweep.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := updateService.RecoverInterrupted(startupCtx); err != nil {
		mainLogger.Printf("WARN: Could not recover interrupted refreshes: %v", err)
	}
	cancelStartup()

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			log.Printf("ERROR (telebot): %v", err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				log.Printf("ERROR (telebot context): Message: %s, Sender: %d, Chat: %d", c.Text(), c.Sender().ID, c.Chat().ID)
			}
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	notifSvcLogger := log.New(os.Stdout, "NOTIF_SVC: ", log.LstdFlags|log.Lshortfile)
	notificationService := app.NewNotificationServiceImpl(
		subRepo, lessonRepo,
		notification.NewSelector(cfg.NotifyWindow),
		telegram.NewTelebotAdapter(bot),
		notifSvcLogger,
	)

	// Scheduler
	schedulerLogger := log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags|log.Lshortfile)
	refreshScheduler := scheduler.NewRefreshScheduler(
		updateService,
		notificationService,
		schedulerLogger,
		cfg.CronSpecGroupRefresh,
		cfg.CronSpecTimetableRefresh,
		cfg.CronSpecNotifyCheck,
	)
	refreshScheduler.Start()

	// Handlers
	handlerLogger := appLogger.WithField("component", "telegram")
	telegram.RegisterBotCommands(bot, subscriptionService, queryService, handlerLogger)
	telegram.RegisterAdminHandlers(bot, cfg, updateService, subscriptionService, handlerLogger)
	mainLogger.Println("INFO: Command handlers registered.")

	if cfg.MetricsAddr != "" {
		go func() {
			mainLogger.Printf("INFO: Metrics listener starting on %s", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				mainLogger.Printf("ERROR: Metrics listener stopped: %v", err)
			}
		}()
	}

	mainLogger.Println("INFO: Application setup complete. Bot and Scheduler are starting...")

	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Println("INFO: Shutting down application...")
	refreshScheduler.Stop()
	bot.Stop()
	mainLogger.Println("INFO: Application shut down gracefully.")
}
