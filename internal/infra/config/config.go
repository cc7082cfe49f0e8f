package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	MetricsAddr     string // prometheus listener, empty disables it

	SourceBaseURL string // schedule site root

	CronSpecGroupRefresh     string // sweep checking whether the group catalog is due
	CronSpecTimetableRefresh string // sweep checking which group timetables are due
	CronSpecNotifyCheck      string // notification check

	NotifyWindow     time.Duration // due-window tolerance, must be >= the notify check interval
	GroupFetchDelay  time.Duration // pause between consecutive group fetches
	DefaultLookahead int           // timetable look-ahead in days when a group has no setting
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.SourceBaseURL = os.Getenv("SOURCE_BASE_URL")
	if cfg.SourceBaseURL == "" {
		cfg.SourceBaseURL = "https://www.tolgas.ru"
	}

	cfg.CronSpecGroupRefresh = os.Getenv("CRON_SPEC_GROUP_REFRESH")
	if cfg.CronSpecGroupRefresh == "" {
		cfg.CronSpecGroupRefresh = "30 3 * * *" // daily sweep; the ledger enforces the weekly cadence
	}

	cfg.CronSpecTimetableRefresh = os.Getenv("CRON_SPEC_TIMETABLE_REFRESH")
	if cfg.CronSpecTimetableRefresh == "" {
		cfg.CronSpecTimetableRefresh = "0 * * * *" // hourly sweep; the ledger enforces per-group cadence
	}

	cfg.CronSpecNotifyCheck = os.Getenv("CRON_SPEC_NOTIFY_CHECK")
	if cfg.CronSpecNotifyCheck == "" {
		cfg.CronSpecNotifyCheck = "*/2 * * * *"
	}

	cfg.NotifyWindow, err = minutesEnv("NOTIFY_WINDOW_MINUTES", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.GroupFetchDelay, err = secondsEnv("GROUP_FETCH_DELAY_SECONDS", time.Second)
	if err != nil {
		return nil, err
	}

	cfg.DefaultLookahead = 30
	if daysStr := os.Getenv("DEFAULT_LOOKAHEAD_DAYS"); daysStr != "" {
		cfg.DefaultLookahead, err = strconv.Atoi(daysStr)
		if err != nil || cfg.DefaultLookahead <= 0 {
			return nil, fmt.Errorf("invalid DEFAULT_LOOKAHEAD_DAYS: %q", daysStr)
		}
	}

	return cfg, nil
}

func minutesEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func secondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
