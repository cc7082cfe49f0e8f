package database

import (
	"database/sql"
	"fmt"
)

// migrations are idempotent and run on every startup, in order.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS groups (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		external_id BIGINT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS lessons (
		id BIGSERIAL PRIMARY KEY,
		group_id BIGINT NOT NULL REFERENCES groups (external_id) ON DELETE CASCADE,
		lesson_date DATE NOT NULL,
		number INT NOT NULL,
		time_start TEXT NOT NULL,
		time_end TEXT NOT NULL,
		subject TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		audience TEXT NOT NULL DEFAULT '',
		teacher TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (group_id, lesson_date, number)
	)`,
	`CREATE INDEX IF NOT EXISTS lessons_group_date_idx ON lessons (group_id, lesson_date)`,

	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		group_id BIGINT NOT NULL REFERENCES groups (external_id) ON DELETE CASCADE,
		notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, group_id)
	)`,

	`CREATE TABLE IF NOT EXISTS general_settings (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL UNIQUE REFERENCES subscriptions (id) ON DELETE CASCADE,
		lead_minutes INT NOT NULL DEFAULT 30
	)`,

	`CREATE TABLE IF NOT EXISTS daily_settings (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL UNIQUE REFERENCES subscriptions (id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		lead_minutes INT NOT NULL DEFAULT 60
	)`,

	`CREATE TABLE IF NOT EXISTS gap_settings (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL UNIQUE REFERENCES subscriptions (id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		lead_minutes INT NOT NULL DEFAULT 30
	)`,

	`CREATE TABLE IF NOT EXISTS subject_filters (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL REFERENCES subscriptions (id) ON DELETE CASCADE,
		pattern TEXT NOT NULL,
		lead_minutes INT NOT NULL DEFAULT 30
	)`,

	`CREATE TABLE IF NOT EXISTS teacher_filters (
		id BIGSERIAL PRIMARY KEY,
		subscription_id BIGINT NOT NULL REFERENCES subscriptions (id) ON DELETE CASCADE,
		pattern TEXT NOT NULL,
		lead_minutes INT NOT NULL DEFAULT 30
	)`,

	`CREATE TABLE IF NOT EXISTS update_ledger (
		id BIGSERIAL PRIMARY KEY,
		entity_kind TEXT NOT NULL,
		entity_id BIGINT NOT NULL DEFAULT 0,
		last_update TIMESTAMPTZ,
		next_update TIMESTAMPTZ,
		status TEXT NOT NULL,
		UNIQUE (entity_kind, entity_id)
	)`,

	`CREATE TABLE IF NOT EXISTS update_periods (
		id BIGSERIAL PRIMARY KEY,
		group_id BIGINT NOT NULL UNIQUE REFERENCES groups (external_id) ON DELETE CASCADE,
		days INT NOT NULL DEFAULT 30
	)`,
}

// RunMigrations creates the schema. Safe to call on every startup.
func RunMigrations(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
