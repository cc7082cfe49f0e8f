package database

import (
	"context"
	"database/sql"
	"fmt"

	"timetable_notification_bot/internal/domain/subscription"
)

var ErrSubscriptionNotFound = fmt.Errorf("subscription not found")

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) EnsureUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (int64, error) {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name)
               VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
               ON CONFLICT (telegram_id) DO UPDATE SET
                 username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
                 first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
                 last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name)
               RETURNING id`
	var userID int64
	err := r.db.QueryRowContext(ctx, query, telegramID, username, firstName, lastName).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("error upserting user %d: %w", telegramID, err)
	}
	return userID, nil
}

// Subscribe inserts the subscription and its default preference rows in one
// transaction. Returns false without touching anything if the (user, group)
// pair is already subscribed.
func (r *PostgresSubscriptionRepository) Subscribe(ctx context.Context, userID, groupID int64) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for subscribe: %w", err)
	}
	defer txn.Rollback()

	var subID int64
	err = txn.QueryRowContext(ctx, `INSERT INTO subscriptions (user_id, group_id)
               VALUES ($1, $2)
               ON CONFLICT (user_id, group_id) DO NOTHING
               RETURNING id`, userID, groupID).Scan(&subID)
	if err == sql.ErrNoRows {
		return false, nil // already subscribed
	}
	if err != nil {
		return false, fmt.Errorf("error creating subscription: %w", err)
	}

	defaults := []struct {
		query string
		lead  int
	}{
		{`INSERT INTO general_settings (subscription_id, lead_minutes) VALUES ($1, $2)`, subscription.DefaultGeneralLead},
		{`INSERT INTO daily_settings (subscription_id, lead_minutes) VALUES ($1, $2)`, subscription.DefaultDailyLead},
		{`INSERT INTO gap_settings (subscription_id, lead_minutes) VALUES ($1, $2)`, subscription.DefaultGapLead},
	}
	for _, d := range defaults {
		if _, err := txn.ExecContext(ctx, d.query, subID, d.lead); err != nil {
			return false, fmt.Errorf("error creating default settings for subscription %d: %w", subID, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("error committing subscribe: %w", err)
	}
	return true, nil
}

// Unsubscribe deletes the subscription row; the preference rows of all five
// categories go with it via ON DELETE CASCADE.
func (r *PostgresSubscriptionRepository) Unsubscribe(ctx context.Context, telegramID, groupID int64) error {
	query := `DELETE FROM subscriptions
               WHERE group_id = $2
                 AND user_id = (SELECT id FROM users WHERE telegram_id = $1)`
	res, err := r.db.ExecContext(ctx, query, telegramID, groupID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking unsubscribe result: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *PostgresSubscriptionRepository) ListForUser(ctx context.Context, telegramID int64) ([]subscription.UserSubscription, error) {
	query := `SELECT g.external_id, g.name, s.notifications_enabled
               FROM subscriptions s
               JOIN users u ON s.user_id = u.id
               JOIN groups g ON s.group_id = g.external_id
               WHERE u.telegram_id = $1
               ORDER BY g.name`
	rows, err := r.db.QueryContext(ctx, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriptions for user %d: %w", telegramID, err)
	}
	defer rows.Close()

	subs := make([]subscription.UserSubscription, 0)
	for rows.Next() {
		var s subscription.UserSubscription
		if err := rows.Scan(&s.GroupID, &s.GroupName, &s.NotificationsEnabled); err != nil {
			return nil, fmt.Errorf("error scanning subscription row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}
	return subs, nil
}

func (r *PostgresSubscriptionRepository) ListGroupSubscribers(ctx context.Context, groupID int64) ([]int64, error) {
	query := `SELECT u.telegram_id
               FROM subscriptions s
               JOIN users u ON s.user_id = u.id
               WHERE s.group_id = $1`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers for group %d: %w", groupID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning subscriber row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}
	return ids, nil
}

// subIDQuery resolves a (telegram user, group) pair to its subscription ID.
const subIDQuery = `SELECT s.id FROM subscriptions s
               JOIN users u ON s.user_id = u.id
               WHERE u.telegram_id = $1 AND s.group_id = $2`

func (r *PostgresSubscriptionRepository) subscriptionID(ctx context.Context, telegramID, groupID int64) (int64, error) {
	var subID int64
	err := r.db.QueryRowContext(ctx, subIDQuery, telegramID, groupID).Scan(&subID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrSubscriptionNotFound
		}
		return 0, fmt.Errorf("error resolving subscription: %w", err)
	}
	return subID, nil
}

func (r *PostgresSubscriptionRepository) SetNotificationsEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error {
	query := `UPDATE subscriptions SET notifications_enabled = $1 WHERE id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, enabled, telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) SetGeneralLead(ctx context.Context, telegramID, groupID int64, minutes int) error {
	query := `UPDATE general_settings SET lead_minutes = $1 WHERE subscription_id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, minutes, telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) SetDailyEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error {
	query := `UPDATE daily_settings SET enabled = $1 WHERE subscription_id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, enabled, telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) SetDailyLead(ctx context.Context, telegramID, groupID int64, minutes int) error {
	query := `UPDATE daily_settings SET lead_minutes = $1 WHERE subscription_id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, minutes, telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) SetGapEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error {
	query := `UPDATE gap_settings SET enabled = $1 WHERE subscription_id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, enabled, telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) SetGapLead(ctx context.Context, telegramID, groupID int64, minutes int) error {
	query := `UPDATE gap_settings SET lead_minutes = $1 WHERE subscription_id IN (` + subIDQueryArgs23 + `)`
	return r.execForSubscription(ctx, query, minutes, telegramID, groupID)
}

// subIDQueryArgs23 is subIDQuery shifted to placeholders $2/$3 for use as a
// subquery after a SET $1.
const subIDQueryArgs23 = `SELECT s.id FROM subscriptions s
               JOIN users u ON s.user_id = u.id
               WHERE u.telegram_id = $2 AND s.group_id = $3`

func (r *PostgresSubscriptionRepository) execForSubscription(ctx context.Context, query string, value interface{}, telegramID, groupID int64) error {
	res, err := r.db.ExecContext(ctx, query, value, telegramID, groupID)
	if err != nil {
		return fmt.Errorf("error updating subscription settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking settings update result: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *PostgresSubscriptionRepository) AddSubjectFilter(ctx context.Context, telegramID, groupID int64, pattern string, minutes int) error {
	return r.addFilter(ctx, "subject_filters", telegramID, groupID, pattern, minutes)
}

func (r *PostgresSubscriptionRepository) AddTeacherFilter(ctx context.Context, telegramID, groupID int64, pattern string, minutes int) error {
	return r.addFilter(ctx, "teacher_filters", telegramID, groupID, pattern, minutes)
}

func (r *PostgresSubscriptionRepository) addFilter(ctx context.Context, table string, telegramID, groupID int64, pattern string, minutes int) error {
	subID, err := r.subscriptionID(ctx, telegramID, groupID)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (subscription_id, pattern, lead_minutes) VALUES ($1, $2, $3)`, table)
	if _, err := r.db.ExecContext(ctx, query, subID, pattern, minutes); err != nil {
		return fmt.Errorf("error adding %s row: %w", table, err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) ListSubjectFilters(ctx context.Context, telegramID, groupID int64) ([]subscription.PatternLead, error) {
	return r.listFilters(ctx, "subject_filters", telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) ListTeacherFilters(ctx context.Context, telegramID, groupID int64) ([]subscription.PatternLead, error) {
	return r.listFilters(ctx, "teacher_filters", telegramID, groupID)
}

func (r *PostgresSubscriptionRepository) listFilters(ctx context.Context, table string, telegramID, groupID int64) ([]subscription.PatternLead, error) {
	subID, err := r.subscriptionID(ctx, telegramID, groupID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, pattern, lead_minutes FROM %s WHERE subscription_id = $1 ORDER BY id`, table)
	rows, err := r.db.QueryContext(ctx, query, subID)
	if err != nil {
		return nil, fmt.Errorf("error listing %s rows: %w", table, err)
	}
	defer rows.Close()

	filters := make([]subscription.PatternLead, 0)
	for rows.Next() {
		var f subscription.PatternLead
		if err := rows.Scan(&f.ID, &f.Pattern, &f.LeadMinutes); err != nil {
			return nil, fmt.Errorf("error scanning %s row: %w", table, err)
		}
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return filters, nil
}

// ListTargets assembles the full preference snapshot of every subscription:
// one main query over the one-row-per-category settings tables, then the
// unbounded filter lists attached in a second pass.
func (r *PostgresSubscriptionRepository) ListTargets(ctx context.Context) ([]subscription.Target, error) {
	query := `SELECT s.id, u.telegram_id, s.group_id, g.name, s.notifications_enabled,
                      COALESCE(gs.lead_minutes, $1),
                      COALESCE(ds.enabled, FALSE), COALESCE(ds.lead_minutes, $2),
                      COALESCE(ps.enabled, FALSE), COALESCE(ps.lead_minutes, $3)
               FROM subscriptions s
               JOIN users u ON s.user_id = u.id
               JOIN groups g ON s.group_id = g.external_id
               LEFT JOIN general_settings gs ON gs.subscription_id = s.id
               LEFT JOIN daily_settings ds ON ds.subscription_id = s.id
               LEFT JOIN gap_settings ps ON ps.subscription_id = s.id
               ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, query,
		subscription.DefaultGeneralLead, subscription.DefaultDailyLead, subscription.DefaultGapLead)
	if err != nil {
		return nil, fmt.Errorf("error querying notification targets: %w", err)
	}
	defer rows.Close()

	targets := make([]subscription.Target, 0)
	index := make(map[int64]int) // subscription ID -> targets index
	for rows.Next() {
		var (
			t     subscription.Target
			subID int64
		)
		if err := rows.Scan(&subID, &t.TelegramID, &t.GroupID, &t.GroupName, &t.GeneralEnabled,
			&t.GeneralLead, &t.DailyEnabled, &t.DailyLead, &t.GapEnabled, &t.GapLead); err != nil {
			return nil, fmt.Errorf("error scanning target row: %w", err)
		}
		index[subID] = len(targets)
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target rows: %w", err)
	}
	if len(targets) == 0 {
		return targets, nil
	}

	for _, f := range []struct {
		table  string
		attach func(i int, p subscription.PatternLead)
	}{
		{"subject_filters", func(i int, p subscription.PatternLead) { targets[i].Subjects = append(targets[i].Subjects, p) }},
		{"teacher_filters", func(i int, p subscription.PatternLead) { targets[i].Teachers = append(targets[i].Teachers, p) }},
	} {
		q := fmt.Sprintf(`SELECT subscription_id, id, pattern, lead_minutes FROM %s ORDER BY id`, f.table)
		frows, err := r.db.QueryContext(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("error querying %s: %w", f.table, err)
		}
		for frows.Next() {
			var (
				subID int64
				p     subscription.PatternLead
			)
			if err := frows.Scan(&subID, &p.ID, &p.Pattern, &p.LeadMinutes); err != nil {
				frows.Close()
				return nil, fmt.Errorf("error scanning %s row: %w", f.table, err)
			}
			if i, ok := index[subID]; ok {
				f.attach(i, p)
			}
		}
		if err := frows.Err(); err != nil {
			frows.Close()
			return nil, fmt.Errorf("error iterating %s rows: %w", f.table, err)
		}
		frows.Close()
	}

	return targets, nil
}
