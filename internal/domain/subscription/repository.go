package subscription

import "context"

// Repository is the subscription registry: users, (user, group)
// subscriptions and the five notification-preference categories. Reads are
// treated as a consistent snapshot at call time; no cross-call isolation is
// promised.
type Repository interface {
	// EnsureUser upserts a user by Telegram ID, refreshing non-empty
	// display attributes, and returns the internal user ID.
	EnsureUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (int64, error)

	// Subscribe creates the subscription with default preference rows for
	// every category. Returns false if it already existed.
	Subscribe(ctx context.Context, userID, groupID int64) (bool, error)

	// Unsubscribe destroys the subscription and, cascading, all of its
	// preference rows.
	Unsubscribe(ctx context.Context, telegramID, groupID int64) error

	ListForUser(ctx context.Context, telegramID int64) ([]UserSubscription, error)
	ListGroupSubscribers(ctx context.Context, groupID int64) ([]int64, error)

	SetNotificationsEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error
	SetGeneralLead(ctx context.Context, telegramID, groupID int64, minutes int) error
	SetDailyEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error
	SetDailyLead(ctx context.Context, telegramID, groupID int64, minutes int) error
	SetGapEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error
	SetGapLead(ctx context.Context, telegramID, groupID int64, minutes int) error

	AddSubjectFilter(ctx context.Context, telegramID, groupID int64, pattern string, minutes int) error
	AddTeacherFilter(ctx context.Context, telegramID, groupID int64, pattern string, minutes int) error
	ListSubjectFilters(ctx context.Context, telegramID, groupID int64) ([]PatternLead, error)
	ListTeacherFilters(ctx context.Context, telegramID, groupID int64) ([]PatternLead, error)

	// ListTargets returns the preference snapshot of every subscription,
	// for one notification-check cycle.
	ListTargets(ctx context.Context) ([]Target, error)
}
