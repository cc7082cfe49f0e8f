package subscription

import "time"

// Subscription ties a user to a group. All notification preferences hang
// off this row and are destroyed with it. NotificationsEnabled is the
// master switch for the general category only; daily, gap and the pattern
// filters carry their own flags.
type Subscription struct {
	ID                   int64
	UserID               int64
	GroupID              int64 // external group key
	NotificationsEnabled bool
	CreatedAt            time.Time
}

// UserSubscription is a subscription row joined with the group's display
// name, for listing a user's subscriptions.
type UserSubscription struct {
	GroupID              int64
	GroupName            string
	NotificationsEnabled bool
}

// Default lead times, in minutes, applied when a subscription is created.
const (
	DefaultGeneralLead = 30
	DefaultDailyLead   = 60
	DefaultGapLead     = 30
	DefaultFilterLead  = 30
)
