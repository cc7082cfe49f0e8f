package subscription

// PatternLead is one subject or teacher filter: a case-insensitive
// substring pattern with its own lead time.
type PatternLead struct {
	ID          int64
	Pattern     string
	LeadMinutes int
}

// Target is the full notification-preference snapshot of one subscription,
// as consumed by the notification selector. One row per (user, group) pair.
type Target struct {
	TelegramID int64
	GroupID    int64
	GroupName  string

	GeneralEnabled bool // subscription master switch
	GeneralLead    int

	DailyEnabled bool
	DailyLead    int

	GapEnabled bool
	GapLead    int

	Subjects []PatternLead
	Teachers []PatternLead
}
