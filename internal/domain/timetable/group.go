package timetable

// Group is an academic group the schedule site publishes a timetable for.
// ExternalID is the site's own group key (the "vr" form value); lessons and
// subscriptions reference groups by this key, the surrogate ID exists only
// as the table's primary key.
type Group struct {
	ID         int64
	Name       string
	ExternalID int64
}

// CatalogEntry is one row of the group catalog as returned by the schedule
// site.
type CatalogEntry struct {
	Name       string
	ExternalID int64
}
