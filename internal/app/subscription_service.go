package app

import (
	"context"
	"fmt"
	"strings"

	"timetable_notification_bot/internal/domain/subscription"
	"timetable_notification_bot/internal/domain/timetable"
)

var (
	ErrGroupQueryAmbiguous = fmt.Errorf("group query matched more than one group")
	ErrGroupQueryNoMatch   = fmt.Errorf("group query matched no group")
	ErrBadLookaheadPeriod  = fmt.Errorf("look-ahead period must be 14, 30 or 90 days")
	ErrPatternTooShort     = fmt.Errorf("filter pattern must be at least 3 characters")
	ErrUnknownCategory     = fmt.Errorf("unknown notification category")
	ErrBadLeadMinutes      = fmt.Errorf("lead minutes must be between 1 and 720")
)

// NotifyCategory names the toggleable notification categories in /notify.
type NotifyCategory string

const (
	NotifyGeneral NotifyCategory = "general"
	NotifyDaily   NotifyCategory = "daily"
	NotifyGap     NotifyCategory = "gap"
)

// allowed look-ahead windows for /period
var allowedLookaheadDays = map[int]bool{14: true, 30: true, 90: true}

// SubscriptionService is the command-facing layer over the subscription
// registry: it resolves free-text group queries and validates user input
// before touching storage.
type SubscriptionService interface {
	// ResolveGroup matches a free-text query against the group catalog.
	// Returns ErrGroupQueryNoMatch or ErrGroupQueryAmbiguous (with the
	// matches) when the query does not pin down exactly one group.
	ResolveGroup(ctx context.Context, query string) (*timetable.Group, []*timetable.Group, error)

	// Subscribe registers the sender and subscribes them to the group.
	// Returns false if the subscription already existed.
	Subscribe(ctx context.Context, telegramID int64, username, firstName, lastName string, groupID int64) (bool, error)
	Unsubscribe(ctx context.Context, telegramID, groupID int64) error
	ListForUser(ctx context.Context, telegramID int64) ([]subscription.UserSubscription, error)

	// GroupSubscribers lists the Telegram IDs subscribed to a group.
	GroupSubscribers(ctx context.Context, groupID int64) ([]int64, error)

	SetNotificationsEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error

	// SetCategoryEnabled toggles one category; the general category's flag
	// is the subscription master switch.
	SetCategoryEnabled(ctx context.Context, telegramID, groupID int64, category NotifyCategory, enabled bool) error

	// SetCategoryLead sets one category's lead time in minutes.
	SetCategoryLead(ctx context.Context, telegramID, groupID int64, category NotifyCategory, minutes int) error

	AddSubjectFilter(ctx context.Context, telegramID, groupID int64, pattern string, leadMinutes int) error
	AddTeacherFilter(ctx context.Context, telegramID, groupID int64, pattern string, leadMinutes int) error

	// SetLookaheadDays sets the group's timetable look-ahead window.
	SetLookaheadDays(ctx context.Context, groupID int64, days int) error
}

type SubscriptionServiceImpl struct {
	subRepo   subscription.Repository
	groupRepo timetable.GroupRepository
}

func NewSubscriptionServiceImpl(sr subscription.Repository, gr timetable.GroupRepository) *SubscriptionServiceImpl {
	return &SubscriptionServiceImpl{subRepo: sr, groupRepo: gr}
}

func (s *SubscriptionServiceImpl) ResolveGroup(ctx context.Context, query string) (*timetable.Group, []*timetable.Group, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list groups for query: %w", err)
	}

	matches := timetable.MatchGroups(groups, query)
	switch len(matches) {
	case 0:
		return nil, nil, ErrGroupQueryNoMatch
	case 1:
		return matches[0], nil, nil
	default:
		return nil, matches, ErrGroupQueryAmbiguous
	}
}

func (s *SubscriptionServiceImpl) Subscribe(ctx context.Context, telegramID int64, username, firstName, lastName string, groupID int64) (bool, error) {
	userID, err := s.subRepo.EnsureUser(ctx, telegramID, username, firstName, lastName)
	if err != nil {
		return false, err
	}
	return s.subRepo.Subscribe(ctx, userID, groupID)
}

func (s *SubscriptionServiceImpl) Unsubscribe(ctx context.Context, telegramID, groupID int64) error {
	return s.subRepo.Unsubscribe(ctx, telegramID, groupID)
}

func (s *SubscriptionServiceImpl) ListForUser(ctx context.Context, telegramID int64) ([]subscription.UserSubscription, error) {
	return s.subRepo.ListForUser(ctx, telegramID)
}

func (s *SubscriptionServiceImpl) GroupSubscribers(ctx context.Context, groupID int64) ([]int64, error) {
	return s.subRepo.ListGroupSubscribers(ctx, groupID)
}

func (s *SubscriptionServiceImpl) SetNotificationsEnabled(ctx context.Context, telegramID, groupID int64, enabled bool) error {
	return s.subRepo.SetNotificationsEnabled(ctx, telegramID, groupID, enabled)
}

func (s *SubscriptionServiceImpl) SetCategoryEnabled(ctx context.Context, telegramID, groupID int64, category NotifyCategory, enabled bool) error {
	switch category {
	case NotifyGeneral:
		return s.subRepo.SetNotificationsEnabled(ctx, telegramID, groupID, enabled)
	case NotifyDaily:
		return s.subRepo.SetDailyEnabled(ctx, telegramID, groupID, enabled)
	case NotifyGap:
		return s.subRepo.SetGapEnabled(ctx, telegramID, groupID, enabled)
	default:
		return ErrUnknownCategory
	}
}

func (s *SubscriptionServiceImpl) SetCategoryLead(ctx context.Context, telegramID, groupID int64, category NotifyCategory, minutes int) error {
	if minutes < 1 || minutes > 720 {
		return ErrBadLeadMinutes
	}
	switch category {
	case NotifyGeneral:
		return s.subRepo.SetGeneralLead(ctx, telegramID, groupID, minutes)
	case NotifyDaily:
		return s.subRepo.SetDailyLead(ctx, telegramID, groupID, minutes)
	case NotifyGap:
		return s.subRepo.SetGapLead(ctx, telegramID, groupID, minutes)
	default:
		return ErrUnknownCategory
	}
}

func (s *SubscriptionServiceImpl) AddSubjectFilter(ctx context.Context, telegramID, groupID int64, pattern string, leadMinutes int) error {
	pattern, err := normalizePattern(pattern)
	if err != nil {
		return err
	}
	if leadMinutes <= 0 {
		leadMinutes = subscription.DefaultFilterLead
	}
	return s.subRepo.AddSubjectFilter(ctx, telegramID, groupID, pattern, leadMinutes)
}

func (s *SubscriptionServiceImpl) AddTeacherFilter(ctx context.Context, telegramID, groupID int64, pattern string, leadMinutes int) error {
	pattern, err := normalizePattern(pattern)
	if err != nil {
		return err
	}
	if leadMinutes <= 0 {
		leadMinutes = subscription.DefaultFilterLead
	}
	return s.subRepo.AddTeacherFilter(ctx, telegramID, groupID, pattern, leadMinutes)
}

func (s *SubscriptionServiceImpl) SetLookaheadDays(ctx context.Context, groupID int64, days int) error {
	if !allowedLookaheadDays[days] {
		return ErrBadLookaheadPeriod
	}
	return s.groupRepo.SetUpdatePeriodDays(ctx, groupID, days)
}

func normalizePattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if len([]rune(pattern)) < 3 {
		return "", ErrPatternTooShort
	}
	return pattern, nil
}
