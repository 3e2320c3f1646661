package billing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/notion-cal/app/database"
)

var ErrTrialAlreadyUsed = errors.New("trial_already_used")

type FeedCounter interface {
	CountFeedsByOwner(ownerKey string) (int, error)
}

// Summary is the effective plan of an owner.
type Summary struct {
	OwnerKey      string     `json:"ownerKey"`
	Tier          string     `json:"tier"`
	Source        string     `json:"source"`
	PeriodEndsAt  *time.Time `json:"periodEndsAt"`
	TrialUsedAt   *time.Time `json:"trialUsedAt"`
	FeedCount     int        `json:"feedCount"`
	MaxFeeds      *int       `json:"maxFeeds"` // nil means unlimited
	CanCreateFeed bool       `json:"canCreateFeed"`
	PremiumActive bool       `json:"premiumActive"`
}

type Service struct {
	plans        database.PlanRepositoryInterface
	feeds        FeedCounter
	freeMaxFeeds int
	trialDays    int
	now          func() time.Time
}

func NewService(plans database.PlanRepositoryInterface, feeds FeedCounter, freeMaxFeeds, trialDays int) *Service {
	if freeMaxFeeds <= 0 {
		freeMaxFeeds = 1
	}
	if trialDays <= 0 {
		trialDays = 14
	}

	return &Service{
		plans:        plans,
		feeds:        feeds,
		freeMaxFeeds: freeMaxFeeds,
		trialDays:    trialDays,
		now:          time.Now,
	}
}

func (s *Service) TrialDays() int {
	return s.trialDays
}

func (s *Service) GetOrCreatePlan(ownerKey string) (*database.OwnerPlan, error) {
	plan, err := s.plans.GetPlan(ownerKey)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}

	plan = &database.OwnerPlan{
		OwnerKey: ownerKey,
		Tier:     database.TierFree,
		Source:   database.PlanSourceDefault,
	}
	if err := s.plans.UpsertPlan(plan); err != nil {
		return nil, err
	}

	return plan, nil
}

func (s *Service) Summary(ownerKey string) (*Summary, error) {
	plan, err := s.GetOrCreatePlan(ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	feedCount, err := s.feeds.CountFeedsByOwner(ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to count feeds: %w", err)
	}

	summary := &Summary{
		OwnerKey:      ownerKey,
		Tier:          database.TierFree,
		Source:        plan.Source,
		PeriodEndsAt:  plan.PeriodEndsAt,
		TrialUsedAt:   plan.TrialUsedAt,
		FeedCount:     feedCount,
		PremiumActive: s.premiumActive(plan),
	}

	if summary.PremiumActive {
		summary.Tier = database.TierPremium
		summary.CanCreateFeed = true
	} else {
		maxFeeds := s.freeMaxFeeds
		summary.MaxFeeds = &maxFeeds
		summary.CanCreateFeed = feedCount < maxFeeds
	}

	return summary, nil
}

// StartTrial grants premium for the trial period, once per owner.
func (s *Service) StartTrial(ownerKey string) (*database.OwnerPlan, error) {
	plan, err := s.GetOrCreatePlan(ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan.TrialUsedAt != nil {
		return nil, ErrTrialAlreadyUsed
	}

	now := s.now().UTC()
	periodEndsAt := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)

	plan.Tier = database.TierPremium
	plan.Source = database.PlanSourceTrial
	plan.TrialUsedAt = &now
	plan.PeriodEndsAt = &periodEndsAt

	if err := s.plans.UpsertPlan(plan); err != nil {
		return nil, fmt.Errorf("failed to start trial: %w", err)
	}

	slog.Info("Trial started", "owner", ownerKey, "ends_at", periodEndsAt)

	return plan, nil
}

// ActivatePayPal records an approved subscription and grants premium
// without an end date.
func (s *Service) ActivatePayPal(ownerKey string, sub Subscription) error {
	plan, err := s.GetOrCreatePlan(ownerKey)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	applySubscription(plan, sub, database.TierPremium)

	if err := s.plans.UpsertPlan(plan); err != nil {
		return fmt.Errorf("failed to activate paypal plan: %w", err)
	}

	slog.Info("PayPal subscription activated", "owner", ownerKey, "subscription", sub.ID, "status", sub.Status)

	return nil
}

// SyncSubscription applies a subscription status change. Without an owner
// key the owner is found through the stored subscription id; unknown
// subscriptions are ignored.
func (s *Service) SyncSubscription(ownerKey string, sub Subscription) error {
	var plan *database.OwnerPlan
	var err error

	if ownerKey != "" {
		plan, err = s.GetOrCreatePlan(ownerKey)
	} else {
		plan, err = s.plans.GetPlanBySubscription(sub.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		slog.Debug("Ignoring subscription without owner", "subscription", sub.ID)
		return nil
	}

	tier := database.TierFree
	if SubscriptionActive(sub.Status) {
		tier = database.TierPremium
	}
	applySubscription(plan, sub, tier)

	if err := s.plans.UpsertPlan(plan); err != nil {
		return fmt.Errorf("failed to sync paypal plan: %w", err)
	}

	slog.Info("PayPal subscription synced", "owner", plan.OwnerKey, "subscription", sub.ID, "tier", tier)

	return nil
}

// SetTier is the admin override of an owner's plan.
func (s *Service) SetTier(ownerKey, tier string, periodEndsAt *time.Time) (*database.OwnerPlan, error) {
	tier = strings.ToUpper(strings.TrimSpace(tier))
	if tier != database.TierFree && tier != database.TierPremium {
		return nil, fmt.Errorf("invalid tier %q", tier)
	}

	plan, err := s.GetOrCreatePlan(ownerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	plan.Tier = tier
	plan.Source = database.PlanSourceAdmin
	plan.PeriodEndsAt = periodEndsAt

	if err := s.plans.UpsertPlan(plan); err != nil {
		return nil, fmt.Errorf("failed to set tier: %w", err)
	}

	return plan, nil
}

// ExpirePlans downgrades premium plans whose period has ended.
func (s *Service) ExpirePlans() (int, error) {
	plans, err := s.plans.ListExpiredPlans(s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range plans {
		plan := &plans[i]
		plan.Tier = database.TierFree
		if err := s.plans.UpsertPlan(plan); err != nil {
			return expired, fmt.Errorf("failed to expire plan %s: %w", plan.OwnerKey, err)
		}
		expired++
		slog.Info("Plan expired", "owner", plan.OwnerKey, "source", plan.Source)
	}

	return expired, nil
}

func (s *Service) premiumActive(plan *database.OwnerPlan) bool {
	if plan.Tier != database.TierPremium {
		return false
	}
	if plan.PeriodEndsAt == nil {
		return true
	}
	return plan.PeriodEndsAt.After(s.now())
}

// SubscriptionActive reports whether a PayPal status keeps premium enabled.
func SubscriptionActive(status string) bool {
	switch strings.ToUpper(status) {
	case "ACTIVE", "APPROVAL_PENDING":
		return true
	}
	return false
}

func applySubscription(plan *database.OwnerPlan, sub Subscription, tier string) {
	plan.Tier = tier
	plan.Source = database.PlanSourcePayPal
	plan.PeriodEndsAt = nil
	plan.PayPalSubscriptionID = sub.ID
	plan.PayPalSubscriptionStatus = sub.Status
	plan.PayPalPlanID = sub.PlanID
	plan.PayPalPayerID = sub.Subscriber.PayerID
}
