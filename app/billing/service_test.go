package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/notion-cal/app/database"
)

type mockPlanRepo struct {
	plans map[string]database.OwnerPlan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[string]database.OwnerPlan)}
}

func (m *mockPlanRepo) GetPlan(ownerKey string) (*database.OwnerPlan, error) {
	plan, ok := m.plans[ownerKey]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (m *mockPlanRepo) UpsertPlan(plan *database.OwnerPlan) error {
	m.plans[plan.OwnerKey] = *plan
	return nil
}

func (m *mockPlanRepo) GetPlanBySubscription(subscriptionID string) (*database.OwnerPlan, error) {
	for _, plan := range m.plans {
		if plan.PayPalSubscriptionID == subscriptionID {
			return &plan, nil
		}
	}
	return nil, nil
}

func (m *mockPlanRepo) ListExpiredPlans(now time.Time) ([]database.OwnerPlan, error) {
	var out []database.OwnerPlan
	for _, plan := range m.plans {
		if plan.Tier == database.TierPremium && plan.PeriodEndsAt != nil && plan.PeriodEndsAt.Before(now) {
			out = append(out, plan)
		}
	}
	return out, nil
}

func (m *mockPlanRepo) ListPayPalPlans() ([]database.OwnerPlan, error) {
	var out []database.OwnerPlan
	for _, plan := range m.plans {
		if plan.PayPalSubscriptionID != "" {
			out = append(out, plan)
		}
	}
	return out, nil
}

type mockFeedCounter map[string]int

func (m mockFeedCounter) CountFeedsByOwner(ownerKey string) (int, error) {
	return m[ownerKey], nil
}

func newTestService(repo *mockPlanRepo, feeds mockFeedCounter, now time.Time) *Service {
	s := NewService(repo, feeds, 1, 14)
	s.now = func() time.Time { return now }
	return s
}

func TestSummaryFreePlan(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPlanRepo()

	s := newTestService(repo, mockFeedCounter{"user-1": 0}, now)
	summary, err := s.Summary("user-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Tier != database.TierFree || summary.PremiumActive {
		t.Errorf("Expected free plan, got %+v", summary)
	}
	if summary.MaxFeeds == nil || *summary.MaxFeeds != 1 {
		t.Errorf("Expected max feeds 1, got %v", summary.MaxFeeds)
	}
	if !summary.CanCreateFeed {
		t.Error("Expected owner without feeds to be able to create one")
	}
	if _, ok := repo.plans["user-1"]; !ok {
		t.Error("Expected default plan to be stored")
	}

	s = newTestService(repo, mockFeedCounter{"user-1": 1}, now)
	summary, _ = s.Summary("user-1")
	if summary.CanCreateFeed {
		t.Error("Expected free owner at the limit not to be able to create feeds")
	}
}

func TestSummaryPremiumPlan(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	repo := newMockPlanRepo()
	repo.plans["active"] = database.OwnerPlan{OwnerKey: "active", Tier: database.TierPremium, Source: database.PlanSourceTrial, PeriodEndsAt: &future}
	repo.plans["lapsed"] = database.OwnerPlan{OwnerKey: "lapsed", Tier: database.TierPremium, Source: database.PlanSourceTrial, PeriodEndsAt: &past}
	repo.plans["paypal"] = database.OwnerPlan{OwnerKey: "paypal", Tier: database.TierPremium, Source: database.PlanSourcePayPal}

	s := newTestService(repo, mockFeedCounter{"active": 5, "lapsed": 5, "paypal": 50}, now)

	for _, owner := range []string{"active", "paypal"} {
		summary, err := s.Summary(owner)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !summary.PremiumActive || summary.Tier != database.TierPremium || !summary.CanCreateFeed || summary.MaxFeeds != nil {
			t.Errorf("Expected unlimited premium for %s, got %+v", owner, summary)
		}
	}

	summary, _ := s.Summary("lapsed")
	if summary.PremiumActive || summary.Tier != database.TierFree || summary.CanCreateFeed {
		t.Errorf("Expected lapsed premium to act as free, got %+v", summary)
	}
}

func TestStartTrial(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPlanRepo()
	s := newTestService(repo, mockFeedCounter{}, now)

	plan, err := s.StartTrial("user-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if plan.Tier != database.TierPremium || plan.Source != database.PlanSourceTrial {
		t.Errorf("Unexpected plan: %+v", plan)
	}
	if plan.PeriodEndsAt == nil || !plan.PeriodEndsAt.Equal(now.AddDate(0, 0, 14)) {
		t.Errorf("Expected trial to end after 14 days, got %v", plan.PeriodEndsAt)
	}

	if _, err := s.StartTrial("user-1"); !errors.Is(err, ErrTrialAlreadyUsed) {
		t.Errorf("Expected ErrTrialAlreadyUsed, got: %v", err)
	}
}

func TestActivatePayPal(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	trialEnd := now.Add(time.Hour)
	repo := newMockPlanRepo()
	repo.plans["user-1"] = database.OwnerPlan{OwnerKey: "user-1", Tier: database.TierPremium, Source: database.PlanSourceTrial, PeriodEndsAt: &trialEnd, TrialUsedAt: &now}
	s := newTestService(repo, mockFeedCounter{}, now)

	sub := Subscription{ID: "I-SUB1", Status: "ACTIVE", PlanID: "P-MONTHLY"}
	sub.Subscriber.PayerID = "PAYER1"

	if err := s.ActivatePayPal("user-1", sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	plan := repo.plans["user-1"]
	if plan.Tier != database.TierPremium || plan.Source != database.PlanSourcePayPal || plan.PeriodEndsAt != nil {
		t.Errorf("Unexpected plan: %+v", plan)
	}
	if plan.PayPalSubscriptionID != "I-SUB1" || plan.PayPalPlanID != "P-MONTHLY" || plan.PayPalPayerID != "PAYER1" {
		t.Errorf("Expected subscription details to be stored, got %+v", plan)
	}
	if plan.TrialUsedAt == nil {
		t.Error("Expected trial marker to be kept")
	}
}

func TestSyncSubscription(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newMockPlanRepo()
	repo.plans["user-1"] = database.OwnerPlan{OwnerKey: "user-1", Tier: database.TierPremium, Source: database.PlanSourcePayPal, PayPalSubscriptionID: "I-SUB1", PayPalSubscriptionStatus: "ACTIVE"}
	s := newTestService(repo, mockFeedCounter{}, now)

	if err := s.SyncSubscription("", Subscription{ID: "I-SUB1", Status: "CANCELLED"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if plan := repo.plans["user-1"]; plan.Tier != database.TierFree || plan.PayPalSubscriptionStatus != "CANCELLED" {
		t.Errorf("Expected cancelled subscription to downgrade, got %+v", plan)
	}

	if err := s.SyncSubscription("", Subscription{ID: "I-SUB1", Status: "approval_pending"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if plan := repo.plans["user-1"]; plan.Tier != database.TierPremium {
		t.Errorf("Expected pending approval to keep premium, got %+v", plan)
	}

	if err := s.SyncSubscription("", Subscription{ID: "I-UNKNOWN", Status: "ACTIVE"}); err != nil {
		t.Fatalf("Expected unknown subscription to be ignored, got: %v", err)
	}
	if len(repo.plans) != 1 {
		t.Errorf("Expected no new plans, got %d", len(repo.plans))
	}

	if err := s.SyncSubscription("user-2", Subscription{ID: "I-SUB2", Status: "ACTIVE"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if plan := repo.plans["user-2"]; plan.Tier != database.TierPremium || plan.PayPalSubscriptionID != "I-SUB2" {
		t.Errorf("Expected owner from custom id to be upgraded, got %+v", plan)
	}
}

func TestSetTier(t *testing.T) {
	repo := newMockPlanRepo()
	s := newTestService(repo, mockFeedCounter{}, time.Now())

	plan, err := s.SetTier("user-1", "premium", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if plan.Tier != database.TierPremium || plan.Source != database.PlanSourceAdmin {
		t.Errorf("Unexpected plan: %+v", plan)
	}

	if _, err := s.SetTier("user-1", "gold", nil); err == nil {
		t.Error("Expected error for unknown tier")
	}
}

func TestExpirePlans(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	repo := newMockPlanRepo()
	repo.plans["expired"] = database.OwnerPlan{OwnerKey: "expired", Tier: database.TierPremium, Source: database.PlanSourceTrial, PeriodEndsAt: &past}
	repo.plans["active"] = database.OwnerPlan{OwnerKey: "active", Tier: database.TierPremium, Source: database.PlanSourceTrial, PeriodEndsAt: &future}
	s := newTestService(repo, mockFeedCounter{}, now)

	count, err := s.ExpirePlans()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 expired plan, got %d", count)
	}
	if repo.plans["expired"].Tier != database.TierFree {
		t.Error("Expected expired plan to be downgraded")
	}
	if repo.plans["active"].Tier != database.TierPremium {
		t.Error("Expected active plan to stay premium")
	}
}

func TestSubscriptionActive(t *testing.T) {
	for status, want := range map[string]bool{
		"ACTIVE":           true,
		"active":           true,
		"APPROVAL_PENDING": true,
		"SUSPENDED":        false,
		"CANCELLED":        false,
		"EXPIRED":          false,
		"":                 false,
	} {
		if got := SubscriptionActive(status); got != want {
			t.Errorf("SubscriptionActive(%q) = %v, want %v", status, got, want)
		}
	}
}
