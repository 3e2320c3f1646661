package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/notion-cal/app/billing"
	"github.com/lysyi3m/notion-cal/app/database"
)

type mockFeedRepo struct {
	mu      sync.Mutex
	upserts []database.Feed
	err     error
}

func (m *mockFeedRepo) CreateFeed(*database.Feed) error                   { return nil }
func (m *mockFeedRepo) GetFeed(string) (*database.Feed, error) { return nil, nil }
func (m *mockFeedRepo) ListFeeds() ([]database.Feed, error) { return nil, nil }
func (m *mockFeedRepo) ListFeedsByOwner(string) ([]database.Feed, error) { return nil, nil }
func (m *mockFeedRepo) CountFeedsByOwner(string) (int, error) { return 0, nil }
func (m *mockFeedRepo) GetFeedCount() (int, error) { return 0, nil }
func (m *mockFeedRepo) UpdateFeedConfig(string, string, string, string) error { return nil }
func (m *mockFeedRepo) DeleteFeed(string) error                           { return nil }
func (m *mockFeedRepo) DeleteOwnedFeed(string, string) (bool, error) { return false, nil }

func (m *mockFeedRepo) UpsertStaticFeed(id, displayName, accessToken, databaseID, properties string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.upserts = append(m.upserts, database.Feed{
		ID:          id,
		DisplayName: displayName,
		AccessToken: accessToken,
		DatabaseID:  databaseID,
		Properties:  properties,
		Source:      database.FeedSourceStatic,
	})
	return true, nil
}

func (m *mockFeedRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

type mockPlanRepo struct {
	paypalPlans []database.OwnerPlan
	err         error
}

func (m *mockPlanRepo) GetPlan(string) (*database.OwnerPlan, error) { return nil, nil }
func (m *mockPlanRepo) UpsertPlan(*database.OwnerPlan) error                      { return nil }
func (m *mockPlanRepo) GetPlanBySubscription(string) (*database.OwnerPlan, error) { return nil, nil }
func (m *mockPlanRepo) ListExpiredPlans(time.Time) ([]database.OwnerPlan, error) { return nil, nil }
func (m *mockPlanRepo) ListPayPalPlans() ([]database.OwnerPlan, error) {
	return m.paypalPlans, m.err
}

type mockPlanMaintainer struct {
	mu        sync.Mutex
	expired   int
	expireN   int
	expireErr error
	synced    map[string]billing.Subscription
}

func (m *mockPlanMaintainer) ExpirePlans() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireN++
	return m.expired, m.expireErr
}

func (m *mockPlanMaintainer) SyncSubscription(ownerKey string, sub billing.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.synced == nil {
		m.synced = make(map[string]billing.Subscription)
	}
	m.synced[ownerKey] = sub
	return nil
}

func (m *mockPlanMaintainer) expireCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireN
}

type mockFetcher struct {
	subs map[string]billing.Subscription
}

func (m *mockFetcher) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return nil, errors.New("subscription not found")
	}
	return &sub, nil
}

type countingTask struct {
	Task
	mu    sync.Mutex
	runs  int
	fails int
}

func newCountingTask(fails int) *countingTask {
	return &countingTask{Task: NewTask(TaskTypeExpirePlans, "test"), fails: fails}
}

func (c *countingTask) Execute(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if c.runs <= c.fails {
		return errors.New("boom")
	}
	return nil
}

func (c *countingTask) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}
