package tasks

import (
	"context"

	"github.com/lysyi3m/notion-cal/app/billing"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the admin API to run background work.
//
//	scheduler, err := NewScheduler(configCache, feedRepo, planRepo, planService, paypal, workers, "*/15 * * * *")
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewExpirePlansTask(planService))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type PlanMaintainer interface {
	ExpirePlans() (int, error)
	SyncSubscription(ownerKey string, sub billing.Subscription) error
}

type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error)
}
