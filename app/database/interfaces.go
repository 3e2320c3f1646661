package database

import (
	"time"
)

type FeedRepositoryInterface interface {
	CreateFeed(feed *Feed) error
	GetFeed(id string) (*Feed, error)
	ListFeeds() ([]Feed, error)
	ListFeedsByOwner(ownerKey string) ([]Feed, error)
	CountFeedsByOwner(ownerKey string) (int, error)
	GetFeedCount() (int, error)

	UpdateFeedConfig(id, displayName, databaseID, properties string) error
	UpsertStaticFeed(id, displayName, accessToken, databaseID, properties string) (bool, error)
	DeleteFeed(id string) error
	DeleteOwnedFeed(id, ownerKey string) (bool, error)
}

type PlanRepositoryInterface interface {
	GetPlan(ownerKey string) (*OwnerPlan, error)
	UpsertPlan(plan *OwnerPlan) error
	GetPlanBySubscription(subscriptionID string) (*OwnerPlan, error)
	ListExpiredPlans(now time.Time) ([]OwnerPlan, error)
	ListPayPalPlans() ([]OwnerPlan, error)
}
