package database

import (
	"time"
)

const (
	FeedSourceOAuth  = "oauth"
	FeedSourceStatic = "static"
)

// Feed is one configured Notion database exposed as a calendar.
type Feed struct {
	ID          string
	OwnerKey    string // empty when the feed has no owner
	DisplayName string
	AccessToken string
	BotID       string
	WorkspaceID string
	DatabaseID  string
	Properties  string // serialized property mapping
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	TierFree    = "FREE"
	TierPremium = "PREMIUM"

	PlanSourceDefault = "default"
	PlanSourceTrial   = "trial"
	PlanSourcePayPal  = "paypal"
	PlanSourceAdmin   = "admin"
)

// OwnerPlan is the billing state of a single owner.
type OwnerPlan struct {
	OwnerKey                 string
	Tier                     string
	Source                   string
	TrialUsedAt              *time.Time
	PeriodEndsAt             *time.Time
	PayPalSubscriptionID     string
	PayPalSubscriptionStatus string
	PayPalPlanID             string
	PayPalPayerID            string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
