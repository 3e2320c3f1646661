package api

import (
	"context"
	"net/http"

	"github.com/lysyi3m/notion-cal/app/billing"
	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
	"github.com/lysyi3m/notion-cal/app/notion"
	"github.com/lysyi3m/notion-cal/app/session"
	"github.com/lysyi3m/notion-cal/app/tasks"
)

type AssemblerInterface interface {
	Run(ctx context.Context, f database.Feed) (*feed.Result, error)
}

var _ AssemblerInterface = (*feed.Assembler)(nil)

type NotionAuthInterface interface {
	AuthorizeURL(clientID, redirectURI, state string) string
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*notion.TokenResponse, error)
}

var _ NotionAuthInterface = (*notion.Client)(nil)

type PayPalInterface interface {
	Configured() bool
	CreateSubscription(ctx context.Context, input billing.SubscriptionRequest) (*billing.CreatedSubscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error)
	VerifyWebhook(r *http.Request) (bool, string, error)
}

var _ PayPalInterface = (*billing.PayPalClient)(nil)

// Options carries the settings handlers read at request time.
type Options struct {
	BaseURL            string
	Version            string
	NotionClientID     string
	NotionClientSecret string
	NotionRedirectURI  string
	PayPalPlanMonthly  string
	PayPalPlanYearly   string
	MaxSyncItems       int
}

type Handler struct {
	feedRepo    database.FeedRepositoryInterface
	assembler   AssemblerInterface
	configCache *feed.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
	notion      NotionAuthInterface
	signer      *session.Signer
	billing     *billing.Service
	paypal      PayPalInterface
	options     Options
}

type configRequest struct {
	DatabaseID string       `json:"databaseId"`
	Mappings   feed.Mapping `json:"mappings"`
}

type saveFeedRequest struct {
	DisplayName string       `json:"displayName"`
	DatabaseID  string       `json:"databaseId"`
	Mappings    feed.Mapping `json:"mappings"`
}

type setTierRequest struct {
	Tier         string `json:"tier"`
	PeriodEndsAt string `json:"periodEndsAt"`
}

type subscriptionRequest struct {
	Cycle string `json:"cycle"`
}

type webhookEvent struct {
	EventType string         `json:"event_type"`
	Resource  map[string]any `json:"resource"`
}
