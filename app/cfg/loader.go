package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	DefaultMaxSyncItems = 2000
	MaxSyncItemsCap     = 10000
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/notion-cal.db" description:"Path to the sqlite database file"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://cal.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Feed generation
	MaxSyncItems int    `long:"max-sync-items" env:"MAX_SYNC_ITEMS" default:"2000" description:"Maximum number of Notion pages pulled into one feed (1..10000)"`
	FeedsDir     string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing static feed definitions"`

	// Notion
	NotionClientID     string `long:"notion-client-id" env:"NOTION_CLIENT_ID" description:"Notion OAuth client id"`
	NotionClientSecret string `long:"notion-client-secret" env:"NOTION_CLIENT_SECRET" description:"Notion OAuth client secret, also signs owner sessions"`
	NotionRedirectURI  string `long:"notion-redirect-uri" env:"NOTION_REDIRECT_URI" description:"Notion OAuth redirect URI"`
	NotionAPIURL       string `long:"notion-api-url" env:"NOTION_API_URL" default:"https://api.notion.com" description:"Notion API base URL"`
	NotionVersion      string `long:"notion-version" env:"NOTION_VERSION" default:"2022-06-28" description:"Notion-Version header for database queries"`

	// Billing
	PayPalEnv           string `long:"paypal-env" env:"PAYPAL_ENV" default:"sandbox" description:"PayPal environment (sandbox or live)"`
	PayPalClientID      string `long:"paypal-client-id" env:"PAYPAL_CLIENT_ID" description:"PayPal REST client id"`
	PayPalClientSecret  string `long:"paypal-client-secret" env:"PAYPAL_CLIENT_SECRET" description:"PayPal REST client secret"`
	PayPalPlanMonthly   string `long:"paypal-plan-monthly" env:"PAYPAL_PLAN_ID_MONTHLY" description:"PayPal plan id for monthly billing"`
	PayPalPlanYearly    string `long:"paypal-plan-yearly" env:"PAYPAL_PLAN_ID_YEARLY" description:"PayPal plan id for yearly billing"`
	PayPalWebhookID     string `long:"paypal-webhook-id" env:"PAYPAL_WEBHOOK_ID" description:"PayPal webhook id used for signature verification"`
	FreePlanMaxFeeds    int    `long:"free-plan-max-feeds" env:"FREE_PLAN_MAX_FEEDS" default:"1" description:"Number of feeds allowed on the free plan"`
	PremiumTrialDays    int    `long:"premium-trial-days" env:"PREMIUM_TRIAL_DAYS" default:"14" description:"Length of the premium trial in days"`

	// Background work
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	MaintenanceCron string `long:"maintenance-cron" env:"MAINTENANCE_CRON" default:"*/15 * * * *" description:"Cron schedule for plan maintenance tasks"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Notion Cal/1.0" description:"User agent string for outbound HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for offset-less Notion timestamps (e.g., UTC, Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses command-line flags and environment variables.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		APIAccessKey:       raw.APIAccessKey,
		MaxSyncItems:       ClampMaxSyncItems(raw.MaxSyncItems),
		FeedsDir:           raw.FeedsDir,
		NotionClientID:     raw.NotionClientID,
		NotionClientSecret: raw.NotionClientSecret,
		NotionRedirectURI:  raw.NotionRedirectURI,
		NotionAPIURL:       raw.NotionAPIURL,
		NotionVersion:      raw.NotionVersion,
		PayPalEnv:          raw.PayPalEnv,
		PayPalClientID:     raw.PayPalClientID,
		PayPalClientSecret: raw.PayPalClientSecret,
		PayPalPlanMonthly:  raw.PayPalPlanMonthly,
		PayPalPlanYearly:   raw.PayPalPlanYearly,
		PayPalWebhookID:    raw.PayPalWebhookID,
		FreePlanMaxFeeds:   positiveOr(raw.FreePlanMaxFeeds, 1),
		PremiumTrialDays:   positiveOr(raw.PremiumTrialDays, 14),
		WorkerCount:        positiveOr(raw.WorkerCount, 1),
		MaintenanceCron:    raw.MaintenanceCron,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

// ClampMaxSyncItems bounds the per-feed item budget to 1..MaxSyncItemsCap.
// Non-positive values fall back to the default.
func ClampMaxSyncItems(n int) int {
	if n <= 0 {
		return DefaultMaxSyncItems
	}
	return min(n, MaxSyncItemsCap)
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
