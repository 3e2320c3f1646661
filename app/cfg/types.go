package cfg

type Cfg struct {
	// Storage
	DBPath string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Feed generation
	MaxSyncItems int
	FeedsDir     string

	// Notion
	NotionClientID     string
	NotionClientSecret string
	NotionRedirectURI  string
	NotionAPIURL       string
	NotionVersion      string

	// Billing
	PayPalEnv          string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalPlanMonthly  string
	PayPalPlanYearly   string
	PayPalWebhookID    string
	FreePlanMaxFeeds   int
	PremiumTrialDays   int

	// Background work
	WorkerCount     int
	MaintenanceCron string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

func (c *Cfg) NotionOAuthConfigured() bool {
	return c.NotionClientID != "" && c.NotionClientSecret != "" && c.NotionRedirectURI != ""
}
