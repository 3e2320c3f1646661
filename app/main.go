package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/notion-cal/app/api"
	"github.com/lysyi3m/notion-cal/app/billing"
	"github.com/lysyi3m/notion-cal/app/cfg"
	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
	"github.com/lysyi3m/notion-cal/app/notion"
	"github.com/lysyi3m/notion-cal/app/session"
	"github.com/lysyi3m/notion-cal/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Notion Cal server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	planRepo := database.NewPlanRepository(db)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	notionClient := notion.NewClient(appCfg.NotionAPIURL, appCfg.NotionVersion, appCfg.UserAgent, httpClient)

	paginator := feed.NewPaginator(appCfg.MaxSyncItems)
	assembler := feed.NewAssembler(paginator, feed.NotionSources(notionClient), feed.NewGenerator())

	billingService := billing.NewService(planRepo, feedRepo, appCfg.FreePlanMaxFeeds, appCfg.PremiumTrialDays)

	var paypal api.PayPalInterface
	var subscriptions tasks.SubscriptionFetcher
	if appCfg.PayPalConfigured() {
		client := billing.NewPayPalClient(billing.PayPalBaseURL(appCfg.PayPalEnv),
			appCfg.PayPalClientID, appCfg.PayPalClientSecret, appCfg.PayPalWebhookID, appCfg.UserAgent, httpClient)
		paypal = client
		subscriptions = client
		slog.Info("PayPal billing enabled", "env", appCfg.PayPalEnv)
	} else {
		slog.Info("PayPal billing disabled (PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET not set)")
	}

	if !appCfg.NotionOAuthConfigured() {
		slog.Warn("Notion OAuth is not configured, owner sign-in is unavailable")
	}

	scheduler, err := tasks.NewScheduler(configCache, feedRepo, planRepo, billingService, subscriptions,
		appCfg.WorkerCount, appCfg.MaintenanceCron)
	if err != nil {
		return err
	}
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "maintenance", appCfg.MaintenanceCron)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(feedRepo, assembler, configCache, scheduler, notionClient,
		session.NewSigner(appCfg.NotionClientSecret), billingService, paypal, api.Options{
			BaseURL:            appCfg.BaseUrl,
			Version:            appCfg.Version,
			NotionClientID:     appCfg.NotionClientID,
			NotionClientSecret: appCfg.NotionClientSecret,
			NotionRedirectURI:  appCfg.NotionRedirectURI,
			PayPalPlanMonthly:  appCfg.PayPalPlanMonthly,
			PayPalPlanYearly:   appCfg.PayPalPlanYearly,
			MaxSyncItems:       paginator.MaxItems(),
		})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Notion Cal server shutdown complete")

	return runErr
}
