package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/billing"
	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
	"github.com/lysyi3m/notion-cal/app/session"
	"github.com/lysyi3m/notion-cal/app/tasks"
)

const feedCacheControl = "public, max-age=0, s-maxage=30, stale-while-revalidate=30"

func NewHandler(feedRepo database.FeedRepositoryInterface, assembler AssemblerInterface,
	configCache *feed.ConfigCache, scheduler tasks.TaskSchedulerInterface, notionAuth NotionAuthInterface,
	signer *session.Signer, billingService *billing.Service, paypal PayPalInterface, options Options) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		assembler:   assembler,
		configCache: configCache,
		scheduler:   scheduler,
		notion:      notionAuth,
		signer:      signer,
		billing:     billingService,
		paypal:      paypal,
		options:     options,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	id := strings.TrimSuffix(c.Param("id"), ".ics")
	if id == "" {
		c.String(http.StatusBadRequest, "Missing feed id")
		return
	}

	f, err := h.feedRepo.GetFeed(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", id, "error", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if f == nil {
		c.String(http.StatusNotFound, "Feed not found")
		return
	}

	result, err := h.assembler.Run(c.Request.Context(), *f)
	switch {
	case errors.Is(err, feed.ErrNotConfigured):
		c.String(http.StatusBadRequest, "Feed not configured")
		return
	case errors.Is(err, feed.ErrInvalidMapping):
		c.String(http.StatusBadRequest, "Invalid feed mappings")
		return
	case errors.Is(err, feed.ErrUpstream):
		slog.Error("Notion query failed", "operation", "query_feed", "feed", id, "error", err)
		c.String(http.StatusBadGateway, "Failed to query Notion")
		return
	case err != nil:
		slog.Error("Calendar generation error", "operation", "generate_feed", "feed", id, "error", err)
		c.String(http.StatusInternalServerError, "Error generating calendar")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="notion-calendar-`+id+`.ics"`)
	c.Header("Cache-Control", feedCacheControl)
	c.Header("X-Feed-Id", id)
	c.Header("X-Feed-Events", strconv.Itoa(result.Events))

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(result.Body))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	} else {
		slog.Error("Database error", "operation", "count_feeds", "error", err)
		health["status"] = "degraded"
	}

	if h.configCache != nil {
		health["loaded_configurations"] = h.configCache.GetConfigCount()
	}
	if h.options.MaxSyncItems > 0 {
		health["max_sync_items"] = h.options.MaxSyncItems
	}

	c.JSON(http.StatusOK, health)
}

// SaveConfig binds a collection and mapping to a feed. The feed id acts as
// the capability, so no session is required.
func (h *Handler) SaveConfig(c *gin.Context) {
	feedID := c.Param("feedId")

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	databaseID, properties, ok := validateFeedConfig(c, req.DatabaseID, req.Mappings)
	if !ok {
		return
	}

	existing, err := h.feedRepo.GetFeed(feedID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.feedRepo.UpdateFeedConfig(feedID, "", databaseID, properties); err != nil {
		slog.Error("Database error", "operation", "update_feed_config", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": h.feedURL(c, feedID)})
}

// validateFeedConfig writes the 400 response itself when the input is rejected.
func validateFeedConfig(c *gin.Context, databaseID string, mapping feed.Mapping) (string, string, bool) {
	databaseID = strings.TrimSpace(databaseID)
	if err := feed.ValidateCollectionID(databaseID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid database id", "details": err.Error()})
		return "", "", false
	}

	mapping = mapping.Normalize()
	if !mapping.Complete() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mappings", "details": "name and date are required"})
		return "", "", false
	}

	return databaseID, feed.SerializeMapping(mapping), true
}

func (h *Handler) feedURL(c *gin.Context, feedID string) string {
	return publicBaseURL(c.Request, h.options.BaseURL) + "/api/feed/" + feedID + ".ics"
}

// publicBaseURL prefers the configured base URL, then forwarded headers.
func publicBaseURL(r *http.Request, configured string) string {
	if base := strings.TrimRight(strings.TrimSpace(configured), "/"); base != "" {
		return base
	}

	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}

	proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "https"
	}

	return strings.TrimRight(proto+"://"+host, "/")
}

func firstHeaderValue(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}
