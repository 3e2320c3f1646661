package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/tasks"
)

func (h *Handler) AdminListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]gin.H, 0, len(feeds))
	for _, f := range feeds {
		info := h.feedInfo(c, f)
		info["ownerKey"] = f.OwnerKey
		info["workspaceId"] = f.WorkspaceID
		items = append(items, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": items,
		"total": len(items),
	})
}

func (h *Handler) AdminUpdateFeed(c *gin.Context) {
	feedID := c.Param("feedId")

	var req saveFeedRequest
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.feedRepo.UpdateFeedConfig(feedID, req.DisplayName, databaseID, properties); err != nil {
		slog.Error("Database error", "operation", "update_feed_config", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "feedId": feedID, "url": h.feedURL(c, feedID)})
}

func (h *Handler) AdminDeleteFeed(c *gin.Context) {
	feedID := c.Param("feedId")

	existing, err := h.feedRepo.GetFeed(feedID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.feedRepo.DeleteFeed(feedID); err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "feedId": feedID})
}

func (h *Handler) AdminSetPlan(c *gin.Context) {
	ownerKey := c.Param("ownerKey")

	var req setTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	tier := strings.ToUpper(strings.TrimSpace(req.Tier))
	if tier != database.TierFree && tier != database.TierPremium {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tier", "details": "tier must be FREE or PREMIUM"})
		return
	}

	var periodEndsAt *time.Time
	if req.PeriodEndsAt != "" {
		t, err := time.Parse(time.RFC3339, req.PeriodEndsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid periodEndsAt", "details": err.Error()})
			return
		}
		t = t.UTC()
		periodEndsAt = &t
	}

	plan, err := h.billing.SetTier(ownerKey, tier, periodEndsAt)
	if err != nil {
		slog.Error("Database error", "operation", "set_tier", "owner", ownerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"ownerKey":     plan.OwnerKey,
		"tier":         plan.Tier,
		"source":       plan.Source,
		"periodEndsAt": plan.PeriodEndsAt,
	})
}

// AdminReloadFeeds re-reads the static feed definitions and queues a sync
// task for each of them.
func (h *Handler) AdminReloadFeeds(c *gin.Context) {
	if h.configCache == nil || h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Static feeds are not enabled"})
		return
	}

	if err := h.configCache.Run(); err != nil {
		slog.Error("Error reloading configuration", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	queued := []gin.H{}
	for _, feedConfig := range h.configCache.GetConfigs() {
		syncTask := tasks.NewSyncFeedConfigTask(feedConfig, h.feedRepo)
		if err := h.scheduler.EnqueueTask(syncTask); err != nil {
			slog.Error("Error enqueueing sync task", "feed", feedConfig.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue sync task",
				"details": err.Error(),
			})
			return
		}
		queued = append(queued, gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
			"feed": feedConfig.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"tasks":   queued,
	})
}

func (h *Handler) AdminReloadFeed(c *gin.Context) {
	feedID := c.Param("feedId")

	if h.configCache == nil || h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Static feeds are not enabled"})
		return
	}

	if err := h.configCache.Run(); err != nil {
		slog.Error("Error reloading configuration", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	feedConfig, err := h.configCache.GetConfig(feedID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	syncTask := tasks.NewSyncFeedConfigTask(feedConfig, h.feedRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and task enqueued successfully",
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
			"feed": feedConfig.ID,
		},
	})
}
