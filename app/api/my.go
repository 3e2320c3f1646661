package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
)

func (h *Handler) ListMyFeeds(c *gin.Context) {
	sess := currentSession(c)

	feeds, err := h.feedRepo.ListFeedsByOwner(sess.OwnerKey)
	if err != nil {
		slog.Error("Database error", "operation", "list_owner_feeds", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	items := make([]gin.H, 0, len(feeds))
	for _, f := range feeds {
		items = append(items, h.feedInfo(c, f))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": items,
		"total": len(items),
	})
}

func (h *Handler) SaveMyFeed(c *gin.Context) {
	sess := currentSession(c)
	feedID := c.Param("feedId")

	var req saveFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
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
	if existing == nil || existing.OwnerKey != sess.OwnerKey {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	if err := h.feedRepo.UpdateFeedConfig(feedID, req.DisplayName, databaseID, properties); err != nil {
		slog.Error("Database error", "operation", "update_feed_config", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "saved",
		"feedId": feedID,
		"url":    h.feedURL(c, feedID),
	})
}

func (h *Handler) DeleteMyFeed(c *gin.Context) {
	sess := currentSession(c)
	feedID := c.Param("feedId")

	deleted, err := h.feedRepo.DeleteOwnedFeed(feedID, sess.OwnerKey)
	if err != nil {
		slog.Error("Database error", "operation", "delete_owned_feed", "feed", feedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "feedId": feedID})
}

func (h *Handler) GetMyPlan(c *gin.Context) {
	sess := currentSession(c)

	summary, err := h.billing.Summary(sess.OwnerKey)
	if err != nil {
		slog.Error("Database error", "operation", "plan_summary", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan":      summary,
		"trialDays": h.billing.TrialDays(),
	})
}

func (h *Handler) feedInfo(c *gin.Context, f database.Feed) gin.H {
	_, readyErr := feed.Readiness(f)

	return gin.H{
		"id":          f.ID,
		"displayName": feed.CalendarName(f),
		"databaseId":  f.DatabaseID,
		"mappings":    feed.ParseMapping(f.Properties),
		"source":      f.Source,
		"ready":       readyErr == nil,
		"url":         h.feedURL(c, f.ID),
		"createdAt":   f.CreatedAt,
		"updatedAt":   f.UpdatedAt,
	}
}
