package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/billing"
)

func (h *Handler) StartTrial(c *gin.Context) {
	sess := currentSession(c)

	plan, err := h.billing.StartTrial(sess.OwnerKey)
	if errors.Is(err, billing.ErrTrialAlreadyUsed) {
		c.JSON(http.StatusConflict, gin.H{"error": billing.ErrTrialAlreadyUsed.Error()})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "start_trial", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "trial_started",
		"tier":         plan.Tier,
		"periodEndsAt": plan.PeriodEndsAt,
	})
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	sess := currentSession(c)

	if !h.paypalReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal_not_configured"})
		return
	}

	var req subscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
			return
		}
	}
	if req.Cycle == "" {
		req.Cycle = c.Query("cycle")
	}

	planID := h.options.PayPalPlanMonthly
	if strings.EqualFold(strings.TrimSpace(req.Cycle), "yearly") {
		planID = h.options.PayPalPlanYearly
	}
	if planID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal_plan_missing"})
		return
	}

	base := publicBaseURL(c.Request, h.options.BaseURL)
	created, err := h.paypal.CreateSubscription(c.Request.Context(), billing.SubscriptionRequest{
		PlanID:    planID,
		CustomID:  sess.OwnerKey,
		ReturnURL: base + "/api/billing/paypal/return",
		CancelURL: base + "/pricing?status=paypal_canceled",
	})
	if err != nil {
		slog.Error("PayPal create subscription failed", "operation", "create_subscription", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "paypal_create_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptionId": created.ID,
		"approveUrl":     created.ApproveURL,
	})
}

// PayPalReturn activates premium for the owner named in the subscription,
// or for the signed-in owner when PayPal carries none.
func (h *Handler) PayPalReturn(c *gin.Context) {
	subscriptionID := c.Query("subscription_id")
	if subscriptionID == "" {
		subscriptionID = c.Query("ba_token")
	}
	if subscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paypal_missing_subscription"})
		return
	}

	if !h.paypalReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal_not_configured"})
		return
	}

	sub, err := h.paypal.GetSubscription(c.Request.Context(), subscriptionID)
	if err != nil {
		slog.Error("PayPal subscription lookup failed", "operation", "get_subscription", "subscription", subscriptionID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "paypal_activate_failed"})
		return
	}
	if sub.ID == "" {
		sub.ID = subscriptionID
	}

	ownerKey := sub.CustomID
	if ownerKey == "" {
		if sess := h.readSession(c); sess != nil {
			ownerKey = sess.OwnerKey
		}
	}
	if ownerKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.billing.ActivatePayPal(ownerKey, *sub); err != nil {
		slog.Error("Database error", "operation", "activate_paypal", "owner", ownerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "paypal_activate_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "paypal_activated", "ownerKey": ownerKey})
}

func (h *Handler) PayPalWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}

	if !h.paypalReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paypal_not_configured"})
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	ok, reason, err := h.paypal.VerifyWebhook(c.Request)
	if err != nil || !ok {
		slog.Error("PayPal webhook verification failed", "operation", "verify_webhook", "reason", reason, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
		return
	}

	sub := subscriptionFromResource(event.Resource)
	if sub.ID == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.billing.SyncSubscription(sub.CustomID, sub); err != nil {
		slog.Error("Database error", "operation", "sync_subscription", "subscription", sub.ID, "event", event.EventType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) paypalReady() bool {
	return h.paypal != nil && h.paypal.Configured()
}

// subscriptionFromResource reads only string fields so that unrelated
// webhook resources never fail to decode.
func subscriptionFromResource(resource map[string]any) billing.Subscription {
	var sub billing.Subscription
	sub.ID = stringValue(resource["id"])
	sub.Status = stringValue(resource["status"])
	sub.PlanID = stringValue(resource["plan_id"])
	sub.CustomID = stringValue(resource["custom_id"])
	if subscriber, ok := resource["subscriber"].(map[string]any); ok {
		sub.Subscriber.PayerID = stringValue(subscriber["payer_id"])
	}
	return sub
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
