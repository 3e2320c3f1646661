package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Calendar feeds
	r.GET("/feeds/:id", handler.GetFeed)
	r.GET("/api/feed/:id", handler.GetFeed)

	r.GET("/health", handler.GetHealth)

	r.POST("/api/config/:feedId", handler.SaveConfig)

	auth := r.Group("/api/auth")
	{
		auth.GET("/notion", handler.NotionAuthorize)
		auth.GET("/callback/notion", handler.NotionCallback)
		auth.POST("/logout", handler.Logout)
	}

	my := r.Group("/api/my")
	my.Use(handler.sessionMiddleware())
	{
		my.GET("/feeds", handler.ListMyFeeds)
		my.POST("/feeds/:feedId/save", handler.SaveMyFeed)
		my.POST("/feeds/:feedId/delete", handler.DeleteMyFeed)
		my.GET("/plan", handler.GetMyPlan)
	}

	r.GET("/api/billing/paypal/return", handler.PayPalReturn)
	r.POST("/api/billing/paypal/webhook", handler.PayPalWebhook)

	billingGroup := r.Group("/api/billing")
	billingGroup.Use(handler.sessionMiddleware())
	{
		billingGroup.POST("/start-trial", handler.StartTrial)
		billingGroup.POST("/paypal/create-subscription", handler.CreateSubscription)
	}

	if apiAccessKey != "" {
		admin := r.Group("/api/admin")
		admin.Use(authMiddleware(apiAccessKey))
		{
			admin.GET("/feeds", handler.AdminListFeeds)
			admin.POST("/reload", handler.AdminReloadFeeds)
			admin.POST("/reload/:feedId", handler.AdminReloadFeed)
			admin.POST("/feeds/:feedId/update", handler.AdminUpdateFeed)
			admin.POST("/feeds/:feedId/delete", handler.AdminDeleteFeed)
			admin.POST("/plans/:ownerKey", handler.AdminSetPlan)
		}
		slog.Info("Admin endpoints enabled with authentication")
	} else {
		slog.Info("Admin endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"feed":   "/api/feed/<id>.ics",
			"health": "/health",
			"config": "/api/config/<feedId> (POST)",
			"login":  "/api/auth/notion",
		}

		if apiAccessKey != "" {
			endpoints["admin_feeds"] = "/api/admin/feeds (requires X-API-Key header)"
			endpoints["admin_plans"] = "/api/admin/plans/<ownerKey> (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Notion Cal",
			"version":     handler.options.Version,
			"description": "Subscribable ICS calendars generated from Notion databases",
			"endpoints":   endpoints,
			"api_status": gin.H{
				"enabled":       apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// authMiddleware creates authentication middleware for admin endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
