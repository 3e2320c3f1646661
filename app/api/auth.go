package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/notion"
	"github.com/lysyi3m/notion-cal/app/session"
)

const (
	sessionContextKey = "session"

	authModeLogin   = "login"
	authModeConnect = "connect"
)

func (h *Handler) NotionAuthorize(c *gin.Context) {
	if h.options.NotionClientID == "" || h.options.NotionRedirectURI == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing Notion Client credentials"})
		return
	}

	mode := authModeConnect
	if c.Query("mode") == authModeLogin {
		mode = authModeLogin
	}

	c.Redirect(http.StatusFound, h.notion.AuthorizeURL(h.options.NotionClientID, h.options.NotionRedirectURI, mode))
}

// NotionCallback signs the owner in and, in connect mode, creates a feed
// bound to the freshly issued integration token.
func (h *Handler) NotionCallback(c *gin.Context) {
	if authErr := c.Query("error"); authErr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": authErr})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing auth code"})
		return
	}

	if h.options.NotionClientID == "" || h.options.NotionClientSecret == "" || h.options.NotionRedirectURI == "" {
		slog.Error("Notion OAuth is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	token, err := h.notion.ExchangeCode(c.Request.Context(), h.options.NotionClientID, h.options.NotionClientSecret, code, h.options.NotionRedirectURI)
	if err != nil {
		slog.Error("Notion token exchange failed", "operation", "exchange_code", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange token"})
		return
	}

	sess := sessionFromToken(token)
	value, err := h.signer.Sign(sess)
	if err != nil {
		slog.Error("Failed to sign session", "operation", "sign_session", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	h.setSessionCookie(c, value, int(session.TTL.Seconds()))

	if c.Query("state") == authModeLogin {
		c.JSON(http.StatusOK, gin.H{"mode": authModeLogin, "ownerKey": sess.OwnerKey})
		return
	}

	summary, err := h.billing.Summary(sess.OwnerKey)
	if err != nil {
		slog.Error("Database error", "operation", "plan_summary", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	if !summary.CanCreateFeed {
		c.JSON(http.StatusForbidden, gin.H{"error": "feed_limit_reached", "plan": summary})
		return
	}

	f := &database.Feed{
		OwnerKey:    sess.OwnerKey,
		DisplayName: token.WorkspaceName,
		AccessToken: token.AccessToken,
		BotID:       token.BotID,
		WorkspaceID: token.WorkspaceID,
		Source:      database.FeedSourceOAuth,
	}
	if err := h.feedRepo.CreateFeed(f); err != nil {
		slog.Error("Database error", "operation", "create_feed", "owner", sess.OwnerKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	slog.Info("Feed created", "feed", f.ID, "owner", sess.OwnerKey, "workspace", f.WorkspaceID)

	base := publicBaseURL(c.Request, h.options.BaseURL)
	c.JSON(http.StatusOK, gin.H{
		"mode":      authModeConnect,
		"ownerKey":  sess.OwnerKey,
		"feedId":    f.ID,
		"configUrl": base + "/api/config/" + f.ID,
		"feedUrl":   h.feedURL(c, f.ID),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// sessionMiddleware rejects requests without a valid owner session.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := h.readSession(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// readSession returns nil for a missing, forged or expired cookie.
func (h *Handler) readSession(c *gin.Context) *session.Session {
	value, err := c.Cookie(session.CookieName)
	if err != nil || value == "" {
		return nil
	}

	sess, err := h.signer.Verify(value)
	if err != nil {
		slog.Debug("Rejected session cookie", "error", err)
		return nil
	}
	return sess
}

func currentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	secure := strings.HasPrefix(publicBaseURL(c.Request, h.options.BaseURL), "https://")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, value, maxAge, "/", "", secure, true)
}

// OwnerKey identifies the owner by Notion user, falling back to the workspace
// for bot-owned integrations.
func OwnerKey(token *notion.TokenResponse) string {
	if token.Owner.User.ID != "" {
		return "user:" + token.Owner.User.ID
	}
	return "workspace:" + token.WorkspaceID
}

func sessionFromToken(token *notion.TokenResponse) session.Session {
	return session.Session{
		OwnerKey:      OwnerKey(token),
		OwnerUserID:   token.Owner.User.ID,
		OwnerUserName: token.Owner.User.Name,
		WorkspaceID:   token.WorkspaceID,
		WorkspaceName: token.WorkspaceName,
		WorkspaceIcon: token.WorkspaceIcon,
	}
}
