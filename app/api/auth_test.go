package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/notion"
	"github.com/lysyi3m/notion-cal/app/session"
)

func testToken(userID string) *notion.TokenResponse {
	token := &notion.TokenResponse{
		AccessToken:   "secret_abc",
		BotID:         "bot-1",
		WorkspaceID:   "ws-1",
		WorkspaceName: "Team Space",
	}
	token.Owner.Type = "user"
	token.Owner.User.ID = userID
	token.Owner.User.Name = "Ada"
	return token
}

func TestNotionAuthorize(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/notion", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasSuffix(loc, "state=connect") {
		t.Errorf("Expected connect state, got %s", loc)
	}

	rec = env.do(t, http.MethodGet, "/api/auth/notion?mode=login", "")
	if loc := rec.Header().Get("Location"); !strings.HasSuffix(loc, "state=login") {
		t.Errorf("Expected login state, got %s", loc)
	}

	unconfigured := newTestEnv(t, withOptions(func(o *Options) { o.NotionClientID = "" }))
	rec = unconfigured.do(t, http.MethodGet, "/api/auth/notion", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 without client credentials, got %d", rec.Code)
	}
}

func TestNotionCallbackConnectCreatesFeed(t *testing.T) {
	env := newTestEnv(t)
	env.notion.token = testToken("user-1")

	rec := env.do(t, http.MethodGet, "/api/auth/callback/notion?code=abc&state=connect", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON(t, rec)
	feedID, _ := resp["feedId"].(string)
	if feedID == "" {
		t.Fatalf("Expected feedId in response: %v", resp)
	}
	if resp["ownerKey"] != "user:user-1" {
		t.Errorf("Unexpected owner key: %v", resp["ownerKey"])
	}
	if resp["configUrl"] != testBaseURL+"/api/config/"+feedID {
		t.Errorf("Unexpected config url: %v", resp["configUrl"])
	}

	stored, err := env.feeds.GetFeed(feedID)
	if err != nil || stored == nil {
		t.Fatalf("Expected stored feed, got %v (err %v)", stored, err)
	}
	if stored.OwnerKey != "user:user-1" || stored.AccessToken != "secret_abc" || stored.WorkspaceID != "ws-1" {
		t.Errorf("Unexpected stored feed: %+v", stored)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected session cookie")
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("Expected HttpOnly secure cookie, got %+v", cookie)
	}
	sess, err := env.signer.Verify(cookie.Value)
	if err != nil || sess.OwnerKey != "user:user-1" || sess.WorkspaceName != "Team Space" {
		t.Errorf("Unexpected session %+v (err %v)", sess, err)
	}

	// The free plan allows a single feed.
	rec = env.do(t, http.MethodGet, "/api/auth/callback/notion?code=def&state=connect", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 once the free plan is full, got %d", rec.Code)
	}
}

func TestNotionCallbackLoginDoesNotCreateFeed(t *testing.T) {
	env := newTestEnv(t)
	env.notion.token = testToken("")

	rec := env.do(t, http.MethodGet, "/api/auth/callback/notion?code=abc&state=login", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if resp := decodeJSON(t, rec); resp["ownerKey"] != "workspace:ws-1" {
		t.Errorf("Expected workspace owner key, got %v", resp["ownerKey"])
	}

	count, err := env.feeds.GetFeedCount()
	if err != nil || count != 0 {
		t.Errorf("Expected no feeds after login, got %d (err %v)", count, err)
	}
}

func TestNotionCallbackErrors(t *testing.T) {
	env := newTestEnv(t)
	env.notion.err = errors.New("invalid_grant")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"denied", "/api/auth/callback/notion?error=access_denied", http.StatusBadRequest},
		{"missing code", "/api/auth/callback/notion", http.StatusBadRequest},
		{"exchange failure", "/api/auth/callback/notion?code=abc", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected session cookie to be cleared")
	}
}

func TestMyEndpointsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/my/feeds", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without cookie, got %d", rec.Code)
	}

	forged := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: "eyJvd25lcktleSI6InggIn0.forged"})
	}
	rec = env.do(t, http.MethodGet, "/api/my/feeds", "", forged)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for forged cookie, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/billing/start-trial", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for billing without session, got %d", rec.Code)
	}
}

func TestMyFeedsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.asOwner(t, "user:a")

	own := readyFeed()
	own.OwnerKey = "user:a"
	ownID := env.createFeed(t, own)

	foreign := readyFeed()
	foreign.OwnerKey = "user:b"
	foreignID := env.createFeed(t, foreign)

	rec := env.do(t, http.MethodGet, "/api/my/feeds", "", owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decodeJSON(t, rec)
	if list["total"] != float64(1) {
		t.Fatalf("Expected 1 owned feed, got %v", list["total"])
	}
	item := list["feeds"].([]any)[0].(map[string]any)
	if item["id"] != ownID || item["ready"] != true {
		t.Errorf("Unexpected feed item: %v", item)
	}

	body := `{"displayName":"Renamed","databaseId":"` + testDatabaseID + `","mappings":{"name":"Name","date":"Due","description":"Notes"}}`
	rec = env.do(t, http.MethodPost, "/api/my/feeds/"+ownID+"/save", body, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on save, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, _ := env.feeds.GetFeed(ownID)
	if stored.DisplayName != "Renamed" || stored.Properties != `{"name":"Name","date":"Due","description":"Notes"}` {
		t.Errorf("Unexpected saved feed: %+v", stored)
	}

	rec = env.do(t, http.MethodPost, "/api/my/feeds/"+foreignID+"/save", body, owner)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 saving a foreign feed, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/my/feeds/"+ownID+"/save", `{"databaseId":"x","mappings":{}}`, owner)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid payload, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/my/feeds/"+foreignID+"/delete", "", owner)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a foreign feed, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/my/feeds/"+ownID+"/delete", "", owner)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 deleting own feed, got %d", rec.Code)
	}
	if f, _ := env.feeds.GetFeed(ownID); f != nil {
		t.Error("Expected own feed to be deleted")
	}
	if f, _ := env.feeds.GetFeed(foreignID); f == nil {
		t.Error("Expected foreign feed to survive")
	}
}

func TestMyPlan(t *testing.T) {
	env := newTestEnv(t)
	env.createFeed(t, database.Feed{OwnerKey: "user:a"})

	rec := env.do(t, http.MethodGet, "/api/my/plan", "", env.asOwner(t, "user:a"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	resp := decodeJSON(t, rec)
	plan := resp["plan"].(map[string]any)
	if plan["tier"] != database.TierFree || plan["feedCount"] != float64(1) || plan["canCreateFeed"] != false {
		t.Errorf("Unexpected plan: %v", plan)
	}
	if resp["trialDays"] != float64(14) {
		t.Errorf("Unexpected trial days: %v", resp["trialDays"])
	}
}
