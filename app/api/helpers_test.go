package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/notion-cal/app/billing"
	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
	"github.com/lysyi3m/notion-cal/app/notion"
	"github.com/lysyi3m/notion-cal/app/session"
	"github.com/lysyi3m/notion-cal/app/tasks"
)

const (
	testAPIKey     = "admin-key"
	testBaseURL    = "https://cal.example.com"
	testDatabaseID = "0123456789abcdef0123456789abcdef"
)

type pageSource struct {
	pages []notion.Page
	err   error
}

func (s *pageSource) Kind() string { return "database" }

func (s *pageSource) Query(ctx context.Context, collectionID string, req notion.QueryRequest) (*notion.QueryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &notion.QueryResult{Object: "list", Results: s.pages}, nil
}

type mockNotionAuth struct {
	token *notion.TokenResponse
	err   error
}

func (m *mockNotionAuth) AuthorizeURL(clientID, redirectURI, state string) string {
	return "https://notion.test/authorize?client_id=" + clientID + "&state=" + state
}

func (m *mockNotionAuth) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*notion.TokenResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.token, nil
}

type mockPayPal struct {
	configured bool
	created    *billing.CreatedSubscription
	createErr  error
	lastCreate billing.SubscriptionRequest
	sub        *billing.Subscription
	verified   bool

	verifiedBody string
}

func (m *mockPayPal) Configured() bool { return m.configured }

func (m *mockPayPal) CreateSubscription(ctx context.Context, input billing.SubscriptionRequest) (*billing.CreatedSubscription, error) {
	m.lastCreate = input
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *mockPayPal) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	if m.sub == nil {
		return nil, errors.New("subscription not found")
	}
	sub := *m.sub
	return &sub, nil
}

func (m *mockPayPal) VerifyWebhook(r *http.Request) (bool, string, error) {
	body, _ := io.ReadAll(r.Body)
	m.verifiedBody = string(body)
	if !m.verified {
		return false, "FAILURE", nil
	}
	return true, "SUCCESS", nil
}

type mockScheduler struct {
	mu     sync.Mutex
	queued []tasks.TaskInterface
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, task)
	return nil
}

type failingAssembler struct {
	err error
}

func (f failingAssembler) Run(ctx context.Context, fd database.Feed) (*feed.Result, error) {
	return nil, f.err
}

type testEnv struct {
	router    *gin.Engine
	feeds     *database.FeedRepository
	plans     *database.PlanRepository
	signer    *session.Signer
	source    *pageSource
	notion    *mockNotionAuth
	paypal    *mockPayPal
	scheduler *mockScheduler
}

type envOption func(*testEnv, *Options, *AssemblerInterface, **feed.ConfigCache)

func withAssembler(a AssemblerInterface) envOption {
	return func(_ *testEnv, _ *Options, assembler *AssemblerInterface, _ **feed.ConfigCache) {
		*assembler = a
	}
}

func withConfigCache(cache *feed.ConfigCache) envOption {
	return func(_ *testEnv, _ *Options, _ *AssemblerInterface, cc **feed.ConfigCache) {
		*cc = cache
	}
}

func withOptions(fn func(*Options)) envOption {
	return func(_ *testEnv, o *Options, _ *AssemblerInterface, _ **feed.ConfigCache) {
		fn(o)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	env := &testEnv{
		feeds:     database.NewFeedRepository(db),
		plans:     database.NewPlanRepository(db),
		signer:    session.NewSigner("test-secret"),
		source:    &pageSource{},
		notion:    &mockNotionAuth{},
		paypal:    &mockPayPal{},
		scheduler: &mockScheduler{},
	}

	options := Options{
		BaseURL:            testBaseURL,
		Version:            "test",
		NotionClientID:     "client-id",
		NotionClientSecret: "test-secret",
		NotionRedirectURI:  testBaseURL + "/api/auth/callback/notion",
		PayPalPlanMonthly:  "P-MONTHLY",
		PayPalPlanYearly:   "P-YEARLY",
	}

	sources := func(token string) []feed.PagedSource {
		return []feed.PagedSource{env.source}
	}
	var assembler AssemblerInterface = feed.NewAssembler(feed.NewPaginator(100), sources, feed.NewGenerator())
	var configCache *feed.ConfigCache

	for _, opt := range opts {
		opt(env, &options, &assembler, &configCache)
	}

	billingService := billing.NewService(env.plans, env.feeds, 1, 14)
	handler := NewHandler(env.feeds, assembler, configCache, env.scheduler, env.notion, env.signer, billingService, env.paypal, options)
	env.router = NewServer(handler, testAPIKey)

	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, fn := range mutate {
		fn(req)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) asOwner(t *testing.T, ownerKey string) func(*http.Request) {
	t.Helper()

	value, err := e.signer.Sign(session.Session{OwnerKey: ownerKey})
	if err != nil {
		t.Fatalf("Failed to sign session: %v", err)
	}
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: value})
	}
}

func withAPIKey(key string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("X-API-Key", key)
	}
}

func (e *testEnv) createFeed(t *testing.T, f database.Feed) string {
	t.Helper()
	if err := e.feeds.CreateFeed(&f); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}
	return f.ID
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
