package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/plutov/paypal/v4"
)

const (
	PayPalLiveURL    = paypal.APIBaseLive
	PayPalSandboxURL = paypal.APIBaseSandBox
)

func PayPalBaseURL(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "live") {
		return PayPalLiveURL
	}
	return PayPalSandboxURL
}

// PayPalClient adapts the PayPal SDK client to the subscription calls
// the billing flow makes.
type PayPalClient struct {
	client    *paypal.Client
	webhookID string
}

// NewPayPalClient returns an unconfigured client when credentials are missing.
func NewPayPalClient(baseURL, clientID, clientSecret, webhookID, userAgent string, httpClient *http.Client) *PayPalClient {
	c := &PayPalClient{webhookID: strings.TrimSpace(webhookID)}

	client, err := paypal.NewClient(strings.TrimSpace(clientID), strings.TrimSpace(clientSecret), strings.TrimRight(baseURL, "/"))
	if err != nil {
		slog.Debug("PayPal client disabled", "error", err)
		return c
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent != "" {
		transport := httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		withAgent := *httpClient
		withAgent.Transport = &userAgentTransport{base: transport, userAgent: userAgent}
		httpClient = &withAgent
	}
	client.SetHTTPClient(httpClient)

	c.client = client
	return c
}

type SubscriptionRequest struct {
	PlanID    string
	CustomID  string
	ReturnURL string
	CancelURL string
}

type CreatedSubscription struct {
	ID         string
	ApproveURL string
}

// Subscription is the part of a PayPal subscription the plan logic reads.
type Subscription struct {
	ID         string
	Status     string
	PlanID     string
	CustomID   string
	Subscriber struct {
		PayerID string
	}
}

func (c *PayPalClient) Configured() bool {
	return c.client != nil
}

func (c *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("paypal credentials are missing")
	}

	token, err := c.client.GetAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("paypal oauth failed: %w", err)
	}
	if token.Token == "" {
		return "", fmt.Errorf("paypal oauth did not return access_token")
	}

	return token.Token, nil
}

func (c *PayPalClient) CreateSubscription(ctx context.Context, input SubscriptionRequest) (*CreatedSubscription, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("paypal credentials are missing")
	}

	created, err := c.client.CreateSubscription(ctx, paypal.SubscriptionBase{
		PlanID:   input.PlanID,
		CustomID: input.CustomID,
		ApplicationContext: &paypal.ApplicationContext{
			ReturnURL:  input.ReturnURL,
			CancelURL:  input.CancelURL,
			UserAction: "SUBSCRIBE_NOW",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("paypal create subscription failed: %w", err)
	}

	for _, link := range created.Links {
		if link.Rel == "approve" && link.Href != "" {
			return &CreatedSubscription{ID: created.ID, ApproveURL: link.Href}, nil
		}
	}

	return nil, fmt.Errorf("paypal did not return approve URL")
}

func (c *PayPalClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("paypal credentials are missing")
	}

	details, err := c.client.GetSubscriptionDetails(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("paypal get subscription failed: %w", err)
	}

	sub := &Subscription{
		ID:       details.ID,
		Status:   string(details.SubscriptionStatus),
		PlanID:   details.PlanID,
		CustomID: details.CustomID,
	}
	if details.Subscriber != nil {
		sub.Subscriber.PayerID = details.Subscriber.PayerID
	}
	if sub.ID == "" {
		sub.ID = subscriptionID
	}

	return sub, nil
}

// VerifyWebhook asks PayPal to check the signature of a webhook request.
// The body of r must still be readable. The returned string is the
// verification status or the failure reason.
func (c *PayPalClient) VerifyWebhook(r *http.Request) (bool, string, error) {
	if c.webhookID == "" {
		return false, "missing_webhook_id", nil
	}
	if !c.Configured() {
		return false, "paypal_not_configured", nil
	}

	result, err := c.client.VerifyWebhookSignature(r.Context(), r, c.webhookID)
	if err != nil {
		return false, "verify_failed", err
	}

	return result.VerificationStatus == "SUCCESS", result.VerificationStatus, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
