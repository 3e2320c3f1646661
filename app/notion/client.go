package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"

	// DataSourceVersion is the first API version that exposes data sources.
	DataSourceVersion = "2025-09-03"
)

type Client struct {
	baseURL    string
	version    string
	userAgent  string
	httpClient *http.Client
}

func NewClient(baseURL, version, userAgent string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

func (c *Client) QueryDatabase(ctx context.Context, token, databaseID string, req QueryRequest) (*QueryResult, error) {
	path := "/v1/databases/" + url.PathEscape(databaseID) + "/query"
	return c.query(ctx, token, c.version, path, req)
}

func (c *Client) QueryDataSource(ctx context.Context, token, dataSourceID string, req QueryRequest) (*QueryResult, error) {
	path := "/v1/data_sources/" + url.PathEscape(dataSourceID) + "/query"
	return c.query(ctx, token, DataSourceVersion, path, req)
}

func (c *Client) query(ctx context.Context, token, version, path string, req QueryRequest) (*QueryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Notion-Version", version)
	httpReq.Header.Set("Content-Type", "application/json")
	c.setUserAgent(httpReq)

	var result QueryResult
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}

	slog.Debug("Notion query completed", "path", path, "results", len(result.Results), "has_more", result.HasMore)

	return &result, nil
}

// AuthorizeURL builds the OAuth consent URL for the public integration.
func (c *Client) AuthorizeURL(clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("owner", "user")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	if state != "" {
		q.Set("state", state)
	}
	return c.baseURL + "/v1/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades an OAuth authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(clientID, clientSecret)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	c.setUserAgent(httpReq)

	var token TokenResponse
	if err := c.do(httpReq, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access token")
	}

	return &token, nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Notion: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
