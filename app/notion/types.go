package notion

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	PropertyTypeTitle    = "title"
	PropertyTypeRichText = "rich_text"
	PropertyTypeDate     = "date"
)

// Page is a single row of a Notion database or data source.
type Page struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Properties map[string]Property `json:"properties"`
}

// Property is a typed page property. Only the variants the calendar
// translation reads are decoded; every other type keeps just its Type.
type Property struct {
	ID       string     `json:"id,omitempty"`
	Type     string     `json:"type"`
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	Date     *DateValue `json:"date,omitempty"`
}

type RichText struct {
	Type      string `json:"type,omitempty"`
	PlainText string `json:"plain_text"`
}

type DateValue struct {
	Start    string  `json:"start"`
	End      *string `json:"end"`
	TimeZone *string `json:"time_zone"`
}

type Filter struct {
	Property string      `json:"property"`
	Date     *DateFilter `json:"date,omitempty"`
}

type DateFilter struct {
	IsNotEmpty bool `json:"is_not_empty,omitempty"`
}

type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

// QueryRequest is the body shared by database and data source queries.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	Sorts       []Sort  `json:"sorts,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
}

type QueryResult struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// TokenResponse is the OAuth token exchange response.
type TokenResponse struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	BotID         string `json:"bot_id"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	WorkspaceIcon string `json:"workspace_icon"`
	Owner         struct {
		Type string `json:"type"`
		User struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	} `json:"owner"`
}

// APIError is the error object returned by the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsRejection reports whether err is Notion refusing the request shape
// itself, as opposed to a transport or server failure.
func IsRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Code {
	case "validation_error", "object_not_found", "invalid_request_url", "invalid_request":
		return true
	}

	return apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusNotFound
}
