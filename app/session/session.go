package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	CookieName = "notion_user_session"
	TTL        = 30 * 24 * time.Hour
)

var (
	ErrNoSecret         = errors.New("session signing secret is not configured")
	ErrMalformed        = errors.New("malformed session value")
	ErrInvalidSignature = errors.New("invalid session signature")
	ErrExpired          = errors.New("session expired")
)

// Session identifies the Notion user that owns feeds and a billing plan.
type Session struct {
	OwnerKey      string `json:"ownerKey"`
	OwnerUserID   string `json:"ownerUserId,omitempty"`
	OwnerUserName string `json:"ownerUserName,omitempty"`
	WorkspaceID   string `json:"workspaceId,omitempty"`
	WorkspaceName string `json:"workspaceName,omitempty"`
	WorkspaceIcon string `json:"workspaceIcon,omitempty"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// Signer issues and verifies securecookie values carrying a Session.
type Signer struct {
	codec *securecookie.SecureCookie
	now   func() time.Time
}

func NewSigner(secret string) *Signer {
	s := &Signer{now: time.Now}

	if key := strings.TrimSpace(secret); key != "" {
		s.codec = securecookie.New([]byte(key), nil).
			MaxAge(int(TTL / time.Second)).
			SetSerializer(securecookie.JSONEncoder{})
	}

	return s
}

func (s *Signer) Enabled() bool {
	return s.codec != nil
}

// Sign stamps the session with a fresh expiry and returns the cookie value.
func (s *Signer) Sign(sess Session) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	if sess.OwnerKey == "" {
		return "", fmt.Errorf("session requires an owner key")
	}

	sess.ExpiresAt = s.now().Add(TTL).Unix()

	value, err := s.codec.Encode(CookieName, sess)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	return value, nil
}

func (s *Signer) Verify(value string) (*Session, error) {
	if !s.Enabled() {
		return nil, ErrNoSecret
	}
	if value == "" {
		return nil, ErrMalformed
	}

	var sess Session
	if err := s.codec.Decode(CookieName, value, &sess); err != nil {
		switch {
		case errors.Is(err, securecookie.ErrMacInvalid):
			return nil, ErrInvalidSignature
		case strings.Contains(err.Error(), "expired"):
			return nil, ErrExpired
		default:
			return nil, ErrMalformed
		}
	}
	if sess.OwnerKey == "" {
		return nil, ErrMalformed
	}

	if sess.ExpiresAt <= s.now().Unix() {
		return nil, ErrExpired
	}

	return &sess, nil
}
