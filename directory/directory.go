/*
directory.go - User directory lookups

PURPOSE:
  The ledger keys everything by user id, but admins search by email. The
  directory service owns that mapping; this package is the client for it.
  Lookups that fail because the address is unknown return ErrUserNotFound
  so callers can degrade to an empty result instead of surfacing an error.

SEE ALSO:
  - stats: History filtering by email
*/
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenride/seed-engine/seed"
)

// ErrUserNotFound reports an email with no directory record.
var ErrUserNotFound = errors.New("directory: user not found")

// Resolver maps email addresses to user ids.
type Resolver interface {
	ResolveEmail(ctx context.Context, email string) (string, error)
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// Client resolves users against the directory service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient returns a directory client for the given base URL. A zero
// timeout falls back to five seconds.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "directory").Logger(),
	}
}

type userResponse struct {
	UserID string `json:"userId"`
}

// ResolveEmail looks up the user id for an email address.
func (c *Client) ResolveEmail(ctx context.Context, email string) (string, error) {
	u := fmt.Sprintf("%s/users/by-email?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", seed.ErrUpstreamLookup, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("directory lookup failed")
		return "", fmt.Errorf("%w: %v", seed.ErrUpstreamLookup, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrUserNotFound
	default:
		c.log.Warn().Int("status", resp.StatusCode).Msg("directory lookup failed")
		return "", fmt.Errorf("%w: status %d", seed.ErrUpstreamLookup, resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", seed.ErrUpstreamLookup, err)
	}
	if body.UserID == "" {
		return "", ErrUserNotFound
	}
	return body.UserID, nil
}

// Static is a fixed in-process resolver, used in tests and single-tenant
// deployments without a directory service.
type Static map[string]string

func (s Static) ResolveEmail(_ context.Context, email string) (string, error) {
	id, ok := s[email]
	if !ok {
		return "", ErrUserNotFound
	}
	return id, nil
}
