// Package telegram adapts the authenticated session bridge into the presence
// observations the poller works with. The bridge owns the platform session
// and the wire protocol; this side only speaks HTTP to it and classifies its
// answers.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"presence-archive/internal/models"
)

// Observation is one normalized look at a tracked account.
type Observation struct {
	UserID    int64
	Username  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Status    models.Status
	WasOnline *time.Time
}

// Observer is the capability the poller depends on.
type Observer interface {
	Observe(ctx context.Context, identifier string) (*Observation, error)
}

type Client struct {
	log        *slog.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(log *slog.Logger, baseURL, sessionToken string) *Client {
	return &Client{
		log:     log,
		baseURL: baseURL,
		token:   sessionToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// userPayload mirrors the bridge's user document.
type userPayload struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	Status    string     `json:"status"`
	WasOnline *time.Time `json:"was_online"`
}

// Observe queries the bridge for one account, by numeric id or @handle.
// Failures come back as the typed errors in errors.go so the poller can
// decide between skip, backoff and halt.
func (c *Client) Observe(ctx context.Context, identifier string) (*Observation, error) {
	reqURL := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// includes client timeouts
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status=%d", ErrAuthExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, identifier)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ThrottledError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status=%d", ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status=%d", ErrTransient, resp.StatusCode)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrTransient, err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: response missing user id", ErrTransient)
	}

	obs := &Observation{
		UserID:    payload.ID,
		Username:  optional(payload.Username),
		FirstName: optional(payload.FirstName),
		LastName:  optional(payload.LastName),
		Phone:     optional(payload.Phone),
		Status:    NormalizeStatus(payload.Status),
	}
	// the platform reports last-seen only for offline-like statuses
	if obs.Status != models.StatusOnline {
		obs.WasOnline = payload.WasOnline
	}

	c.log.Debug("user_observed", "identifier", identifier, "user_id", obs.UserID, "status", string(obs.Status))
	return obs, nil
}

// NormalizeStatus folds the bridge's status strings into the closed category
// set. Anything unrecognized is unknown, which mirrors the platform hiding
// exact presence behind privacy settings.
func NormalizeStatus(raw string) models.Status {
	st := models.Status(raw)
	if st.Valid() {
		return st
	}
	return models.StatusUnknown
}

// retryAfter reads the Retry-After header, which may be either delta-seconds
// or an HTTP date. Anything unparseable or already in the past counts as no
// hint.
func retryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(ra); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Observer = (*Client)(nil)
