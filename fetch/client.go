/*
Package fetch is the HTTP client for the scheduling portal.

PURPOSE:
  The portal is a session-based web application: a form login sets the
  session cookie, then the grid and station display pages are plain GETs.
  This package owns the transport concerns (session, retries, timeouts)
  and hands raw HTML upward; it never parses what it fetches.

RETRY POLICY:
  Transient failures (network errors, 5xx) are retried with a short
  doubling backoff. A 401/redirect-to-login response triggers one
  re-login before the request is retried; auth failure on the re-login
  itself is terminal.

SEE ALSO:
  - scrape/runner.go: the consumer, via the Fetcher interfaces
  - gridparse/:       where the returned HTML goes
*/
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Credentials authenticate the portal session.
type Credentials struct {
	Username string
	Password string
}

// Client fetches portal pages over an authenticated session.
type Client struct {
	base  *url.URL
	creds Credentials
	http  *http.Client
	log   zerolog.Logger
}

// NewClient builds a portal client rooted at baseURL. The session is
// established lazily on the first fetch.
func NewClient(baseURL string, creds Credentials, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:  base,
		creds: creds,
		http: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
		log: log.With().Str("component", "fetch").Logger(),
	}, nil
}

// Login posts the credential form and establishes the session cookie.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.creds.Username},
		"password": {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login.aspx"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("portal login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("portal login rejected: status %d", resp.StatusCode)
	}
	c.log.Debug().Msg("portal session established")
	return nil
}

// GridHTML returns the raw schedule grid page for one booking day.
func (c *Client) GridHTML(ctx context.Context, day time.Time) (string, error) {
	u := c.endpoint("/schedule.aspx") + "?date=" + url.QueryEscape(day.Format("02/01/2006"))
	return c.getWithSession(ctx, u)
}

// StationDisplayHTML returns the live station display page.
func (c *Client) StationDisplayHTML(ctx context.Context) (string, error) {
	return c.getWithSession(ctx, c.endpoint("/stationdisplay.aspx"))
}

// getWithSession performs an authenticated GET with retries. A response
// that looks like the login page means the session expired; re-login
// once and retry.
func (c *Client) getWithSession(ctx context.Context, u string) (string, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, status, err := c.get(ctx, u)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusUnauthorized || sessionExpired(body):
			if err := c.Login(ctx); err != nil {
				return "", err
			}
			lastErr = fmt.Errorf("session expired at %s", u)
		case status >= 500:
			lastErr = fmt.Errorf("portal returned %d for %s", status, u)
		case status >= 400:
			return "", fmt.Errorf("portal returned %d for %s", status, u)
		default:
			return body, nil
		}
		c.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("portal fetch retrying")
	}
	return "", fmt.Errorf("portal fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, u string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// sessionExpired detects the portal's habit of answering expired
// sessions with a 200 that renders the login form.
func sessionExpired(body string) bool {
	return strings.Contains(body, `id="loginForm"`)
}
