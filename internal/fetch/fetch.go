// Package fetch retrieves the gated event page over plain HTTP: it loads the
// login page, discovers the credential form, submits it with a cookie jar,
// and then requests the events page. The contract mirrors a headless-browser
// fetch: raw markup plus the final resolved URL.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Credentials identifies the gated page and how to log into it.
type Credentials struct {
	LoginURL  string
	EventsURL string
	Username  string
	Password  string
}

// Client performs the authenticated fetch with timeouts and limited retry on
// transient errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// SnapshotDir, when set, receives a copy of the fetched markup for
	// offline selector debugging.
	SnapshotDir string
}

// FetchEvents logs in and returns the events page markup together with the
// URL the request finally resolved to. Auth or network failures are fatal to
// the run; no partial result is returned.
func (c *Client) FetchEvents(ctx context.Context, creds Credentials) ([]byte, string, error) {
	if creds.LoginURL == "" || creds.EventsURL == "" || creds.Username == "" || creds.Password == "" {
		return nil, "", errors.New("fetch: login url, events url, username and password are all required")
	}
	loginURL, err := url.Parse(creds.LoginURL)
	if err != nil || !isHTTPScheme(loginURL) {
		return nil, "", fmt.Errorf("fetch: unsupported login url %q", creds.LoginURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, "", fmt.Errorf("cookie jar: %w", err)
	}
	hc := c.sessionClient(jar)

	// 1) Load the login page and discover the credential form.
	loginBody, _, err := c.get(ctx, hc, creds.LoginURL)
	if err != nil {
		return nil, "", fmt.Errorf("load login page: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(loginBody))
	if err != nil {
		return nil, "", fmt.Errorf("parse login page: %w", err)
	}
	form, err := findLoginForm(doc, loginURL, creds.Username, creds.Password)
	if err != nil {
		return nil, "", err
	}

	// 2) Submit credentials. The jar carries the session cookie onward.
	if err := c.postForm(ctx, hc, form.Action, form.Values); err != nil {
		return nil, "", fmt.Errorf("submit login: %w", err)
	}

	// 3) Request the events page within the authenticated session.
	body, finalURL, err := c.get(ctx, hc, creds.EventsURL)
	if err != nil {
		return nil, "", fmt.Errorf("load events page: %w", err)
	}

	if c.SnapshotDir != "" {
		// Best effort: a failed snapshot must not fail the run.
		_ = saveSnapshot(c.SnapshotDir, finalURL, body)
	}
	return body, finalURL, nil
}

func (c *Client) sessionClient(jar http.CookieJar) *http.Client {
	base := &http.Client{}
	if c.HTTPClient != nil {
		clone := *c.HTTPClient
		base = &clone
	}
	base.Jar = jar
	base.CheckRedirect = c.checkRedirectFunc()
	return base
}

// get issues a GET with bounded retry for transient errors and returns the
// body plus the final URL after redirects.
func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) ([]byte, string, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, finalURL, err := c.getOnce(ctx, hc, rawURL)
		if err == nil {
			return body, finalURL, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, "", err
		}
		lastErr = err
		time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
	}
	return nil, "", lastErr
}

func (c *Client) getOnce(ctx context.Context, hc *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, "", fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return nil, "", fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !isAllowedHTMLContentType(ct) {
		return nil, "", fmt.Errorf("unsupported content type: %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return body, finalURL, nil
}

func (c *Client) postForm(ctx context.Context, hc *http.Client, action string, values url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; only the session cookie from
	// the post-login response matters.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "server error:")
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
