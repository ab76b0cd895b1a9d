// Package notify delivers digest messages through the LINE Messaging API and
// formats event records into the digest text.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxMessageChars is the transport limit applied to outgoing text. The LINE
// API caps text messages at 5000 characters; 4900 leaves headroom.
const MaxMessageChars = 4900

const defaultBaseURL = "https://api.line.me"

// Client calls the LINE Messaging API with a channel access token. Push
// targets one recipient; Broadcast reaches every follower of the channel.
type Client struct {
	Token      string
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to,omitempty"`
	Messages []textMessage `json:"messages"`
}

type apiError struct {
	Message string `json:"message"`
}

// Push sends text to a single user or group ID.
func (c *Client) Push(ctx context.Context, to string, text string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("push: empty recipient")
	}
	return c.post(ctx, "/v2/bot/message/push", pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: Truncate(text, MaxMessageChars)}},
	})
}

// Broadcast sends text to all followers of the channel.
func (c *Client) Broadcast(ctx context.Context, text string) error {
	return c.post(ctx, "/v2/bot/message/broadcast", pushRequest{
		Messages: []textMessage{{Type: "text", Text: Truncate(text, MaxMessageChars)}},
	})
}

func (c *Client) post(ctx context.Context, path string, payload pushRequest) error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("line: missing channel access token")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message != "" {
			return fmt.Errorf("line status %d: %s", resp.StatusCode, e.Message)
		}
		return fmt.Errorf("line status %d", resp.StatusCode)
	}
	return nil
}

// Truncate caps s at max characters without splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
