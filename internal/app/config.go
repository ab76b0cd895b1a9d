package app

import (
	"errors"
	"strings"
	"time"
)

// Config holds runtime configuration for one notification pass. The core
// packages never read ambient state; everything they need flows in from
// here.
type Config struct {
	// Source page
	LoginURL  string
	EventsURL string
	Username  string
	Password  string
	UserAgent string

	// Delivery
	LineToken  string
	Recipients []string
	// Broadcast sends one message to every follower of the channel instead
	// of pushing to the recipient list.
	Broadcast bool

	// Persistence
	StorePath string

	// Behavior
	MaxPosts     int
	FetchTimeout time.Duration
	// SendPause is the delay between per-recipient pushes.
	SendPause   time.Duration
	SnapshotDir string
	DryRun      bool
	Verbose     bool
}

// Defaults fills zero-valued behavioral fields. Required settings (URLs,
// credentials, token) stay empty and are caught by ValidateConfig.
func (cfg *Config) Defaults() {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; eventnotify/1.0)"
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "seen.db"
	}
	if cfg.MaxPosts == 0 {
		cfg.MaxPosts = 10
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.SendPause == 0 {
		cfg.SendPause = time.Second
	}
}

// ValidateConfig checks the settings a run cannot start without.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.LoginURL) == "" {
		return errors.New("config: login url is required (or set LOGIN_URL)")
	}
	if strings.TrimSpace(cfg.EventsURL) == "" {
		return errors.New("config: events url is required (or set EVENTS_URL)")
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return errors.New("config: credentials are required (set CCONSUL_ID and CCONSUL_PASSWORD)")
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return errors.New("config: store path must not be empty")
	}
	if cfg.MaxPosts < 0 {
		return errors.New("config: negative max posts is not allowed")
	}
	if cfg.DryRun {
		return nil
	}
	if strings.TrimSpace(cfg.LineToken) == "" {
		return errors.New("config: LINE channel access token is required (set LINE_CHANNEL_ACCESS_TOKEN)")
	}
	if !cfg.Broadcast && len(cfg.Recipients) == 0 {
		return errors.New("config: set recipients (TARGET_IDS) or enable broadcast")
	}
	return nil
}

// SplitIDs turns a comma-separated recipient list into trimmed entries.
func SplitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
