package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env. The variable names are the
// ones the deployment has always used.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LoginURL == "" {
		cfg.LoginURL = os.Getenv("LOGIN_URL")
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = os.Getenv("EVENTS_URL")
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("CCONSUL_ID")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("CCONSUL_PASSWORD")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("USER_AGENT")
	}

	if cfg.LineToken == "" {
		cfg.LineToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	}
	if len(cfg.Recipients) == 0 {
		cfg.Recipients = SplitIDs(os.Getenv("TARGET_IDS"))
	}

	if cfg.StorePath == "" {
		cfg.StorePath = os.Getenv("DB_PATH")
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = os.Getenv("SNAPSHOT_DIR")
	}

	if cfg.MaxPosts == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("MAX_POSTS"))); err == nil && n > 0 {
			cfg.MaxPosts = n
		}
	}
	if cfg.FetchTimeout == 0 {
		if d, err := time.ParseDuration(os.Getenv("FETCH_TIMEOUT")); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.Broadcast, "BROADCAST")
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
}
