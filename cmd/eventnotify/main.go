package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/eventnotify/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// A local .env is a convenience for development; its absence is normal.
	_ = godotenv.Load()

	var (
		configPath   string
		loginURL     string
		eventsURL    string
		username     string
		password     string
		userAgent    string
		lineToken    string
		recipients   string
		broadcast    bool
		storePath    string
		maxPosts     int
		fetchTimeout time.Duration
		sendPause    time.Duration
		snapshotDir  string
		dryRun       bool
		verbose      bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "Path to YAML config file (optional)")
	flag.StringVar(&loginURL, "login.url", "", "Login page URL")
	flag.StringVar(&eventsURL, "events.url", "", "Event list page URL")
	flag.StringVar(&username, "user", "", "Login id for the member site")
	flag.StringVar(&password, "pass", "", "Password for the member site")
	flag.StringVar(&userAgent, "ua", "", "Custom User-Agent for page requests")
	flag.StringVar(&lineToken, "line.token", "", "LINE Messaging API channel access token")
	flag.StringVar(&recipients, "recipients", "", "Comma-separated LINE user/group IDs to push to")
	flag.BoolVar(&broadcast, "broadcast", false, "Broadcast to all channel followers instead of pushing to recipients")
	flag.StringVar(&storePath, "store", "", "Path to the SQLite seen-store")
	flag.IntVar(&maxPosts, "max.posts", 0, "Maximum new events per run (0 uses the default)")
	flag.DurationVar(&fetchTimeout, "fetch.timeout", 0, "Per-request timeout for page fetches")
	flag.DurationVar(&sendPause, "send.pause", 0, "Pause between per-recipient pushes")
	flag.StringVar(&snapshotDir, "snapshot.dir", "", "Directory for raw page snapshots (empty disables)")
	flag.BoolVar(&dryRun, "dry-run", false, "Print the digest without delivering or marking seen")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg := app.Config{
		LoginURL:     loginURL,
		EventsURL:    eventsURL,
		Username:     username,
		Password:     password,
		UserAgent:    userAgent,
		LineToken:    lineToken,
		Recipients:   app.SplitIDs(recipients),
		Broadcast:    broadcast,
		StorePath:    storePath,
		MaxPosts:     maxPosts,
		FetchTimeout: fetchTimeout,
		SendPause:    sendPause,
		SnapshotDir:  snapshotDir,
		DryRun:       dryRun,
		Verbose:      verbose,
	}

	// Precedence: flags, then env, then config file, then defaults.
	app.ApplyEnvToConfig(&cfg)
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file")
			os.Exit(1)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	cfg.Defaults()

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		switch {
		case errors.Is(err, app.ErrFetchFailed):
			os.Exit(2)
		case errors.Is(err, app.ErrStoreUnavailable):
			os.Exit(3)
		case errors.Is(err, app.ErrAllDeliveriesFailed):
			os.Exit(4)
		default:
			os.Exit(1)
		}
	}
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
