// Package app wires the fetch, extraction, dedup, store, and delivery layers
// into one notification pass and owns the run's error policy.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/eventnotify/internal/dedup"
	"github.com/hyperifyio/eventnotify/internal/fetch"
	"github.com/hyperifyio/eventnotify/internal/notify"
	"github.com/hyperifyio/eventnotify/internal/scrape"
	"github.com/hyperifyio/eventnotify/internal/seen"
)

// Sentinel errors drive the CLI exit code policy.
var (
	// ErrStoreUnavailable means the seen-store could not be opened or
	// written. The run must not deliver without a working store: every
	// later run would re-notify the same events.
	ErrStoreUnavailable = errors.New("seen store unavailable")
	// ErrFetchFailed means the gated page could not be retrieved. Nothing
	// has been written; the next run starts clean.
	ErrFetchFailed = errors.New("event page fetch failed")
	// ErrAllDeliveriesFailed means every recipient push failed. The batch
	// is still marked seen (the duplicate-spam tradeoff), but the process
	// exits non-zero so the scheduler surfaces the outage.
	ErrAllDeliveriesFailed = errors.New("all deliveries failed")
)

// Fetcher retrieves the gated page markup and its final URL.
type Fetcher interface {
	FetchEvents(ctx context.Context, creds fetch.Credentials) ([]byte, string, error)
}

// Notifier delivers one text message.
type Notifier interface {
	Push(ctx context.Context, to string, text string) error
	Broadcast(ctx context.Context, text string) error
}

// App is one configured notification pass over the gated event page.
type App struct {
	cfg      Config
	store    *seen.Store
	fetcher  Fetcher
	notifier Notifier
}

// New opens the seen-store and builds the collaborators. A store that cannot
// be opened aborts before any fetch work is spent.
func New(cfg Config) (*App, error) {
	cfg.Defaults()

	store, err := seen.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, cfg.StorePath, err)
	}

	return &App{
		cfg:   cfg,
		store: store,
		fetcher: &fetch.Client{
			UserAgent:         cfg.UserAgent,
			MaxAttempts:       2,
			PerRequestTimeout: cfg.FetchTimeout,
			SnapshotDir:       cfg.SnapshotDir,
		},
		notifier: &notify.Client{Token: cfg.LineToken},
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Run performs one pass: fetch, extract, filter, deliver, mark seen. The
// two phases are strictly ordered: no store mutation happens unless events
// were selected for this run's delivery batch.
func (a *App) Run(ctx context.Context) error {
	markup, finalURL, err := a.fetcher.FetchEvents(ctx, fetch.Credentials{
		LoginURL:  a.cfg.LoginURL,
		EventsURL: a.cfg.EventsURL,
		Username:  a.cfg.Username,
		Password:  a.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	log.Debug().Str("url", finalURL).Int("bytes", len(markup)).Msg("fetched event page")

	res := scrape.Extract(markup, finalURL)
	if len(res.Events) == 0 {
		log.Warn().Str("url", finalURL).Msg("no events extracted; page layout may have changed, selectors need adjustment")
		return nil
	}
	log.Info().Str("strategy", res.Strategy).Int("count", len(res.Events)).Msg("extracted events")

	newEvents, err := dedup.FilterNew(ctx, a.store, res.Events)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(newEvents) == 0 {
		log.Info().Msg("no new events")
		return nil
	}
	if a.cfg.MaxPosts > 0 && len(newEvents) > a.cfg.MaxPosts {
		log.Info().Int("total", len(newEvents)).Int("max", a.cfg.MaxPosts).Msg("truncating delta to max posts")
		newEvents = newEvents[:a.cfg.MaxPosts]
	}

	message := notify.FormatDigest(newEvents)
	if a.cfg.DryRun {
		log.Info().Int("new", len(newEvents)).Msg("dry run: skipping delivery and mark-seen")
		fmt.Println(message)
		return nil
	}

	delivered := a.deliver(ctx, message)

	// Mark-seen is keyed to "selected for this batch", not to delivery
	// success, so a partially failed delivery never spams the recipients
	// that did get the digest.
	ids := make([]string, 0, len(newEvents))
	for _, e := range newEvents {
		ids = append(ids, e.ID)
	}
	if err := a.store.InsertAll(ctx, ids); err != nil {
		return fmt.Errorf("%w: mark seen: %v", ErrStoreUnavailable, err)
	}
	log.Info().Int("sent", len(newEvents)).Msg("run complete")

	if delivered == 0 {
		return ErrAllDeliveriesFailed
	}
	return nil
}

// deliver pushes the digest to each target, isolating per-recipient
// failures, and returns how many deliveries succeeded.
func (a *App) deliver(ctx context.Context, message string) int {
	if a.cfg.Broadcast {
		if err := a.notifier.Broadcast(ctx, message); err != nil {
			log.Error().Err(err).Msg("broadcast failed")
			return 0
		}
		log.Info().Msg("broadcast delivered")
		return 1
	}

	delivered := 0
	for i, to := range a.cfg.Recipients {
		if i > 0 {
			pause(ctx, a.cfg.SendPause)
		}
		if err := a.notifier.Push(ctx, to, message); err != nil {
			log.Error().Err(err).Str("to", to).Msg("push failed")
			continue
		}
		log.Info().Str("to", to).Msg("push delivered")
		delivered++
	}
	return delivered
}

// pause sleeps between pushes without outliving the context.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
