// Package dedup assigns stable content-derived identifiers to extracted
// events and filters out the ones a previous run already delivered.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hyperifyio/eventnotify/internal/scrape"
)

// Store is the read side of the seen-store needed for filtering.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Identify derives the event's identifier from its title, date and link.
// Absent fields contribute empty strings, so identical triples always hash
// identically across runs and process restarts. Any change to one of the
// three fields yields a new identifier and the event is re-notified as new.
func Identify(e scrape.Event) string {
	basis := e.Title + "|" + e.Date + "|" + e.Link
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// FilterNew returns the events not yet present in the store, in the input
// order, each with its identifier attached. The input order is the page's
// own listing order and determines notification and truncation order
// downstream, so it is never re-sorted.
func FilterNew(ctx context.Context, store Store, events []scrape.Event) ([]scrape.Event, error) {
	out := make([]scrape.Event, 0, len(events))
	for _, e := range events {
		id := Identify(e)
		seen, err := store.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check seen %s: %w", id, err)
		}
		if seen {
			continue
		}
		e.ID = id
		out = append(out, e)
	}
	return out, nil
}
