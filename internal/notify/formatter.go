package notify

import (
	"strings"

	"github.com/hyperifyio/eventnotify/internal/scrape"
)

// FormatEvent renders one event as the notification block: a headline with
// the title, then the date and link lines when present.
func FormatEvent(e scrape.Event) string {
	lines := []string{"【学舎イベント新着】" + e.Title}
	if e.Date != "" {
		lines = append(lines, "日付: "+e.Date)
	}
	if e.Link != "" {
		lines = append(lines, e.Link)
	}
	return strings.Join(lines, "\n")
}

// FormatDigest joins the per-event blocks into one message, preserving the
// given order.
func FormatDigest(events []scrape.Event) string {
	blocks := make([]string, 0, len(events))
	for _, e := range events {
		blocks = append(blocks, FormatEvent(e))
	}
	return strings.Join(blocks, "\n\n")
}
