package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/eventnotify/internal/fetch"
	"github.com/hyperifyio/eventnotify/internal/seen"
)

const eventsPage = `<!doctype html><html><body>
  <div class="row ttl"><ul>
    <li><a href="/schedule/events/1"><span>11/07(金)</span><br>合同説明会</a></li>
    <li><a href="/schedule/events/2"><span>11/10(月)</span><br>特別セミナー</a></li>
    <li><a href="/schedule/events/3"><span>11/12(水)</span><br>懇親会</a></li>
  </ul></div>
</body></html>`

type stubFetcher struct {
	markup   string
	finalURL string
	err      error
}

func (s *stubFetcher) FetchEvents(context.Context, fetch.Credentials) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte(s.markup), s.finalURL, nil
}

type recordingNotifier struct {
	pushes     []string
	broadcasts []string
	failFor    map[string]bool
}

func (r *recordingNotifier) Push(_ context.Context, to string, text string) error {
	if r.failFor[to] {
		return fmt.Errorf("push to %s: simulated failure", to)
	}
	r.pushes = append(r.pushes, to+": "+text)
	return nil
}

func (r *recordingNotifier) Broadcast(_ context.Context, text string) error {
	r.broadcasts = append(r.broadcasts, text)
	return nil
}

func newTestApp(t *testing.T, cfg Config, f Fetcher, n Notifier) *App {
	t.Helper()
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(t.TempDir(), "seen.db")
	}
	cfg.Defaults()
	cfg.SendPause = 0
	store, err := seen.Open(cfg.StorePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return &App{cfg: cfg, store: store, fetcher: f, notifier: n}
}

func TestRun_FirstPassDeliversSecondPassIsQuiet(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Recipients: []string{"U1"}}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if len(notifier.pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(notifier.pushes))
	}
	n, err := a.store.Count(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 seen records, got %d (err=%v)", n, err)
	}

	// Identical page on the next pass: empty delta, no delivery, no growth.
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if len(notifier.pushes) != 1 {
		t.Fatalf("second run must not deliver, got %d pushes", len(notifier.pushes))
	}
	if n, _ = a.store.Count(context.Background()); n != 3 {
		t.Fatalf("second run must not grow the store, got %d", n)
	}
}

func TestRun_PartialDeliveryFailureStillMarksSeen(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{failFor: map[string]bool{"U1": true}}
	a := newTestApp(t, Config{Recipients: []string{"U1", "U2"}}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}
	if len(notifier.pushes) != 1 {
		t.Fatalf("expected delivery to continue past the failed recipient, got %d", len(notifier.pushes))
	}
	n, _ := a.store.Count(context.Background())
	if n != 3 {
		t.Fatalf("attempted events must be marked seen, got %d", n)
	}
}

func TestRun_AllDeliveriesFailedStillMarksSeenButErrors(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{failFor: map[string]bool{"U1": true, "U2": true}}
	a := newTestApp(t, Config{Recipients: []string{"U1", "U2"}}, fetcher, notifier)

	err := a.Run(context.Background())
	if !errors.Is(err, ErrAllDeliveriesFailed) {
		t.Fatalf("expected ErrAllDeliveriesFailed, got %v", err)
	}
	n, _ := a.store.Count(context.Background())
	if n != 3 {
		t.Fatalf("batch must still be marked seen, got %d", n)
	}
}

func TestRun_FetchFailureIsFatalAndWritesNothing(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("auth rejected")}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Recipients: []string{"U1"}}, fetcher, notifier)

	err := a.Run(context.Background())
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if n, _ := a.store.Count(context.Background()); n != 0 {
		t.Fatalf("fetch failure must not mutate the store, got %d", n)
	}
}

func TestRun_EmptyExtractionEndsCleanly(t *testing.T) {
	fetcher := &stubFetcher{markup: "<html><body><p>維護中</p></body></html>", finalURL: "https://m.example.jp/x"}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Recipients: []string{"U1"}}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("empty extraction is not an error: %v", err)
	}
	if len(notifier.pushes) != 0 {
		t.Fatalf("nothing should be delivered")
	}
	if n, _ := a.store.Count(context.Background()); n != 0 {
		t.Fatalf("store must stay untouched, got %d", n)
	}
}

func TestRun_MaxPostsTruncatesDelta(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Recipients: []string{"U1"}, MaxPosts: 2}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Only the first two (topmost) events are delivered and marked seen.
	n, _ := a.store.Count(context.Background())
	if n != 2 {
		t.Fatalf("expected 2 seen records after truncation, got %d", n)
	}

	// The third event is still new on the next pass.
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if n, _ = a.store.Count(context.Background()); n != 3 {
		t.Fatalf("expected remaining event delivered on next pass, got %d", n)
	}
}

func TestRun_BroadcastMode(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Broadcast: true}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.broadcasts) != 1 || len(notifier.pushes) != 0 {
		t.Fatalf("expected one broadcast, got %+v", notifier)
	}
}

func TestRun_DryRunSkipsDeliveryAndStore(t *testing.T) {
	fetcher := &stubFetcher{markup: eventsPage, finalURL: "https://m.example.jp/schedule/events"}
	notifier := &recordingNotifier{}
	a := newTestApp(t, Config{Recipients: []string{"U1"}, DryRun: true}, fetcher, notifier)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.pushes) != 0 {
		t.Fatalf("dry run must not deliver")
	}
	if n, _ := a.store.Count(context.Background()); n != 0 {
		t.Fatalf("dry run must not mark seen, got %d", n)
	}
}
