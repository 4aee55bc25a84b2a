package siteworker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/fetcher"
	"github.com/fernglade/rankcrawl/internal/ratelimit"
	"github.com/fernglade/rankcrawl/internal/store"
	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

type recordingRequeuer struct {
	queued []map[urlmodel.URL]int
}

func (r *recordingRequeuer) QueueLinks(links map[urlmodel.URL]int) {
	r.queued = append(r.queued, links)
}

func hostOf(serverURL string) string {
	return strings.TrimPrefix(strings.TrimPrefix(serverURL, "http://"), "https://")
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>apple pie</p><a href="/next">next</a></body></html>`))
	})
	return httptest.NewTLSServer(mux)
}

func TestWorkerProcessesPageAndRequeuesLinks(t *testing.T) {
	server := testServer(t)
	defer server.Close()
	host := hostOf(server.URL)

	st, err := store.Open(t.TempDir()+"/test.db", true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	cfg.ThreadingTimeoutSeconds = 30
	cfg.SecondsBetweenScrapingOnSameSite = 0
	f := fetcher.New(cfg.UserAgent, cfg.FetchTimeout(), urlmodel.Options{IgnoreFragments: cfg.IgnoreURLFragments})
	limiter := ratelimit.NewLimiter(
		ratelimit.NewWindow(100, time.Second),
		ratelimit.NewWindow(100, time.Second),
	)
	requeuer := &recordingRequeuer{}

	w := New(host, cfg, st, f, limiter, requeuer, nil)
	w.Enqueue(urlmodel.URL{Host: host, Path: "/"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go w.Run(ctx, func() { close(done) })

	// Give the single queued item time to process, then cancel to stop the
	// worker rather than waiting out its idle timeout.
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate in time")
	}

	tokens, err := st.PageTokens(urlmodel.URL{Host: host, Path: "/"})
	if err != nil {
		t.Fatalf("PageTokens: %v", err)
	}
	if _, ok := tokens["appl"]; !ok {
		t.Errorf("expected stemmed 'apple' token to be stored, got %v", tokens)
	}

	if len(requeuer.queued) != 1 {
		t.Fatalf("expected exactly one requeue batch, got %d", len(requeuer.queued))
	}
	next := urlmodel.URL{Host: host, Path: "/next"}
	if requeuer.queued[0][next] != 1 {
		t.Errorf("expected discovered link to %v, got %v", next, requeuer.queued[0])
	}
}

func TestWorkerPolicyGateBlocksDisallowedHost(t *testing.T) {
	server := testServer(t)
	defer server.Close()
	host := hostOf(server.URL)

	st, err := store.Open(t.TempDir()+"/test.db", true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	cfg.BlockedSites = []string{host}
	cfg.ThreadingTimeoutSeconds = 30
	cfg.SecondsBetweenScrapingOnSameSite = 0
	f := fetcher.New(cfg.UserAgent, cfg.FetchTimeout(), urlmodel.Options{})
	limiter := ratelimit.NewLimiter(
		ratelimit.NewWindow(100, time.Second),
		ratelimit.NewWindow(100, time.Second),
	)
	requeuer := &recordingRequeuer{}

	w := New(host, cfg, st, f, limiter, requeuer, nil)
	w.Enqueue(urlmodel.URL{Host: host, Path: "/"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go w.Run(ctx, func() { close(done) })

	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate in time")
	}

	if len(requeuer.queued) != 0 {
		t.Errorf("expected no requeue for blocked host, got %v", requeuer.queued)
	}
}
