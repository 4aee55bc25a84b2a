// Package siteworker implements the per-host fetch loop (C6): one goroutine
// per live domain that pulls URLs from its queue, applies the policy gate,
// fetches and stores a page, then hands discovered links back to the
// dispatcher. It is the Go translation of original_source sitehandler.py's
// SiteHandler, cast in the teacher repository's channel-and-goroutine
// concurrency idiom (crawler/crawler.go's per-URL goroutines, generalized
// here to one long-lived goroutine per host instead of one per fetch).
package siteworker

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/events"
	"github.com/fernglade/rankcrawl/internal/fetcher"
	"github.com/fernglade/rankcrawl/internal/ratelimit"
	"github.com/fernglade/rankcrawl/internal/recentcache"
	"github.com/fernglade/rankcrawl/internal/store"
	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

// State is one of the site worker's lifecycle states (spec.md §4.6's table).
type State int

const (
	Starting State = iota
	Ready
	Working
	Retired
	Dead
)

// Discovered is the set of links found while processing one page, handed
// back to whatever owns requeueing (the Dispatcher) once a fetch completes.
type Discovered struct {
	Origin urlmodel.URL
	Links  map[urlmodel.URL]int
}

// Requeuer is implemented by whatever should receive newly discovered links
// for scheduling — normally the Dispatcher, decoupled here as an interface
// so the worker package does not import dispatcher (which in turn owns
// workers).
type Requeuer interface {
	QueueLinks(links map[urlmodel.URL]int)
}

// Worker runs the fetch loop for a single host.
type Worker struct {
	host     string
	cfg      config.Config
	store    *store.Gateway
	fetcher  *fetcher.Fetcher
	limiter  *ratelimit.Limiter
	requeuer Requeuer
	events   *events.Publisher
	recent   *recentcache.Cache
	logger   *log.Logger

	queue chan urlmodel.URL

	state State
}

// New constructs a worker for host; it does not start running until Run is
// called. The caller is responsible for registering it with a dispatcher
// before items start arriving on its queue. publisher may be nil, in which
// case page-processed events are not published.
func New(host string, cfg config.Config, st *store.Gateway, f *fetcher.Fetcher, limiter *ratelimit.Limiter, requeuer Requeuer, publisher *events.Publisher) *Worker {
	return &Worker{
		host:     host,
		cfg:      cfg,
		store:    st,
		fetcher:  f,
		limiter:  limiter,
		requeuer: requeuer,
		events:   publisher,
		recent:   recentcache.New(),
		logger:   log.New(os.Stderr, "siteworker["+host+"]: ", log.LstdFlags),
		queue:    make(chan urlmodel.URL, 64),
		state:    Starting,
	}
}

// Enqueue adds a URL to this worker's private queue.
func (w *Worker) Enqueue(u urlmodel.URL) {
	w.queue <- u
}

// State reports the worker's current lifecycle state.
func (w *Worker) State() State {
	return w.state
}

// Run executes the state machine of spec.md §4.6 until the worker retires
// (idle past ThreadingTimeout), its robots.txt is unparseable (Dead), or
// ctx is cancelled. onTerminate is called exactly once when the loop exits
// so the caller (the dispatcher) can unregister the host.
func (w *Worker) Run(ctx context.Context, onTerminate func()) {
	defer onTerminate()

	group, ok := w.fetchRobots(ctx)
	if !ok {
		w.state = Dead
		w.logger.Printf("robots.txt unparseable, retiring")
		return
	}
	w.state = Ready
	if group != nil {
		w.applyRobotsRate(group)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-w.queue:
			w.state = Working
			w.process(ctx, u, group)
			w.state = Ready
			time.Sleep(w.cfg.SecondsBetweenScrapingOnSameSiteDuration())
		case <-time.After(w.cfg.ThreadingTimeout()):
			w.state = Retired
			w.logger.Printf("idle timeout, retiring")
			return
		}
	}
}

// applyRobotsRate overrides this host's rate-limit window with the
// robots.txt Request-rate (or, failing that, Crawl-delay) directive when the
// host publishes one, per spec.md §4.4: "Host parameters default to
// configured values but are overridden by the host's robots.txt
// Request-rate directive when present."
func (w *Worker) applyRobotsRate(group *robotstxt.Group) {
	if group.RequestRate != nil && group.RequestRate.Requests > 0 {
		w.limiter.HostWindow().SetParams(group.RequestRate.Requests, time.Duration(group.RequestRate.Seconds)*time.Second)
		return
	}
	if group.CrawlDelay > 0 {
		w.limiter.HostWindow().SetParams(1, group.CrawlDelay)
	}
}

func (w *Worker) fetchRobots(ctx context.Context) (*robotstxt.Group, bool) {
	resp, err := w.fetcher.FetchRaw(ctx, fetcher.RobotsTxtURL(w.host))
	if err != nil {
		w.logger.Printf("no robots.txt found for %s: %v", w.host, err)
		return nil, true
	}
	defer resp.Body.Close()
	if resp.StatusCode == 404 {
		return nil, true
	}
	body, err := robotstxt.FromResponse(resp)
	if err != nil {
		w.logger.Printf("robots.txt unparseable for %s: %v", w.host, err)
		return nil, false
	}
	return body.FindGroup(w.cfg.UserAgent), true
}

// process runs the policy gate, fetch, and store-write sequence for one
// URL, matching spec.md §4.6's total order: upsert_page → replace_tokens →
// replace_links → queue new links.
func (w *Worker) process(ctx context.Context, u urlmodel.URL, group *robotstxt.Group) {
	if !w.allowed(u, group) {
		w.logger.Printf("dropped %s: policy gate", u)
		return
	}

	if !w.cfg.AllowDuplicatesDespiteTiming && w.recent.Seen("pages", u.Path) {
		return
	}

	recently, err := w.store.RecentlyChecked(u, w.cfg.AllowDuplicatesDespiteTiming)
	if err != nil {
		w.logger.Printf("store error checking %s: %v", u, err)
		return
	}
	if recently {
		w.recent.Mark("pages", u.Path)
		return
	}

	if err := w.limiter.Acquire(ctx); err != nil {
		w.logger.Printf("rate limiter: %v", err)
		return
	}

	res, _, err := w.fetcher.Fetch(ctx, u)
	if err != nil {
		w.logger.Printf("skipping %s: %v", u, err)
		return
	}

	nextCheckAt := time.Now().AddDate(0, 0, w.cfg.DaysTillNextPageCheck)
	if err := w.store.UpsertPage(u, nextCheckAt); err != nil {
		w.logger.Printf("store error upserting %s: %v", u, err)
		return
	}
	w.recent.Mark("pages", u.Path)

	tokenCounts := make(map[string]int, res.Tokens.Len())
	for _, name := range res.Tokens.Names() {
		n, _ := res.Tokens.Get(name)
		tokenCounts[name] = n
	}
	if err := w.store.ReplaceTokens(u, tokenCounts); err != nil {
		w.logger.Printf("store error replacing tokens for %s: %v", u, err)
		return
	}

	if err := w.store.ReplaceLinks(u, res.Links); err != nil {
		w.logger.Printf("store error replacing links for %s: %v", u, err)
		return
	}

	if w.requeuer != nil && len(res.Links) > 0 {
		w.requeuer.QueueLinks(res.Links)
	}

	w.events.Publish(events.PageProcessed{
		URL:        u.String(),
		LinksFound: len(res.Links),
		Tokens:     res.Tokens.Len(),
	})
}

// allowed implements spec.md §4.6's three-step policy gate: blocked sites,
// allowed-sites limiting, then robots.txt.
func (w *Worker) allowed(u urlmodel.URL, group *robotstxt.Group) bool {
	if !w.cfg.IsAllowed(u.Host) {
		return false
	}
	if group != nil {
		return group.Test(u.RequestURI())
	}
	return true
}
