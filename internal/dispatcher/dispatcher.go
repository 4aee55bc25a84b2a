// Package dispatcher owns the registry of live per-host site workers and
// routes discovered links to them, the Go translation of original_source
// threadmanager.py's QueueContainer. Where the teacher's WebCrawler
// (crawler/crawler.go) spawns one goroutine per fetch guarded by a
// semaphore, the Dispatcher instead keeps one long-lived goroutine per
// host and grows/shrinks that set as hosts go active or idle (spec.md
// §4.7).
package dispatcher

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/events"
	"github.com/fernglade/rankcrawl/internal/fetcher"
	"github.com/fernglade/rankcrawl/internal/ratelimit"
	"github.com/fernglade/rankcrawl/internal/siteworker"
	"github.com/fernglade/rankcrawl/internal/store"
	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

// Dispatcher keeps a mutex-guarded map of host -> worker and is the only
// place in the program that may create a siteworker.Worker.
type Dispatcher struct {
	cfg     config.Config
	store   *store.Gateway
	global  *ratelimit.Window
	events  *events.Publisher
	logger  *log.Logger

	mu      sync.Mutex
	workers map[string]*siteworker.Worker

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Dispatcher. The global rate limit window is shared by every
// host's Limiter, while each host gets its own private window — the two
// tiers of spec.md §4.4. publisher may be nil to disable the page-processed
// event fan-out.
func New(cfg config.Config, st *store.Gateway, publisher *events.Publisher) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		store:   st,
		global:  ratelimit.NewWindow(cfg.GlobalRequestsInInterval, cfg.GlobalRequestInterval()),
		events:  publisher,
		logger:  log.New(os.Stderr, "dispatcher: ", log.LstdFlags),
		workers: make(map[string]*siteworker.Worker),
	}
}

// Start launches the refresh daemon (spec.md §4.7's DaemonWaitTime ticker
// scanning for pages past next_check_at) and seeds the configured starting
// sites. It returns immediately; background goroutines run until ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)

	seed := make(map[urlmodel.URL]int, len(d.cfg.ScrapingSites))
	for _, raw := range d.cfg.ScrapingSites {
		u, err := urlmodel.Parse(raw, nil, urlmodel.Options{IgnoreFragments: d.cfg.IgnoreURLFragments})
		if err != nil {
			d.logger.Printf("skipping unparseable seed %q: %v", raw, err)
			continue
		}
		seed[u] = 1
	}
	if len(seed) > 0 {
		d.QueueLinks(seed)
	}

	go d.refreshDaemon()
}

// Stop cancels every running worker.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) refreshDaemon() {
	ticker := time.NewTicker(d.cfg.DaemonWaitTime())
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			stale, err := d.store.OldLinks(d.cfg.PageRankMemoryRows)
			if err != nil {
				d.logger.Printf("refresh daemon: %v", err)
				continue
			}
			links := make(map[urlmodel.URL]int, len(stale))
			for _, u := range stale {
				links[u] = 1
			}
			d.QueueLinks(links)
		}
	}
}

// QueueLinks routes each discovered link to its host's worker, creating the
// worker if this is the first link seen for that host, and dropping links
// whose target page does not need another check (spec.md §4.3/§4.7). It
// satisfies siteworker.Requeuer.
func (d *Dispatcher) QueueLinks(links map[urlmodel.URL]int) {
	for u := range links {
		needs, err := d.store.NeedsCheck(u)
		if err != nil {
			d.logger.Printf("NeedsCheck(%s): %v", u, err)
			continue
		}
		if !needs {
			continue
		}
		w := d.workerFor(u.Host)
		w.Enqueue(u)
	}
}

// workerFor returns the worker for host, creating and starting it under
// the registry lock if this is the first time host has been seen. A
// concurrent create-for-the-same-host from two callers is not an error
// (spec.md §9): the second caller simply observes the first's worker.
func (d *Dispatcher) workerFor(host string) *siteworker.Worker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.workers[host]; ok {
		return w
	}

	hostWindow := ratelimit.NewWindow(d.cfg.SiteRequestsInInterval, d.cfg.SiteRequestInterval())
	limiter := ratelimit.NewLimiter(hostWindow, d.global)
	f := fetcher.New(d.cfg.UserAgent, d.cfg.FetchTimeout(), urlmodel.Options{IgnoreFragments: d.cfg.IgnoreURLFragments})
	w := siteworker.New(host, d.cfg, d.store, f, limiter, d, d.events)

	d.workers[host] = w
	go w.Run(d.ctx, func() { d.retire(host) })
	return w
}

// retire removes a terminated worker from the registry so a future link to
// the same host spawns a fresh one.
func (d *Dispatcher) retire(host string) {
	d.mu.Lock()
	delete(d.workers, host)
	d.mu.Unlock()
}

// ActiveHosts reports the hosts with a live worker, mostly useful for
// diagnostics and tests.
func (d *Dispatcher) ActiveHosts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	hosts := make([]string, 0, len(d.workers))
	for h := range d.workers {
		hosts = append(hosts, h)
	}
	return hosts
}
