// Package pagerank computes page importance scores over the crawl store
// (C8), the Go translation of original_source pagerank.py's iterative
// damped-random-walk algorithm. It runs as a background daemon alongside
// the dispatcher, the same "run until the store goes quiet, then a few
// more guaranteed passes" idiom the teacher uses for its crawl-completion
// detection (crawler/crawler.go's CrawlingTimeout-driven stop condition),
// applied here to convergence instead of exhaustion.
package pagerank

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/store"
)

// pageBatchSize is how many pages a single SubdomainsPage call loads when
// PageRankMemoryRows is not set to a positive value.
const pageBatchSize = 100

// Ranker runs PageRank sweeps over a store.Gateway.
type Ranker struct {
	cfg    config.Config
	store  *store.Gateway
	logger *log.Logger
}

// New builds a Ranker.
func New(cfg config.Config, st *store.Gateway) *Ranker {
	return &Ranker{
		cfg:    cfg,
		store:  st,
		logger: log.New(os.Stderr, "pagerank: ", log.LstdFlags),
	}
}

// Sweep performs one full pass over every known page, computing
//
//	rank'(p) = m * sum(occurrences(o,p) * rank(o) / forward_links(o)) + (1-m)/N
//
// for each page p (a page with no inbound edge gets just (1-m)/N), loading
// pages in chunks of PageRankMemoryRows and defaulting an origin's missing
// rank to 1/N and its missing forward-link count to 1 (spec.md §4.8's
// cold-start rule), then committing every shadow rank atomically.
func (r *Ranker) Sweep(ctx context.Context) error {
	n, err := r.store.SubdomainCount()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	m := r.cfg.PageRankMultiplier
	base := (1 - m) / float64(n)
	batchSize := r.cfg.PageRankMemoryRows
	if batchSize <= 0 {
		batchSize = pageBatchSize
	}

	for offset := 0; offset < n; offset += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pages, err := r.store.SubdomainsPage(batchSize, offset)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			break
		}

		for _, p := range pages {
			backlinks, err := r.store.Backlinks(p)
			if err != nil {
				return err
			}

			contribution := 0.0
			for _, bl := range backlinks {
				originRank := 1.0 / float64(n)
				if bl.OriginRank != nil {
					originRank = *bl.OriginRank
				}
				forwardLinks := bl.ForwardLinks
				if forwardLinks == 0 {
					forwardLinks = 1
				}
				contribution += float64(bl.Occurrences) * originRank / float64(forwardLinks)
			}

			rank := base + m*contribution
			if err := r.store.SetTempRank(p, rank); err != nil {
				return err
			}
		}
	}

	return r.store.CommitTempRanks()
}

// RunDaemon runs PageRank sweeps on PageRankInterval ticks until the store
// has gone PageRankItersAfterLastChange sweeps without a write (spec.md
// §4.8's convergence detector, using Gateway.LastChange as the idle
// signal), then performs PageRankFinalCycles unconditional extra sweeps
// before exiting. It is meant to run for the lifetime of one crawl.
func (r *Ranker) RunDaemon(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PageRankInterval())
	defer ticker.Stop()

	passesSinceChange := 0
	var lastSeenChange time.Time

	for passesSinceChange < r.cfg.PageRankItersAfterLastChange {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := r.Sweep(ctx); err != nil {
			r.logger.Printf("sweep failed: %v", err)
			continue
		}

		change := r.store.LastChange()
		if change.After(lastSeenChange) {
			lastSeenChange = change
			passesSinceChange = 0
		} else {
			passesSinceChange++
		}
	}

	r.logger.Printf("crawl appears idle, running %d final sweeps", r.cfg.PageRankFinalCycles)
	for i := 0; i < r.cfg.PageRankFinalCycles; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := r.Sweep(ctx); err != nil {
			r.logger.Printf("final sweep %d failed: %v", i, err)
		}
	}
}
