// Package querysvc answers search queries against the crawl store (C9),
// the Go translation of original_source search.py's scoring pass. It is
// deliberately thin: the correctness-critical part is that it tokenizes a
// query with the exact same tokenpipeline.Tokenize function the site
// worker uses to index pages, so a stem that was dropped or folded at
// index time is dropped or folded the same way at query time.
package querysvc

import (
	"context"
	"sort"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/store"
	"github.com/fernglade/rankcrawl/internal/tokenpipeline"
	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

// Result is one scored page returned from a search.
type Result struct {
	URL   urlmodel.URL
	Score float64
}

// Service answers searches against a store.Gateway.
type Service struct {
	cfg   config.Config
	store *store.Gateway
}

// New builds a Service.
func New(cfg config.Config, st *store.Gateway) *Service {
	return &Service{cfg: cfg, store: st}
}

// Search tokenizes q, fetches every page indexing at least one resulting
// token, and scores each by
//
//	tr(p) = (sum over t in qt∩p of c_p(t) * c_q(t)) / |qt|
//	score(p) = tr(p) * (1 + (rank(p) - 1) * PageRankStrength)
//
// where c_p(t)/c_q(t) are the page's/query's occurrence counts for token t
// (spec.md §4.9). Results are sorted by descending score and capped at
// ResultsPerSearch.
func (s *Service) Search(ctx context.Context, q string) ([]Result, error) {
	container := tokenpipeline.Tokenize(q)
	queryTokens := container.Names()
	if len(queryTokens) == 0 {
		return nil, nil
	}
	totalQueryTokens := float64(container.Total())

	candidates, err := s.store.QueryCandidates(queryTokens)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tokens, err := s.store.PageTokens(c.URL)
		if err != nil {
			return nil, err
		}

		tr := 0.0
		for _, name := range queryTokens {
			queryCount, _ := container.Get(name)
			tr += float64(tokens[name]) * float64(queryCount)
		}
		if tr == 0 {
			continue
		}
		tr /= totalQueryTokens

		score := tr * (1 + (c.Rank-1)*s.cfg.PageRankStrength)
		results = append(results, Result{URL: c.URL, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if s.cfg.ResultsPerSearch > 0 && len(results) > s.cfg.ResultsPerSearch {
		results = results[:s.cfg.ResultsPerSearch]
	}
	return results, nil
}
