package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	g, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestUpsertPageAndNeedsCheck(t *testing.T) {
	g := openTestGateway(t)
	u := urlmodel.MustParse("https://a.test/")

	needs, err := g.NeedsCheck(u)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Errorf("expected unseen page to need checking")
	}

	if err := g.UpsertPage(u, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	needs, err = g.NeedsCheck(u)
	if err != nil {
		t.Fatal(err)
	}
	if needs {
		t.Errorf("expected freshly-checked page to not need checking")
	}
}

func TestReplaceLinksIsExactSet(t *testing.T) {
	g := openTestGateway(t)
	origin := urlmodel.MustParse("https://a.test/")
	if err := g.UpsertPage(origin, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	p1 := urlmodel.MustParse("https://a.test/p1")
	p2 := urlmodel.MustParse("https://a.test/p2")

	if err := g.ReplaceLinks(origin, map[urlmodel.URL]int{p1: 1, p2: 2}); err != nil {
		t.Fatal(err)
	}

	bl, err := g.Backlinks(p1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0].Occurrences != 1 {
		t.Fatalf("expected one backlink with occurrence 1, got %+v", bl)
	}

	// Replace again with only p2 — p1's edge must disappear (delete-not-in).
	if err := g.ReplaceLinks(origin, map[urlmodel.URL]int{p2: 5}); err != nil {
		t.Fatal(err)
	}

	bl, err = g.Backlinks(p1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 0 {
		t.Errorf("expected p1's backlink to be gone, got %+v", bl)
	}

	bl, err = g.Backlinks(p2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0].Occurrences != 5 {
		t.Fatalf("expected updated occurrence 5, got %+v", bl)
	}
}

func TestReplaceTokensDeleteNotIn(t *testing.T) {
	g := openTestGateway(t)
	p := urlmodel.MustParse("https://a.test/")
	if err := g.UpsertPage(p, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := g.ReplaceTokens(p, map[string]int{"appl": 4, "pie": 1}); err != nil {
		t.Fatal(err)
	}
	toks, err := g.PageTokens(p)
	if err != nil {
		t.Fatal(err)
	}
	if toks["appl"] != 4 || toks["pie"] != 1 {
		t.Fatalf("unexpected tokens: %v", toks)
	}

	if err := g.ReplaceTokens(p, map[string]int{"appl": 1}); err != nil {
		t.Fatal(err)
	}
	toks, err = g.PageTokens(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := toks["pie"]; ok {
		t.Errorf("expected 'pie' posting removed, got %v", toks)
	}
	if toks["appl"] != 1 {
		t.Errorf("expected updated 'appl' count 1, got %v", toks)
	}
}

func TestQueryCandidates(t *testing.T) {
	g := openTestGateway(t)
	p1 := urlmodel.MustParse("https://a.test/p1")
	p2 := urlmodel.MustParse("https://a.test/p2")
	for _, p := range []urlmodel.URL{p1, p2} {
		if err := g.UpsertPage(p, time.Now().Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.ReplaceTokens(p1, map[string]int{"appl": 4, "pie": 1}); err != nil {
		t.Fatal(err)
	}
	if err := g.ReplaceTokens(p2, map[string]int{"appl": 1}); err != nil {
		t.Fatal(err)
	}

	candidates, err := g.QueryCandidates([]string{"appl", "pie"})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", candidates)
	}
}

func TestOldLinks(t *testing.T) {
	g := openTestGateway(t)
	fresh := urlmodel.MustParse("https://a.test/fresh")
	stale := urlmodel.MustParse("https://a.test/stale")

	if err := g.UpsertPage(fresh, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := g.UpsertPage(stale, time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	old, err := g.OldLinks(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 1 || old[0] != stale {
		t.Fatalf("expected only stale page, got %+v", old)
	}
}
