// Package store is the gateway (C3) that serializes every access to the
// relational store behind one owning goroutine, the Go translation of the
// original implementation's single sqlite connection plus command queue
// (webstorage.py's Database.handle_queries). Callers never touch *sql.DB
// directly; every read and write is a method call on *Gateway that is
// internally turned into a request posted to the serializer and answered
// on a private reply channel, preserving per-caller program order and
// avoiding lock contention on the single underlying connection.
package store

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"database/sql"

	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

//go:embed schema.sql
var schemaSQL string

// Gateway owns the single SQLite connection backing the crawl store. All
// methods are safe for concurrent use by any number of callers — requests
// are funneled through one serializer goroutine.
type Gateway struct {
	db     *sql.DB
	logger *log.Logger

	reqCh chan request

	mu         sync.Mutex
	lastChange time.Time
}

type request struct {
	fn    func(*sql.DB) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

// Open connects to (or creates) a SQLite database at path, applies the
// embedded schema if the file is new, and resets the schema when its hash
// no longer matches what was last recorded — the only automatic
// destructive action this package takes (spec.md §4.3, §7), gated on
// autoReset.
func Open(path string, autoReset bool) (*Gateway, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	g := &Gateway{
		db:     db,
		logger: log.New(os.Stderr, "store: ", log.LstdFlags),
		reqCh:  make(chan request, 64),
	}
	go g.serve()

	if isNew {
		if err := g.resetSchema(); err != nil {
			return nil, err
		}
		return g, nil
	}

	if autoReset {
		if err := g.checkSchemaHash(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Close stops the serializer and closes the underlying connection.
func (g *Gateway) Close() error {
	close(g.reqCh)
	return g.db.Close()
}

func (g *Gateway) serve() {
	for req := range g.reqCh {
		v, err := req.fn(g.db)
		req.reply <- result{val: v, err: err}
	}
}

// call posts fn to the serializer and blocks for its result, honoring the
// single-writer FIFO contract described in spec.md §4.3/§5.
func (g *Gateway) call(fn func(*sql.DB) (any, error)) (any, error) {
	reply := make(chan result, 1)
	g.reqCh <- request{fn: fn, reply: reply}
	r := <-reply
	return r.val, r.err
}

func (g *Gateway) touch() {
	g.mu.Lock()
	g.lastChange = time.Now()
	g.mu.Unlock()
}

// LastChange reports the last time a write landed, used by the PageRank
// daemon to detect that the crawler has gone idle (spec.md §4.8).
func (g *Gateway) LastChange() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastChange
}

func schemaHash() string {
	sum := sha256.Sum256([]byte(schemaSQL))
	return hex.EncodeToString(sum[:])
}

func (g *Gateway) resetSchema() error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		if _, err := db.Exec(`
			DROP TABLE IF EXISTS pages;
			DROP TABLE IF EXISTS edges;
			DROP TABLE IF EXISTS postings;
			DROP TABLE IF EXISTS schema_hash;
		`); err != nil {
			return nil, fmt.Errorf("store: dropping tables: %w", err)
		}
		if _, err := db.Exec(schemaSQL); err != nil {
			return nil, fmt.Errorf("store: applying schema: %w", err)
		}
		if _, err := db.Exec(`DELETE FROM schema_hash`); err != nil {
			return nil, fmt.Errorf("store: clearing schema_hash: %w", err)
		}
		if _, err := db.Exec(`INSERT INTO schema_hash (hash) VALUES (?)`, schemaHash()); err != nil {
			return nil, fmt.Errorf("store: recording schema_hash: %w", err)
		}
		return nil, nil
	})
	return err
}

func (g *Gateway) checkSchemaHash() error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		var stored string
		err := db.QueryRow(`SELECT hash FROM schema_hash LIMIT 1`).Scan(&stored)
		if err != nil {
			return nil, err
		}
		if stored != schemaHash() {
			return nil, fmt.Errorf("schema hash mismatch")
		}
		return nil, nil
	})
	if err != nil {
		g.logger.Printf("schema hash check failed (%v), resetting database", err)
		return g.resetSchema()
	}
	return nil
}

// UpsertPage inserts or refreshes a page row with a future next_check_at,
// per spec.md's "after a successful fetch, next_check_at = now +
// DAYS_TILL_NEXT_PAGE_CHECK".
func (g *Gateway) UpsertPage(u urlmodel.URL, nextCheckAt time.Time) error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		_, err := db.Exec(`
			INSERT INTO pages (host, path, next_check_at, forward_links)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(host, path) DO UPDATE SET next_check_at = excluded.next_check_at
		`, u.Host, u.Path, nextCheckAt)
		return nil, err
	})
	if err == nil {
		g.touch()
	}
	return err
}

// ReplaceLinks atomically replaces every outgoing edge for origin with
// targets, by first deleting edges whose target is no longer present, then
// upserting the new set (spec.md §4.3/§8's delete-not-in contract).
func (g *Gateway) ReplaceLinks(origin urlmodel.URL, targets map[urlmodel.URL]int) error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		tx, err := db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.Query(`SELECT target_host, target_path FROM edges WHERE origin_host = ? AND origin_path = ?`, origin.Host, origin.Path)
		if err != nil {
			return nil, err
		}
		var existing []urlmodel.URL
		for rows.Next() {
			var h, p string
			if err := rows.Scan(&h, &p); err != nil {
				rows.Close()
				return nil, err
			}
			existing = append(existing, urlmodel.URL{Host: h, Path: p})
		}
		rows.Close()

		for _, old := range existing {
			if _, ok := targets[old]; !ok {
				if _, err := tx.Exec(`DELETE FROM edges WHERE origin_host=? AND origin_path=? AND target_host=? AND target_path=?`,
					origin.Host, origin.Path, old.Host, old.Path); err != nil {
					return nil, err
				}
			}
		}

		for target, occurrences := range targets {
			if _, err := tx.Exec(`
				INSERT INTO edges (origin_host, origin_path, target_host, target_path, occurrences)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(origin_host, origin_path, target_host, target_path)
				DO UPDATE SET occurrences = excluded.occurrences
			`, origin.Host, origin.Path, target.Host, target.Path, occurrences); err != nil {
				return nil, err
			}
		}

		if _, err := tx.Exec(`
			UPDATE pages SET forward_links = ? WHERE host = ? AND path = ?
		`, len(targets), origin.Host, origin.Path); err != nil {
			return nil, err
		}

		return nil, tx.Commit()
	})
	if err == nil {
		g.touch()
	}
	return err
}

// ReplaceTokens atomically replaces the postings for a page, mirroring
// ReplaceLinks' delete-not-in semantics.
func (g *Gateway) ReplaceTokens(page urlmodel.URL, tokens map[string]int) error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		tx, err := db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.Query(`SELECT token FROM postings WHERE host = ? AND path = ?`, page.Host, page.Path)
		if err != nil {
			return nil, err
		}
		var existing []string
		for rows.Next() {
			var tok string
			if err := rows.Scan(&tok); err != nil {
				rows.Close()
				return nil, err
			}
			existing = append(existing, tok)
		}
		rows.Close()

		for _, tok := range existing {
			if _, ok := tokens[tok]; !ok {
				if _, err := tx.Exec(`DELETE FROM postings WHERE host=? AND path=? AND token=?`, page.Host, page.Path, tok); err != nil {
					return nil, err
				}
			}
		}

		for tok, count := range tokens {
			if _, err := tx.Exec(`
				INSERT INTO postings (host, path, token, occurrences)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(host, path, token) DO UPDATE SET occurrences = excluded.occurrences
			`, page.Host, page.Path, tok, count); err != nil {
				return nil, err
			}
		}

		return nil, tx.Commit()
	})
	if err == nil {
		g.touch()
	}
	return err
}

// NeedsCheck reports whether a page is past its next_check_at, or has never
// been seen at all (spec.md's Page record invariant).
func (g *Gateway) NeedsCheck(u urlmodel.URL) (bool, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		var count int
		var nextCheckAt time.Time
		err := db.QueryRow(`SELECT 1, next_check_at FROM pages WHERE host=? AND path=?`, u.Host, u.Path).Scan(&count, &nextCheckAt)
		if err == sql.ErrNoRows {
			return true, nil
		}
		if err != nil {
			return nil, err
		}
		return !time.Now().Before(nextCheckAt), nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// RecentlyChecked is the site worker's authoritative dedupe check — the
// inverse of NeedsCheck, short-circuited to false when
// ALLOW_DUPLICATES_DESPITE_TIMING is set (spec.md §4.3).
func (g *Gateway) RecentlyChecked(u urlmodel.URL, allowDuplicates bool) (bool, error) {
	if allowDuplicates {
		return false, nil
	}
	needs, err := g.NeedsCheck(u)
	if err != nil {
		return false, err
	}
	return !needs, nil
}

// OldLinks returns up to limit pages past their next_check_at, for the
// dispatcher's refresh daemon.
func (g *Gateway) OldLinks(limit int) ([]urlmodel.URL, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		rows, err := db.Query(`SELECT host, path FROM pages WHERE next_check_at <= ? LIMIT ?`, time.Now(), limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []urlmodel.URL
		for rows.Next() {
			var h, p string
			if err := rows.Scan(&h, &p); err != nil {
				return nil, err
			}
			out = append(out, urlmodel.URL{Host: h, Path: p})
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return v.([]urlmodel.URL), nil
}

// SubdomainsPage returns up to limit pages starting at offset, used by
// PageRank to iterate the table without loading it whole (spec.md §4.8).
func (g *Gateway) SubdomainsPage(limit, offset int) ([]urlmodel.URL, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		rows, err := db.Query(`SELECT host, path FROM pages ORDER BY host, path LIMIT ? OFFSET ?`, limit, offset)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []urlmodel.URL
		for rows.Next() {
			var h, p string
			if err := rows.Scan(&h, &p); err != nil {
				return nil, err
			}
			out = append(out, urlmodel.URL{Host: h, Path: p})
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return v.([]urlmodel.URL), nil
}

// SubdomainCount returns the current number of known pages (PageRank's N).
func (g *Gateway) SubdomainCount() (int, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Backlink is one edge feeding into PageRank's rank'(p) formula (spec.md
// §4.8): the origin's current rank (possibly unset), its forward-link
// count, and the edge's occurrence weight.
type Backlink struct {
	OriginRank   *float64
	ForwardLinks int
	Occurrences  int
}

// Backlinks returns every edge whose target is p, joined against the
// origin page's current rank and forward-link count.
func (g *Gateway) Backlinks(p urlmodel.URL) ([]Backlink, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		rows, err := db.Query(`
			SELECT pages.rank, pages.forward_links, edges.occurrences
			FROM edges
			JOIN pages ON pages.host = edges.origin_host AND pages.path = edges.origin_path
			WHERE edges.target_host = ? AND edges.target_path = ?
		`, p.Host, p.Path)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []Backlink
		for rows.Next() {
			var rank sql.NullFloat64
			var fwd, occ int
			if err := rows.Scan(&rank, &fwd, &occ); err != nil {
				return nil, err
			}
			bl := Backlink{ForwardLinks: fwd, Occurrences: occ}
			if rank.Valid {
				v := rank.Float64
				bl.OriginRank = &v
			}
			out = append(out, bl)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return v.([]Backlink), nil
}

// SetTempRank writes to the shadow rank column for one page.
func (g *Gateway) SetTempRank(p urlmodel.URL, value float64) error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		_, err := db.Exec(`UPDATE pages SET temp_rank = ? WHERE host = ? AND path = ?`, value, p.Host, p.Path)
		return nil, err
	})
	return err
}

// CommitTempRanks atomically promotes every page's shadow rank to its live
// rank, completing one PageRank sweep (spec.md §4.8).
func (g *Gateway) CommitTempRanks() error {
	_, err := g.call(func(db *sql.DB) (any, error) {
		_, err := db.Exec(`UPDATE pages SET rank = temp_rank WHERE temp_rank IS NOT NULL`)
		return nil, err
	})
	return err
}

// CandidateResult is one page returned by QueryCandidates: its identity and
// current rank (defaulted to 0 if the page has never been ranked).
type CandidateResult struct {
	URL  urlmodel.URL
	Rank float64
}

// QueryCandidates returns every page indexing at least one of tokens.
func (g *Gateway) QueryCandidates(tokens []string) ([]CandidateResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	v, err := g.call(func(db *sql.DB) (any, error) {
		placeholders := make([]string, len(tokens))
		args := make([]any, len(tokens))
		for i, t := range tokens {
			placeholders[i] = "?"
			args[i] = t
		}
		query := fmt.Sprintf(`
			SELECT DISTINCT pages.host, pages.path, COALESCE(pages.rank, 0)
			FROM postings
			JOIN pages ON pages.host = postings.host AND pages.path = postings.path
			WHERE postings.token IN (%s)
		`, joinPlaceholders(placeholders))
		rows, err := db.Query(query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []CandidateResult
		for rows.Next() {
			var h, p string
			var rank float64
			if err := rows.Scan(&h, &p, &rank); err != nil {
				return nil, err
			}
			out = append(out, CandidateResult{URL: urlmodel.URL{Host: h, Path: p}, Rank: rank})
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return v.([]CandidateResult), nil
}

// Rank returns a page's current committed rank, or 0 if it has never been
// ranked.
func (g *Gateway) Rank(p urlmodel.URL) (float64, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		var rank float64
		err := db.QueryRow(`SELECT COALESCE(rank, 0) FROM pages WHERE host = ? AND path = ?`, p.Host, p.Path).Scan(&rank)
		if err == sql.ErrNoRows {
			return 0.0, nil
		}
		return rank, err
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// PageTokens returns the token→count postings for a single page.
func (g *Gateway) PageTokens(p urlmodel.URL) (map[string]int, error) {
	v, err := g.call(func(db *sql.DB) (any, error) {
		rows, err := db.Query(`SELECT token, occurrences FROM postings WHERE host = ? AND path = ?`, p.Host, p.Path)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		out := make(map[string]int)
		for rows.Next() {
			var tok string
			var count int
			if err := rows.Scan(&tok, &count); err != nil {
				return nil, err
			}
			out[tok] = count
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

func joinPlaceholders(ps []string) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
