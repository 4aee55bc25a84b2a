// Package fetcher acquires bytes for one URL, strips non-content markup,
// and extracts outbound links and indexable text (C5). It is a direct
// descendant of the teacher repository's crawler/fetcher package: the same
// rehttp-retried *http.Client, generalized to also strip <script>/<style>
// and tokenize the remaining text (spec.md §4.5, grounded in
// original_source pagehandler.py's script.decompose()/style.decompose()).
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/rehttp"

	"github.com/fernglade/rankcrawl/internal/tokenpipeline"
	"github.com/fernglade/rankcrawl/internal/urlmodel"
)

// ErrSkip wraps any error that should cause the caller (the site worker) to
// silently move on to the next item rather than treat it as a hard
// failure — network errors and HTTP error statuses per spec.md §4.5/§7.
var ErrSkip = errors.New("fetcher: skip")

// Result is what a successful fetch produces: the outbound links found on
// the page (target URL → occurrence count) and the tokenized visible text.
type Result struct {
	Links  map[urlmodel.URL]int
	Tokens *tokenpipeline.TokenContainer
}

// Fetcher downloads and parses one page at a time.
type Fetcher struct {
	userAgent string
	client    *http.Client
	opts      urlmodel.Options
}

// New creates a Fetcher with the teacher's retry/backoff transport: up to
// 3 retries on temporary errors with exponential jittered backoff.
func New(userAgent string, timeout time.Duration, opts urlmodel.Options) *Fetcher {
	transport := rehttp.NewTransport(
		&http.Transport{
			// urlmodel.Parse forces every target to https regardless of
			// what scheme a page linked with.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		rehttp.RetryAll(rehttp.RetryMaxRetries(3), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(1, 10*time.Second),
	)
	client := &http.Client{Timeout: timeout, Transport: transport}
	return &Fetcher{userAgent: userAgent, client: client, opts: opts}
}

// Fetch downloads the page at u and extracts its links and text. Network
// errors and HTTP statuses of 400 and above are reported as ErrSkip per spec.md §4.5's
// "no retry at this layer" failure mode for fetch-time faults (retries
// already happened, transparently, inside the transport).
func (f *Fetcher) Fetch(ctx context.Context, u urlmodel.URL) (Result, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, 0, fmt.Errorf("%w: building request for %s: %v", ErrSkip, u, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, elapsed, fmt.Errorf("%w: fetching %s: %v", ErrSkip, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, elapsed, fmt.Errorf("%w: fetching %s: status %s", ErrSkip, u, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{}, elapsed, fmt.Errorf("%w: parsing %s: %v", ErrSkip, u, err)
	}

	doc.Find("script,style").Remove()

	links := extractLinks(doc, u, f.opts)
	text := doc.Text()
	tokens := tokenpipeline.Tokenize(text)

	return Result{Links: links, Tokens: tokens}, elapsed, nil
}

// RobotsTxtURL returns the well-known robots.txt location for a host.
func RobotsTxtURL(host string) urlmodel.URL {
	return urlmodel.URL{Host: host, Path: "/robots.txt"}
}

// FetchRaw downloads a URL without parsing, used to retrieve robots.txt.
func (f *Fetcher) FetchRaw(ctx context.Context, u urlmodel.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	return f.client.Do(req)
}
