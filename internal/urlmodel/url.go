// Package urlmodel defines the canonical identity of a crawled page: a
// (host, path) pair derived from a raw link string, normalized the same way
// regardless of how many times the same page is linked to.
package urlmodel

import (
	"fmt"
	"net/url"
	"strings"
)

// URL is the canonical identity of a page. It is a comparable value type so
// it can be used directly as a map key (e.g. map[URL]int occurrence
// counts); two URLs compare equal iff their Host and Path match after
// normalization. The zero value is never produced by Parse.
type URL struct {
	Host string
	Path string
}

// Options controls normalization behavior that depends on crawl-wide
// configuration rather than on the URL itself.
type Options struct {
	// IgnoreFragments drops the #fragment portion of a parsed URL when true.
	IgnoreFragments bool
}

// Parse builds a canonical URL from a raw string, optionally resolved
// against a parent URL when raw has no host of its own (a relative link
// found on a page). It returns an error when neither raw nor parent carries
// a usable host — such links are invalid and must be dropped by the caller
// at the ingress of the dispatcher, never propagated further.
func Parse(raw string, parent *URL, opts Options) (URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return URL{}, fmt.Errorf("urlmodel: parsing %q: %w", raw, err)
	}

	host := u.Host
	if host == "" {
		if parent == nil || parent.Host == "" {
			return URL{}, fmt.Errorf("urlmodel: %q has no host and no parent", raw)
		}
		host = parent.Host
	}

	if opts.IgnoreFragments {
		u.Fragment = ""
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		path += "#" + u.Fragment
	}
	if path == "" {
		path = "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}

	return URL{Host: host, Path: path}, nil
}

// MustParse is Parse but panics on error; reserved for tests and literals
// known to be valid at compile time.
func MustParse(raw string) URL {
	u, err := Parse(raw, nil, Options{})
	if err != nil {
		panic(err)
	}
	return u
}

// String renders the canonical https URL.
func (u URL) String() string {
	return fmt.Sprintf("https://%s%s", u.Host, u.Path)
}

// RequestURI returns just the path portion, as passed to robots.txt group
// checks and HTTP request lines.
func (u URL) RequestURI() string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
