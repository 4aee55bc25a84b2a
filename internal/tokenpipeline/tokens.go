// Package tokenpipeline turns arbitrary page or query text into stemmed,
// stopword-filtered token counts. The same Tokenize function backs both
// indexing (fetcher) and query scoring (querysvc) — sharing one
// implementation is a correctness requirement, not a convenience: an index
// built with one stemmer and queried with another would never match.
package tokenpipeline

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
)

// wordSplit mirrors the original implementation's re.split(r'\W+', text):
// runs of non-word characters separate tokens.
var wordSplit = regexp.MustCompile(`[^0-9A-Za-z_]+`)

// punctuationSplit additionally breaks a token apart on ASCII punctuation.
// After wordSplit the only punctuation a token can still hold is "_", so
// "snake_case" yields both "snake_case" and its pieces "snake" and "case".
var punctuationSplit = regexp.MustCompile(`[!"#$%&'()*+,\-./:;<=>?@\[\\\]^_` + "`" + `{|}~]+`)

// Token is a single stemmed word and how many times it occurred.
type Token struct {
	Name  string
	Count int
}

// TokenContainer is a sum-merge map from stemmed name to Token: adding a
// token whose name already exists increments its count rather than
// replacing it.
type TokenContainer struct {
	tokens map[string]*Token
}

// NewTokenContainer creates an empty container.
func NewTokenContainer() *TokenContainer {
	return &TokenContainer{tokens: make(map[string]*Token)}
}

// Add merges count occurrences of name into the container.
func (tc *TokenContainer) Add(name string, count int) {
	if t, ok := tc.tokens[name]; ok {
		t.Count += count
		return
	}
	tc.tokens[name] = &Token{Name: name, Count: count}
}

// Get returns the count stored for name and whether it is present.
func (tc *TokenContainer) Get(name string) (int, bool) {
	t, ok := tc.tokens[name]
	if !ok {
		return 0, false
	}
	return t.Count, true
}

// Names returns every distinct stemmed token name in the container. Order
// is not meaningful.
func (tc *TokenContainer) Names() []string {
	names := make([]string, 0, len(tc.tokens))
	for name := range tc.tokens {
		names = append(names, name)
	}
	return names
}

// Total returns the sum of all token counts.
func (tc *TokenContainer) Total() int {
	total := 0
	for _, t := range tc.tokens {
		total += t.Count
	}
	return total
}

// Len returns the number of distinct tokens.
func (tc *TokenContainer) Len() int {
	return len(tc.tokens)
}

// Tokenize lowercases, stems, and stopword-filters text into a
// TokenContainer. Text is first split on runs of non-word characters, so
// e.g. "state-of-the-art" yields only its hyphen-separated parts. Any
// remaining token containing ASCII punctuation (only "_" can remain)
// additionally contributes the pieces produced by splitting it on that
// punctuation.
func Tokenize(text string) *TokenContainer {
	raw := wordSplit.Split(text, -1)

	var extra []string
	for _, tok := range raw {
		if containsPunctuation(tok) {
			extra = append(extra, punctuationSplit.Split(tok, -1)...)
		}
	}
	raw = append(raw, extra...)

	out := NewTokenContainer()
	for _, tok := range raw {
		tok = strings.ToLower(tok)
		tok = english.Stem(tok, false)
		if tok == "" || isStopword(tok) {
			continue
		}
		out.Add(tok, 1)
	}
	return out
}

func containsPunctuation(tok string) bool {
	for _, r := range tok {
		if strings.ContainsRune(`!"#$%&'()*+,-./:;<=>?@[\]^_`+"`"+`{|}~`, r) {
			return true
		}
	}
	return false
}
