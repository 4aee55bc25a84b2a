package tokenpipeline

import "testing"

func TestTokenizeLowercasesStemsAndDropsStopwords(t *testing.T) {
	tc := Tokenize("The Running Runners ran and the dogs barked")

	if _, ok := tc.Get("the"); ok {
		t.Errorf("expected stopword %q to be dropped", "the")
	}
	if _, ok := tc.Get("and"); ok {
		t.Errorf("expected stopword %q to be dropped", "and")
	}

	// Porter stemming folds "Running" (after lowercasing) into "run"; the
	// irregular "ran" keeps its own stem. Every stored name is lowercase.
	if _, ok := tc.Get("run"); !ok {
		t.Errorf("expected stem %q from \"Running\", got names %v", "run", tc.Names())
	}
	for _, name := range tc.Names() {
		for _, r := range name {
			if r >= 'A' && r <= 'Z' {
				t.Errorf("token %q is not lowercase", name)
			}
		}
	}
}

func TestTokenizeMergesRepeatedTokensBySum(t *testing.T) {
	tc := Tokenize("apple apple apple pie")
	count, ok := tc.Get("appl")
	if !ok {
		t.Fatalf("expected stemmed token for apple to be present, got names %v", tc.Names())
	}
	if count != 3 {
		t.Errorf("expected count 3 for apple, got %d", count)
	}
}

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	tc := Tokenize("state-of-the-art")
	// The hyphens split the text into its pieces, which contribute tokens
	// (minus stopwords like "of"/"the").
	if _, ok := tc.Get("state"); !ok {
		t.Errorf("expected punctuation-split piece %q, got names %v", "state", tc.Names())
	}
	if _, ok := tc.Get("art"); !ok {
		t.Errorf("expected punctuation-split piece %q, got names %v", "art", tc.Names())
	}
}

func TestTokenizeDropsEmptyTokens(t *testing.T) {
	tc := Tokenize("   ...   ")
	if tc.Len() != 0 {
		t.Errorf("expected no tokens from punctuation-only text, got %v", tc.Names())
	}
}

func TestQueryAndIndexShareTokenization(t *testing.T) {
	indexTokens := Tokenize("Apple Pie recipes")
	queryTokens := Tokenize("apple pie")

	for _, name := range queryTokens.Names() {
		if _, ok := indexTokens.Get(name); !ok {
			t.Errorf("query token %q not found in index tokenization, tokenizer diverged", name)
		}
	}
}
