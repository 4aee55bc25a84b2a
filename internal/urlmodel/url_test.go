package urlmodel

import "testing"

func TestParseCanonicalForm(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		parent   *URL
		opts     Options
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "absolute url forces https and keeps path",
			raw:      "http://example.com/foo/bar",
			wantHost: "example.com",
			wantPath: "/foo/bar",
		},
		{
			name:     "empty path normalizes to slash",
			raw:      "https://example.com",
			wantHost: "example.com",
			wantPath: "/",
		},
		{
			name:     "relative link inherits parent host",
			raw:      "/foo/bar",
			parent:   &URL{Host: "example.com", Path: "/"},
			wantHost: "example.com",
			wantPath: "/foo/bar",
		},
		{
			name:     "relative link without leading slash is normalized",
			raw:      "foo/bar",
			parent:   &URL{Host: "example.com", Path: "/"},
			wantHost: "example.com",
			wantPath: "/foo/bar",
		},
		{
			name:    "no host and no parent is an error",
			raw:     "/foo/bar",
			wantErr: true,
		},
		{
			name:     "fragment dropped when configured",
			raw:      "https://example.com/foo#section",
			opts:     Options{IgnoreFragments: true},
			wantHost: "example.com",
			wantPath: "/foo",
		},
		{
			name:     "fragment kept when not configured",
			raw:      "https://example.com/foo#section",
			wantHost: "example.com",
			wantPath: "/foo#section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, tt.parent, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.raw, err)
			}
			if got.Host != tt.wantHost || got.Path != tt.wantPath {
				t.Errorf("Parse(%q) = %+v, want {%s %s}", tt.raw, got, tt.wantHost, tt.wantPath)
			}
		})
	}
}

func TestURLEqualityIsCanonical(t *testing.T) {
	a, err := Parse("http://example.com/foo", nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("https://example.com/foo", nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected %+v == %+v", a, b)
	}
}

func TestURLAsMapKey(t *testing.T) {
	counts := map[URL]int{}
	u := MustParse("https://example.com/foo")
	counts[u]++
	counts[u]++
	if counts[u] != 2 {
		t.Errorf("expected occurrence count 2, got %d", counts[u])
	}
}
