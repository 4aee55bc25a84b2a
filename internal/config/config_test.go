package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageRankMultiplier != Default().PageRankMultiplier {
		t.Errorf("expected default page rank multiplier, got %v", cfg.PageRankMultiplier)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := []byte(`
scraping_sites:
  - https://a.test/
  - https://b.test/
limit_sites_to_allowed_sites: true
allowed_sites:
  - a.test
page_rank_multiplier: 0.5
`)
	if err := os.WriteFile(path, yamlDoc, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.ScrapingSites) != 2 {
		t.Fatalf("expected 2 scraping sites, got %v", cfg.ScrapingSites)
	}
	if cfg.PageRankMultiplier != 0.5 {
		t.Errorf("expected overridden multiplier 0.5, got %v", cfg.PageRankMultiplier)
	}
	if !cfg.LimitSitesToAllowedSites {
		t.Errorf("expected limit_sites_to_allowed_sites true")
	}
}

func TestIsAllowedPolicyGate(t *testing.T) {
	cfg := Default()
	cfg.BlockedSites = []string{"evil.test"}
	cfg.LimitSitesToAllowedSites = true
	cfg.AllowedSites = []string{"good.test"}

	cases := map[string]bool{
		"evil.test":    false, // blocked wins regardless of allow-list
		"good.test":    true,
		"unlisted.test": false,
	}
	for host, want := range cases {
		if got := cfg.IsAllowed(host); got != want {
			t.Errorf("IsAllowed(%q) = %v, want %v", host, got, want)
		}
	}
}
