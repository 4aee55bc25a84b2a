// Package config loads the crawler's single YAML configuration document
// into an immutable Config value. Every component that needs a setting
// receives this value (or a narrower view of it) through its constructor;
// nothing reaches for a global.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the flat settings namespace described in spec.md §6, loaded
// once from YAML and passed by value to component constructors.
type Config struct {
	// Crawl policy
	AllowedSites               []string `yaml:"allowed_sites"`
	BlockedSites               []string `yaml:"blocked_sites"`
	LimitSitesToAllowedSites   bool     `yaml:"limit_sites_to_allowed_sites"`
	ScrapingSites              []string `yaml:"scraping_sites"`
	IgnoreURLFragments         bool     `yaml:"ignore_url_fragments"`
	DaysTillNextPageCheck      int      `yaml:"days_till_next_page_check"`
	AllowDuplicatesDespiteTiming bool   `yaml:"allow_duplicates_despite_timing"`

	// Rate limiting
	SiteRequestIntervalSeconds      int `yaml:"site_request_interval_seconds"`
	SiteRequestsInInterval          int `yaml:"site_requests_in_interval"`
	GlobalRequestIntervalSeconds    int `yaml:"global_request_interval_seconds"`
	GlobalRequestsInInterval        int `yaml:"global_requests_in_interval"`
	SecondsBetweenScrapingOnSameSite int `yaml:"seconds_between_scraping_on_same_site"`

	// Threading
	ThreadingTimeoutSeconds  int  `yaml:"threading_timeout_seconds"`
	ThreadedServerHandling   bool `yaml:"threaded_server_handling"`
	DaemonWaitTimeSeconds    int  `yaml:"daemon_wait_time_seconds"`

	// PageRank
	PageRankMultiplier           float64 `yaml:"page_rank_multiplier"`
	PageRankIntervalSeconds       int     `yaml:"page_rank_interval_seconds"`
	PageRankMemoryRows            int     `yaml:"page_rank_memory_rows"`
	PageRankItersAfterLastChange  int     `yaml:"page_rank_iters_after_last_change"`
	PageRankFinalCycles           int     `yaml:"page_rank_final_cycles"`
	PageRankStrength              float64 `yaml:"page_rank_strength"`

	// Query
	ResultsPerSearch int `yaml:"results_per_search"`

	// Store
	DatabaseName              string `yaml:"database_name"`
	AutoResetOnDBInitChanges  bool   `yaml:"auto_reset_on_db_init_changes"`

	// Fetch
	UserAgent       string `yaml:"user_agent"`
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// Default returns the configuration values the original implementation
// shipped as its own defaults (config.py / sample configuration), used
// whenever a YAML document omits a key.
func Default() Config {
	return Config{
		LimitSitesToAllowedSites:     false,
		IgnoreURLFragments:           true,
		DaysTillNextPageCheck:        7,
		AllowDuplicatesDespiteTiming: false,

		SiteRequestIntervalSeconds:      1,
		SiteRequestsInInterval:          2,
		GlobalRequestIntervalSeconds:    1,
		GlobalRequestsInInterval:        10,
		SecondsBetweenScrapingOnSameSite: 1,

		ThreadingTimeoutSeconds: 30,
		ThreadedServerHandling:  true,
		DaemonWaitTimeSeconds:   60,

		PageRankMultiplier:          0.85,
		PageRankIntervalSeconds:     300,
		PageRankMemoryRows:          500,
		PageRankItersAfterLastChange: 3,
		PageRankFinalCycles:         2,
		PageRankStrength:            1.0,

		ResultsPerSearch: 20,

		DatabaseName:             "webscrape.db",
		AutoResetOnDBInitChanges: true,

		UserAgent:           "Mozilla/5.0 (compatible; rankcrawlbot/1.0; +https://example.invalid/bot)",
		FetchTimeoutSeconds: 10,
	}
}

// Load reads and unmarshals a YAML document at path over the defaults. A
// missing file is not an error — the caller simply gets Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ThreadingTimeout is ThreadingTimeoutSeconds as a time.Duration.
func (c Config) ThreadingTimeout() time.Duration {
	return time.Duration(c.ThreadingTimeoutSeconds) * time.Second
}

// DaemonWaitTime is DaemonWaitTimeSeconds as a time.Duration.
func (c Config) DaemonWaitTime() time.Duration {
	return time.Duration(c.DaemonWaitTimeSeconds) * time.Second
}

// PageRankInterval is PageRankIntervalSeconds as a time.Duration.
func (c Config) PageRankInterval() time.Duration {
	return time.Duration(c.PageRankIntervalSeconds) * time.Second
}

// SiteRequestInterval is SiteRequestIntervalSeconds as a time.Duration.
func (c Config) SiteRequestInterval() time.Duration {
	return time.Duration(c.SiteRequestIntervalSeconds) * time.Second
}

// GlobalRequestInterval is GlobalRequestIntervalSeconds as a time.Duration.
func (c Config) GlobalRequestInterval() time.Duration {
	return time.Duration(c.GlobalRequestIntervalSeconds) * time.Second
}

// SecondsBetweenScrapingOnSameSiteDuration is
// SecondsBetweenScrapingOnSameSite as a time.Duration.
func (c Config) SecondsBetweenScrapingOnSameSiteDuration() time.Duration {
	return time.Duration(c.SecondsBetweenScrapingOnSameSite) * time.Second
}

// FetchTimeout is FetchTimeoutSeconds as a time.Duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// IsAllowed reports whether a host passes the ALLOWED_SITES / BLOCKED_SITES
// / LIMIT_SITES_TO_ALLOWED_SITES policy gate of spec.md §4.6 step (1)-(2).
func (c Config) IsAllowed(host string) bool {
	if contains(c.BlockedSites, host) {
		return false
	}
	if !c.LimitSitesToAllowedSites {
		return true
	}
	return contains(c.AllowedSites, host)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
