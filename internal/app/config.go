package app

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the application.
type Config struct {
	// ContentDir is the root of the knowledge base (markdown pages).
	ContentDir string

	// Persistence
	DBPath     string
	ArchiveDir string
	CacheDir   string
	// CacheMaxAge purges judgment-cache entries older than this at startup;
	// zero keeps everything. CacheClear drops the whole cache first.
	CacheMaxAge time.Duration
	CacheClear  bool

	// Judgment service (OpenAI-compatible)
	JudgeBaseURL string
	JudgeAPIKey  string
	JudgeModel   string

	// Source discovery
	SearxURL string
	SearxKey string

	// Fetching
	UserAgent    string
	FetchTimeout time.Duration

	// Behavior
	Concurrency int
	Recheck     bool
	DryRun      bool
	Verbose     bool

	// SequentialRunThreshold tunes the arXiv-run heuristic; 0 keeps the
	// default.
	SequentialRunThreshold int
}

// Defaults applied when a field is zero.
const (
	DefaultUserAgent    = "citeguard/1.0 (+https://github.com/hyperifyio/citeguard)"
	DefaultFetchTimeout = 15 * time.Second
	DefaultConcurrency  = 4
)

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}

// ValidateForJudgment checks the configuration needed by operations that
// call the external judgment service. These are the only fatal conditions;
// they surface before any work begins, never mid-batch.
func (c Config) ValidateForJudgment() error {
	if c.JudgeModel == "" {
		return fmt.Errorf("judgment model is required (set judge.model)")
	}
	if c.JudgeBaseURL == "" && c.JudgeAPIKey == "" {
		return fmt.Errorf("judgment service needs judge.base_url or judge.api_key")
	}
	return nil
}
