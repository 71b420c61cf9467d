// Package app wires the storage, fetch, judgment, and repair components
// into the operations the CLI exposes.
package app

import (
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/citeguard/internal/cache"
	"github.com/hyperifyio/citeguard/internal/fetch"
	"github.com/hyperifyio/citeguard/internal/judge"
	"github.com/hyperifyio/citeguard/internal/repair"
	"github.com/hyperifyio/citeguard/internal/search"
	"github.com/hyperifyio/citeguard/internal/store"
	"github.com/hyperifyio/citeguard/internal/verify"
)

// App owns the long-lived components for one process.
type App struct {
	Cfg      Config
	Store    store.Store
	Judge    *judge.Service
	Verifier *verify.Verifier
	Search   search.Provider
}

// New wires the application. The store is optional: without a DB path every
// read degrades to empty results and mutating stages become no-ops.
func New(cfg Config) (*App, error) {
	cfg.applyDefaults()
	a := &App{Cfg: cfg}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = st
	} else {
		a.Store = store.Absent()
	}

	fetcher := &fetch.Client{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
	}
	a.Verifier = &verify.Verifier{
		Fetch:      fetcher,
		Store:      a.Store,
		Robots:     verify.NewRobotsChecker(cfg.UserAgent, cfg.FetchTimeout),
		ArchiveDir: cfg.ArchiveDir,
	}

	if cfg.JudgeBaseURL != "" || cfg.JudgeAPIKey != "" {
		transportCfg := openai.DefaultConfig(cfg.JudgeAPIKey)
		if cfg.JudgeBaseURL != "" {
			transportCfg.BaseURL = cfg.JudgeBaseURL
		}
		transportCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
		a.Judge = &judge.Service{
			Client: openai.NewClientWithConfig(transportCfg),
			Model:  cfg.JudgeModel,
		}
		if cfg.CacheDir != "" {
			if cfg.CacheClear {
				_ = cache.ClearDir(cfg.CacheDir)
			}
			if cfg.CacheMaxAge > 0 {
				_, _ = cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
			}
			a.Judge.Cache = &cache.ResponseCache{Dir: cfg.CacheDir}
		}
	}

	if cfg.SearxURL != "" {
		a.Search = &search.SearxNG{
			BaseURL:    cfg.SearxURL,
			APIKey:     cfg.SearxKey,
			HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		}
	}

	return a, nil
}

// Engine builds a repair engine over the app's components. The pipeline is
// passed in so re-verification shares extraction and accuracy checking with
// the extract path.
func (a *App) Engine(p *Pipeline) *repair.Engine {
	eng := &repair.Engine{
		Store:  a.Store,
		Search: a.Search,
		Assess: p,
		DryRun: a.Cfg.DryRun,
		Log:    p.Log,
	}
	if a.Judge != nil {
		eng.Fixes = a.Judge
		eng.Rewrites = a.Judge
	}
	return eng
}

// Close releases the store. Safe to call once.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
