// Package search is the source-discovery service used by the repair
// engine's source-replacement stage: a query built from a claim comes in, a
// ranked list of candidate sources comes out.
package search

import (
	"context"
)

// Result is a single candidate source.
type Result struct {
	Title   string
	URL     string
	Snippet string
	// Source names the provider for observability.
	Source string
}

// Provider is the minimal source-discovery interface.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}
