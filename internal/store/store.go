// Package store is the persistent layer for citation quote/accuracy rows,
// URL-keyed cached page content, and the page edit log. The handle is
// injected into every component that needs it; environments without a
// provisioned store use Absent(), which satisfies reads with empty results
// instead of errors.
package store

import (
	"context"
	"time"
)

// Verdict values assigned by the external accuracy check.
const (
	VerdictAccurate      = "accurate"
	VerdictMinorIssues   = "minor_issues"
	VerdictInaccurate    = "inaccurate"
	VerdictUnsupported   = "unsupported"
	VerdictNotVerifiable = "not_verifiable"
)

// QuoteRecord is the long-lived row keyed by (PageID, Footnote): the claim,
// its extracted supporting quote, and the accuracy verdict. Everything else
// in the system is derived or cached from these rows.
type QuoteRecord struct {
	PageID   string
	Footnote int

	Claim         string
	Quote         string
	QuoteLocation string

	VerificationMethod string
	VerificationScore  float64

	SourceURL   string
	SourceTitle string

	Verdict          string
	AccuracyScore    float64
	Issues           []string
	SupportingQuotes []string
	Difficulty       string

	UpdatedAt time.Time
}

// Flagged reports whether the row's verdict marks it for repair.
func (r QuoteRecord) Flagged() bool {
	return r.Verdict == VerdictInaccurate || r.Verdict == VerdictUnsupported
}

// ContentRecord is the cached fetch result for one URL, shared across pages
// that cite the same source. One entry per URL, last fetch wins.
type ContentRecord struct {
	URL         string
	HTML        string
	Text        string
	Title       string
	Status      string
	ContentHash string
	FetchedAt   time.Time
}

// EditEntry is one audit-trail row for a mutating repair stage.
type EditEntry struct {
	PageID string
	Tool   string
	Agency string
	Note   string
}

// Store is the persistence contract. Implementations must keep reads cheap
// and must never fail merely because no data exists yet.
type Store interface {
	// UpsertQuote writes the extraction fields of rec, preserving any
	// previously stored accuracy fields on conflict. Accuracy is only
	// changed through UpdateAccuracy.
	UpsertQuote(ctx context.Context, rec QuoteRecord) error
	// UpdateAccuracy overwrites the accuracy fields of an existing row.
	UpdateAccuracy(ctx context.Context, pageID string, fn int, verdict string, score float64, issues, supportingQuotes []string, difficulty string) error
	// GetQuote returns the row or nil when absent.
	GetQuote(ctx context.Context, pageID string, fn int) (*QuoteRecord, error)
	// QuotesForPage returns all rows for a page ordered by footnote.
	QuotesForPage(ctx context.Context, pageID string) ([]QuoteRecord, error)
	// FlaggedForPage returns rows whose verdict is inaccurate or
	// unsupported, ordered by footnote.
	FlaggedForPage(ctx context.Context, pageID string) ([]QuoteRecord, error)

	UpsertContent(ctx context.Context, rec ContentRecord) error
	// GetContent returns the cached content for url or nil when absent.
	GetContent(ctx context.Context, url string) (*ContentRecord, error)

	// RecordEdit appends an audit row. Audit failures must not fail the
	// repair that triggered them; callers log and continue.
	RecordEdit(ctx context.Context, entry EditEntry) error

	Close() error
}

// absent is the explicit "store not provisioned" variant. Reads return
// empty results; writes are accepted and dropped.
type absent struct{}

// Absent returns a Store for environments without persistence. Repair is
// expected to run against it without any behavioral branching at call sites.
func Absent() Store { return absent{} }

func (absent) UpsertQuote(context.Context, QuoteRecord) error { return nil }
func (absent) UpdateAccuracy(context.Context, string, int, string, float64, []string, []string, string) error {
	return nil
}
func (absent) GetQuote(context.Context, string, int) (*QuoteRecord, error)   { return nil, nil }
func (absent) QuotesForPage(context.Context, string) ([]QuoteRecord, error)  { return nil, nil }
func (absent) FlaggedForPage(context.Context, string) ([]QuoteRecord, error) { return nil, nil }
func (absent) UpsertContent(context.Context, ContentRecord) error            { return nil }
func (absent) GetContent(context.Context, string) (*ContentRecord, error)    { return nil, nil }
func (absent) RecordEdit(context.Context, EditEntry) error                   { return nil }
func (absent) Close() error                                                  { return nil }
