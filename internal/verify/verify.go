// Package verify resolves each extracted citation URL to a verification
// status and archives the result per page. Fetching is polite: bounded
// concurrency per batch, an inter-batch delay, robots.txt respected, and a
// short-circuit for domains known to refuse scrapers.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/citeguard/internal/extract"
	"github.com/hyperifyio/citeguard/internal/fetch"
	"github.com/hyperifyio/citeguard/internal/footnote"
	"github.com/hyperifyio/citeguard/internal/store"
)

// Citation verification statuses.
const (
	StatusVerified     = "verified"
	StatusBroken       = "broken"
	StatusUnverifiable = "unverifiable"
	StatusPending      = "pending"
)

// CitationRecord is the verification result for one citation.
type CitationRecord struct {
	Footnote      int       `json:"footnote"`
	URL           string    `json:"url"`
	Status        string    `json:"status"`
	HTTPStatus    int       `json:"httpStatus,omitempty"`
	Title         string    `json:"title,omitempty"`
	Snippet       string    `json:"snippet,omitempty"`
	ContentLength int       `json:"contentLength,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
	Note          string    `json:"note,omitempty"`
}

// Totals summarizes one archive.
type Totals struct {
	Verified     int `json:"verified"`
	Broken       int `json:"broken"`
	Unverifiable int `json:"unverifiable"`
	Pending      int `json:"pending"`
}

// Archive is the whole-page verification result, overwritten wholesale on
// each run. There is never a partial merge.
type Archive struct {
	PageID     string           `json:"pageId"`
	VerifiedAt time.Time        `json:"verifiedAt"`
	Totals     Totals           `json:"totals"`
	Citations  []CitationRecord `json:"citations"`
}

// Defaults for batch processing.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second
)

// Verifier runs the fetch pipeline for one or more pages.
type Verifier struct {
	Fetch  *fetch.Client
	Store  store.Store
	Robots *RobotsChecker
	// ArchiveDir receives one JSON archive file per page.
	ArchiveDir string
	// BatchSize bounds concurrent fetches; zero means DefaultBatchSize.
	BatchSize int
	// BatchDelay paces consecutive batches; zero means DefaultBatchDelay.
	BatchDelay time.Duration

	limiter     *rate.Limiter
	limiterOnce sync.Once
}

func (v *Verifier) batchSize() int {
	if v.BatchSize > 0 {
		return v.BatchSize
	}
	return DefaultBatchSize
}

func (v *Verifier) pacer() *rate.Limiter {
	v.limiterOnce.Do(func() {
		delay := v.BatchDelay
		if delay <= 0 {
			delay = DefaultBatchDelay
		}
		v.limiter = rate.NewLimiter(rate.Every(delay), 1)
	})
	return v.limiter
}

// VerifyPage verifies every citation extracted from body and writes the
// page's archive file after all citations complete. The archive is written
// atomically so a partially-completed run never corrupts a prior full one.
func (v *Verifier) VerifyPage(ctx context.Context, pageID, body string) (*Archive, error) {
	cites := footnote.ExtractCitations(body)
	records := make([]CitationRecord, len(cites))

	size := v.batchSize()
	for start := 0; start < len(cites); start += size {
		if err := v.pacer().Wait(ctx); err != nil {
			return nil, err
		}
		end := start + size
		if end > len(cites) {
			end = len(cites)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				records[i] = v.VerifyCitation(ctx, cites[i].Footnote, cites[i].URL)
			}(i)
		}
		wg.Wait()
	}

	archive := &Archive{
		PageID:     pageID,
		VerifiedAt: time.Now().UTC(),
		Citations:  records,
	}
	for _, r := range records {
		switch r.Status {
		case StatusVerified:
			archive.Totals.Verified++
		case StatusBroken:
			archive.Totals.Broken++
		case StatusUnverifiable:
			archive.Totals.Unverifiable++
		default:
			archive.Totals.Pending++
		}
	}
	if v.ArchiveDir != "" {
		if err := writeArchive(v.ArchiveDir, archive); err != nil {
			return nil, fmt.Errorf("write archive for %s: %w", pageID, err)
		}
	}
	log.Info().Str("page", pageID).
		Int("verified", archive.Totals.Verified).
		Int("broken", archive.Totals.Broken).
		Int("unverifiable", archive.Totals.Unverifiable).
		Msg("page verified")
	return archive, nil
}

// VerifyCitation resolves one URL to a CitationRecord. Failures classify;
// they never abort the batch.
func (v *Verifier) VerifyCitation(ctx context.Context, fn int, rawURL string) CitationRecord {
	rec := CitationRecord{Footnote: fn, URL: rawURL, CheckedAt: time.Now().UTC(), Status: StatusPending}

	domain := domainOf(rawURL)
	if domain == "" {
		rec.Status = StatusBroken
		rec.Note = "unparseable URL"
		return rec
	}
	if IsUnscrapable(domain) {
		rec.Status = StatusUnverifiable
		rec.Note = "unscrapable-domain"
		return rec
	}
	if v.Robots != nil && !v.Robots.Allowed(ctx, rawURL) {
		rec.Status = StatusUnverifiable
		rec.Note = "robots-disallowed"
		return rec
	}

	resp, err := v.Fetch.Get(ctx, rawURL)
	if err != nil {
		if isTimeout(err) {
			rec.Status = StatusUnverifiable
			rec.Note = "timeout"
			return rec
		}
		rec.Status = StatusBroken
		rec.Note = err.Error()
		return rec
	}
	rec.HTTPStatus = resp.StatusCode

	// Access-restricted publishers: reachability is the signal, content is
	// behind a paywall anyway.
	if IsRestrictedPublisher(domain) {
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			rec.Status = StatusVerified
			rec.Note = "restricted-publisher"
		} else {
			rec.Status = StatusBroken
			rec.Note = "restricted-publisher"
		}
		return rec
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		rec.Status = StatusBroken
		return rec
	}

	rec.Status = StatusVerified
	rec.ContentLength = len(resp.Body)
	ct := strings.ToLower(resp.ContentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		rec.Note = "pdf-accepted"
	case strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml"):
		doc := extract.FromHTML(resp.Body)
		rec.Title = doc.Title
		rec.Snippet = doc.Snippet(extract.SnippetLength)
		v.saveContent(ctx, rawURL, resp.Body, doc)
	default:
		rec.Note = "non-html content"
	}
	return rec
}

// saveContent caches the fetched page in the store, shared across pages
// that cite the same URL.
func (v *Verifier) saveContent(ctx context.Context, url string, body []byte, doc extract.Document) {
	if v.Store == nil {
		return
	}
	sum := sha256.Sum256(body)
	err := v.Store.UpsertContent(ctx, store.ContentRecord{
		URL:         url,
		HTML:        string(body),
		Text:        doc.Text,
		Title:       doc.Title,
		Status:      StatusVerified,
		ContentHash: hex.EncodeToString(sum[:]),
	})
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("content cache write failed")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, fetch.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// http.Client surfaces its own timeout as a plain error string.
	return err != nil && strings.Contains(err.Error(), "Client.Timeout")
}
