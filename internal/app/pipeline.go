package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/citeguard/internal/footnote"
	"github.com/hyperifyio/citeguard/internal/judge"
	"github.com/hyperifyio/citeguard/internal/page"
	"github.com/hyperifyio/citeguard/internal/repair"
	"github.com/hyperifyio/citeguard/internal/store"
)

// Evidence passed to an accuracy check is bounded the same way the repair
// engine bounds it.
const maxCheckEvidenceChars = 1500

// Pipeline runs claim extraction and accuracy checking for pages. It is
// also the repair engine's re-verification hook.
type Pipeline struct {
	Store   store.Store
	Extract judge.QuoteExtractor
	Check   judge.AccuracyChecker
	Log     zerolog.Logger
}

// PageOutcome summarizes one page's extraction-and-check run.
type PageOutcome struct {
	PageID    string
	Citations int
	Extracted int
	Checked   int
	Flagged   int
	// SkippedExisting is true when recheck was off and the page already
	// had quote rows.
	SkippedExisting bool
}

// ProcessPage extracts claims for every cited footnote and checks their
// accuracy. With recheck false a page whose rows already exist is left
// untouched, making repeated runs idempotent.
func (p *Pipeline) ProcessPage(ctx context.Context, pageID, body string, recheck bool) (*PageOutcome, error) {
	out := &PageOutcome{PageID: pageID}

	if !recheck {
		existing, err := p.Store.QuotesForPage(ctx, pageID)
		if err != nil {
			return nil, fmt.Errorf("load existing rows for %s: %w", pageID, err)
		}
		if len(existing) > 0 {
			out.SkippedExisting = true
			for _, row := range existing {
				if row.Flagged() {
					out.Flagged++
				}
			}
			return out, nil
		}
	}

	cites := footnote.ExtractCitations(body)
	out.Citations = len(cites)
	for _, cite := range cites {
		if err := p.processCitation(ctx, pageID, cite, out); err != nil {
			// One citation failing never aborts the page.
			p.Log.Warn().Err(err).Str("page", pageID).Int("footnote", cite.Footnote).Msg("citation skipped")
		}
	}
	return out, nil
}

func (p *Pipeline) processCitation(ctx context.Context, pageID string, cite footnote.Citation, out *PageOutcome) error {
	sourceText := ""
	if content, err := p.Store.GetContent(ctx, cite.URL); err == nil && content != nil {
		sourceText = content.Text
	}

	rec := store.QuoteRecord{
		PageID:      pageID,
		Footnote:    cite.Footnote,
		Claim:       cite.ClaimContext,
		SourceURL:   cite.URL,
		SourceTitle: cite.LinkText,
	}
	if sourceText != "" && p.Extract != nil {
		q, err := p.Extract.ExtractQuote(ctx, cite.ClaimContext, truncate(sourceText, maxCheckEvidenceChars*4))
		if err != nil {
			return fmt.Errorf("extract quote: %w", err)
		}
		rec.Quote = q.Quote
		rec.QuoteLocation = q.Location
		rec.VerificationMethod = "llm-quote"
	}
	if err := p.Store.UpsertQuote(ctx, rec); err != nil {
		return fmt.Errorf("upsert quote: %w", err)
	}
	out.Extracted++

	if p.Check == nil {
		return nil
	}
	evidence := rec.Quote
	if evidence == "" {
		evidence = truncate(sourceText, maxCheckEvidenceChars)
	}
	if evidence == "" {
		// Nothing to judge against; leave the row unscored.
		return nil
	}
	acc, err := p.Check.CheckAccuracy(ctx, cite.ClaimContext, evidence)
	if err != nil {
		return fmt.Errorf("check accuracy: %w", err)
	}
	err = p.Store.UpdateAccuracy(ctx, pageID, cite.Footnote, acc.Verdict, acc.Score, acc.Issues, acc.SupportingQuotes, acc.Difficulty)
	if err != nil {
		return fmt.Errorf("save accuracy: %w", err)
	}
	out.Checked++
	if acc.Verdict == store.VerdictInaccurate || acc.Verdict == store.VerdictUnsupported {
		out.Flagged++
	}
	return nil
}

// ReassessPage re-extracts and re-checks a page body, then returns the rows
// still flagged. This is the repair engine's re-verification step.
func (p *Pipeline) ReassessPage(ctx context.Context, pageID, body string) ([]store.QuoteRecord, error) {
	if _, err := p.ProcessPage(ctx, pageID, body, true); err != nil {
		return nil, err
	}
	return p.Store.FlaggedForPage(ctx, pageID)
}

// ProcessPages runs ProcessPage over a batch with bounded parallelism.
// Pages are independent units; one failure is logged and the rest proceed.
func (p *Pipeline) ProcessPages(ctx context.Context, pages []*page.Page, recheck bool, limit int) []*PageOutcome {
	if limit <= 0 {
		limit = 1
	}
	results := make([]*PageOutcome, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pg := range pages {
		i, pg := i, pg
		g.Go(func() error {
			out, err := p.ProcessPage(ctx, pg.ID, pg.Body, recheck)
			if err != nil {
				p.Log.Warn().Err(err).Str("page", pg.ID).Msg("page skipped")
				return nil
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	compact := results[:0]
	for _, r := range results {
		if r != nil {
			compact = append(compact, r)
		}
	}
	return compact
}

// RepairPages runs the repair engine over a batch with bounded page-level
// parallelism, saving each changed page unless dryRun is set.
func RepairPages(ctx context.Context, eng *repair.Engine, pages []*page.Page, limit int, dryRun bool, log zerolog.Logger) []*repair.Report {
	if limit <= 0 {
		limit = 1
	}
	reports := make([]*repair.Report, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pg := range pages {
		i, pg := i, pg
		g.Go(func() error {
			rep, err := eng.RepairPage(ctx, pg.ID, pg.Body)
			if err != nil {
				log.Warn().Err(err).Str("page", pg.ID).Msg("repair skipped")
				return nil
			}
			if rep.Changed && !dryRun {
				pg.Body = rep.Body
				if err := pg.Save(); err != nil {
					log.Error().Err(err).Str("page", pg.ID).Msg("save failed")
					return nil
				}
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	compact := reports[:0]
	for _, r := range reports {
		if r != nil {
			compact = append(compact, r)
		}
	}
	return compact
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
