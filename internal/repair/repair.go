// Package repair rewrites page text to fix citations an external judgment
// step has flagged as inaccurate or unsupported. One page is one unit of
// work: stages run strictly sequentially because each stage's output can
// invalidate offsets or counts used by the next.
package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/citeguard/internal/footnote"
	"github.com/hyperifyio/citeguard/internal/judge"
	"github.com/hyperifyio/citeguard/internal/search"
	"github.com/hyperifyio/citeguard/internal/section"
	"github.com/hyperifyio/citeguard/internal/store"
)

// State names one stage of the per-page repair machine.
type State string

const (
	StateTargeted      State = "targeted"
	StateEscalate      State = "escalate"
	StateCleanup       State = "cleanup"
	StateSourceReplace State = "source-replace"
	StateReverify      State = "reverify"
	StateDone          State = "done"
)

// Citations with verdict unsupported and a score at or below this are
// candidates for source replacement.
const sourceReplaceScoreMax = 0.3

// Evidence handed to a judgment call is bounded so one huge cached page
// cannot blow the prompt.
const maxEvidenceChars = 1500

// Assessor re-extracts claims and re-runs accuracy checking over a page
// body, returning the rows that remain flagged. It is the re-verification
// half of the loop; the pipeline in the app package implements it.
type Assessor interface {
	ReassessPage(ctx context.Context, pageID, body string) ([]store.QuoteRecord, error)
}

// Report is the outcome of one repair run, surfaced to the caller.
type Report struct {
	PageID string

	Proposed int
	Applied  int
	Skipped  int

	SectionsRewritten  int
	RewritesRejected   int
	DefinitionsRemoved int
	SourcesReplaced    int

	FlaggedBefore int
	FlaggedAfter  int
	// Outcome is improved, unchanged, or regressed, comparing flagged
	// counts before and after.
	Outcome string
	Passes  int

	Changed bool
	Body    string
}

// Engine drives the repair state machine. Store may be the absent variant;
// every read then yields empty results and repair degrades gracefully.
type Engine struct {
	Fixes    judge.FixGenerator
	Rewrites judge.SectionRewriter
	Search   search.Provider
	Store    store.Store
	Assess   Assessor
	// DryRun computes and reports everything but suppresses audit writes;
	// the caller also skips saving the page.
	DryRun bool
	Log    zerolog.Logger
}

// RepairPage runs the full stage sequence over body and returns the report
// with the (possibly rewritten) body. The caller owns persistence of the
// page file.
func (e *Engine) RepairPage(ctx context.Context, pageID, body string) (*Report, error) {
	flagged, err := e.flaggedRows(ctx, pageID)
	if err != nil {
		return nil, err
	}
	rep := &Report{PageID: pageID, FlaggedBefore: len(flagged), Body: body, Outcome: "unchanged"}
	if len(flagged) == 0 {
		rep.FlaggedAfter = 0
		return rep, nil
	}

	state := StateTargeted
	for state != StateDone {
		state = e.step(ctx, state, pageID, &flagged, rep)
	}

	rep.Changed = rep.Body != body
	return rep, nil
}

// step executes one state and returns the next. Transitions:
// targeted -> escalate when zero proposals came back, else cleanup;
// escalate -> cleanup; cleanup -> source-replace -> reverify;
// reverify -> targeted for one more pass on strict improvement, else done.
func (e *Engine) step(ctx context.Context, s State, pageID string, flagged *[]store.QuoteRecord, rep *Report) State {
	switch s {
	case StateTargeted:
		proposed := e.runTargeted(ctx, pageID, *flagged, rep)
		if proposed == 0 && rep.Passes == 0 {
			return StateEscalate
		}
		return StateCleanup
	case StateEscalate:
		e.runEscalation(ctx, pageID, *flagged, rep)
		return StateCleanup
	case StateCleanup:
		e.runCleanup(ctx, pageID, rep)
		return StateSourceReplace
	case StateSourceReplace:
		e.runSourceReplace(ctx, pageID, *flagged, rep)
		return StateReverify
	case StateReverify:
		return e.runReverify(ctx, pageID, flagged, rep)
	default:
		return StateDone
	}
}

func (e *Engine) runTargeted(ctx context.Context, pageID string, flagged []store.QuoteRecord, rep *Report) int {
	if e.Fixes == nil {
		return 0
	}
	enriched := e.enrich(ctx, flagged)
	proposals, err := e.Fixes.GenerateFixes(ctx, enriched, rep.Body)
	if err != nil {
		e.Log.Warn().Err(err).Str("page", pageID).Msg("fix generation failed, stage skipped")
		return 0
	}
	rep.Proposed += len(proposals)
	edits, out := ResolveProposals(rep.Body, proposals)
	rep.Applied += out.Applied
	rep.Skipped += out.Skipped
	for _, orig := range out.SkippedOriginals {
		e.Log.Debug().Str("page", pageID).Str("original", truncate(orig, 80)).Msg("stale proposal skipped")
	}
	if len(edits) > 0 {
		rep.Body = ApplyEdits(rep.Body, edits)
		e.audit(ctx, pageID, "targeted-fix", fmt.Sprintf("applied %d targeted citation fixes", len(edits)))
	}
	return len(proposals)
}

func (e *Engine) runEscalation(ctx context.Context, pageID string, flagged []store.QuoteRecord, rep *Report) {
	if e.Rewrites == nil {
		return
	}
	flaggedSet := map[int]bool{}
	for _, r := range flagged {
		flaggedSet[r.Footnote] = true
	}

	doc := section.Split(rep.Body)
	for _, sec := range doc.Sections {
		nums := footnote.InlineNumbers(sec.Body)
		if !containsFlagged(nums, flaggedSet) {
			continue
		}
		evidence, preserve := e.sectionEvidence(ctx, pageID, nums)
		rewritten, err := e.Rewrites.RewriteSection(ctx, sec.Body, evidence)
		if err != nil {
			e.Log.Warn().Err(err).Str("page", pageID).Str("section", sec.Heading).Msg("section rewrite failed, section skipped")
			continue
		}
		if err := ValidateRewrite(sec.Body, rewritten, preserve); err != nil {
			rep.RewritesRejected++
			e.Log.Warn().Err(err).Str("page", pageID).Str("section", sec.Heading).Msg("section rewrite rejected")
			continue
		}
		// Replace by exact text: line numbers may have drifted.
		if !strings.Contains(rep.Body, sec.Body) {
			e.Log.Warn().Str("page", pageID).Str("section", sec.Heading).Msg("section text no longer present, rewrite dropped")
			continue
		}
		rep.Body = strings.Replace(rep.Body, sec.Body, rewritten, 1)
		rep.SectionsRewritten++
		e.audit(ctx, pageID, "section-rewrite", fmt.Sprintf("rewrote section %q", sec.Heading))
	}
}

func (e *Engine) runCleanup(ctx context.Context, pageID string, rep *Report) {
	cleaned, removed := CleanupOrphanedDefinitions(rep.Body)
	if len(removed) == 0 {
		return
	}
	rep.Body = cleaned
	rep.DefinitionsRemoved += len(removed)
	e.audit(ctx, pageID, "orphan-cleanup", fmt.Sprintf("removed %d orphaned footnote definitions", len(removed)))
}

func (e *Engine) runSourceReplace(ctx context.Context, pageID string, flagged []store.QuoteRecord, rep *Report) {
	if e.Search == nil {
		return
	}
	for _, row := range flagged {
		if row.Verdict != store.VerdictUnsupported || row.AccuracyScore > sourceReplaceScoreMax {
			continue
		}
		query := BuildQuery(row.Claim)
		if query == "" {
			continue
		}
		res, err := FindReplacementSource(ctx, e.Search, query, hostOf(row.SourceURL))
		if err != nil {
			e.Log.Warn().Err(err).Str("page", pageID).Int("footnote", row.Footnote).Msg("source search failed, citation skipped")
			continue
		}
		if res == nil {
			continue
		}
		next, ok := ReplaceDefinitionSource(rep.Body, row.Footnote, res.Title, res.URL)
		if !ok {
			continue
		}
		rep.Body = next
		rep.SourcesReplaced++
		e.audit(ctx, pageID, "source-replacement",
			fmt.Sprintf("replaced source for footnote %d with %s", row.Footnote, res.URL))
	}
}

func (e *Engine) runReverify(ctx context.Context, pageID string, flagged *[]store.QuoteRecord, rep *Report) State {
	rep.Passes++
	if e.Assess == nil {
		rep.FlaggedAfter = rep.FlaggedBefore
		return StateDone
	}
	after, err := e.Assess.ReassessPage(ctx, pageID, rep.Body)
	if err != nil {
		e.Log.Warn().Err(err).Str("page", pageID).Msg("re-verification failed")
		rep.FlaggedAfter = rep.FlaggedBefore
		return StateDone
	}
	*flagged = after
	rep.FlaggedAfter = len(after)
	switch {
	case rep.FlaggedAfter < rep.FlaggedBefore:
		rep.Outcome = "improved"
	case rep.FlaggedAfter > rep.FlaggedBefore:
		rep.Outcome = "regressed"
		e.Log.Error().Str("page", pageID).
			Int("before", rep.FlaggedBefore).Int("after", rep.FlaggedAfter).
			Msg("repair regressed page, more citations flagged than before")
	default:
		rep.Outcome = "unchanged"
	}
	// One bounded extra pass, only on strict improvement with work left.
	if rep.Outcome == "improved" && rep.FlaggedAfter > 0 && rep.Passes < 2 {
		return StateTargeted
	}
	return StateDone
}

// flaggedRows reads the currently flagged citations for the page. The
// absent store yields none, and repair becomes a no-op rather than an error.
func (e *Engine) flaggedRows(ctx context.Context, pageID string) ([]store.QuoteRecord, error) {
	if e.Store == nil {
		return nil, nil
	}
	rows, err := e.Store.FlaggedForPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("load flagged citations for %s: %w", pageID, err)
	}
	return rows, nil
}

// enrich joins each flagged row with its best available evidence:
// supporting quotes first, then the extracted quote, then truncated cached
// source text.
func (e *Engine) enrich(ctx context.Context, rows []store.QuoteRecord) []judge.FlaggedCitation {
	out := make([]judge.FlaggedCitation, 0, len(rows))
	for _, row := range rows {
		out = append(out, judge.FlaggedCitation{
			Footnote: row.Footnote,
			Claim:    row.Claim,
			Evidence: e.evidenceFor(ctx, row),
			Verdict:  row.Verdict,
			URL:      row.SourceURL,
		})
	}
	return out
}

func (e *Engine) evidenceFor(ctx context.Context, row store.QuoteRecord) string {
	if len(row.SupportingQuotes) > 0 {
		return truncate(strings.Join(row.SupportingQuotes, "\n"), maxEvidenceChars)
	}
	if row.Quote != "" {
		return truncate(row.Quote, maxEvidenceChars)
	}
	if e.Store != nil && row.SourceURL != "" {
		if content, err := e.Store.GetContent(ctx, row.SourceURL); err == nil && content != nil {
			return truncate(content.Text, maxEvidenceChars)
		}
	}
	return ""
}

// sectionEvidence gathers evidence for every footnote in a section, flagged
// or not, and computes which may be removed by a rewrite.
func (e *Engine) sectionEvidence(ctx context.Context, pageID string, nums []int) ([]judge.FootnoteEvidence, []int) {
	var evidence []judge.FootnoteEvidence
	var preserve []int
	for _, n := range nums {
		removable := false
		var ev string
		if e.Store != nil {
			if row, err := e.Store.GetQuote(ctx, pageID, n); err == nil && row != nil {
				removable = row.Flagged()
				ev = e.evidenceFor(ctx, *row)
			}
		}
		evidence = append(evidence, judge.FootnoteEvidence{Footnote: n, Evidence: ev, Removable: removable})
		if !removable {
			preserve = append(preserve, n)
		}
	}
	return evidence, preserve
}

func (e *Engine) audit(ctx context.Context, pageID, tool, note string) {
	if e.Store == nil || e.DryRun {
		return
	}
	err := e.Store.RecordEdit(ctx, store.EditEntry{
		PageID: pageID,
		Tool:   tool,
		Agency: "automated",
		Note:   note,
	})
	if err != nil {
		e.Log.Warn().Err(err).Str("page", pageID).Str("tool", tool).Msg("audit write failed")
	}
}

func containsFlagged(nums []int, flagged map[int]bool) bool {
	for _, n := range nums {
		if flagged[n] {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
