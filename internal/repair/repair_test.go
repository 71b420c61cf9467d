package repair

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/citeguard/internal/judge"
	"github.com/hyperifyio/citeguard/internal/search"
	"github.com/hyperifyio/citeguard/internal/store"
)

type fakeFixer struct {
	proposals []judge.FixProposal
	calls     int
}

func (f *fakeFixer) GenerateFixes(ctx context.Context, flagged []judge.FlaggedCitation, pageText string) ([]judge.FixProposal, error) {
	f.calls++
	return f.proposals, nil
}

type fakeRewriter struct {
	rewrite string
	calls   int
}

func (f *fakeRewriter) RewriteSection(ctx context.Context, sectionText string, evidence []judge.FootnoteEvidence) (string, error) {
	f.calls++
	return f.rewrite, nil
}

type fakeAssessor struct {
	results [][]store.QuoteRecord
	calls   int
}

func (f *fakeAssessor) ReassessPage(ctx context.Context, pageID, body string) ([]store.QuoteRecord, error) {
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

type fakeSearch struct {
	results []search.Result
}

func (f *fakeSearch) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return f.results, nil
}

func (f *fakeSearch) Name() string { return "fake" }

type recordingStore struct {
	store.Store
	flagged []store.QuoteRecord
	edits   []store.EditEntry
}

func newRecordingStore(flagged ...store.QuoteRecord) *recordingStore {
	return &recordingStore{Store: store.Absent(), flagged: flagged}
}

func (s *recordingStore) FlaggedForPage(ctx context.Context, pageID string) ([]store.QuoteRecord, error) {
	return s.flagged, nil
}

func (s *recordingStore) GetQuote(ctx context.Context, pageID string, fn int) (*store.QuoteRecord, error) {
	for i := range s.flagged {
		if s.flagged[i].Footnote == fn {
			return &s.flagged[i], nil
		}
	}
	return nil, nil
}

func (s *recordingStore) RecordEdit(ctx context.Context, entry store.EditEntry) error {
	s.edits = append(s.edits, entry)
	return nil
}

func TestApplyEditsOrderIndependent(t *testing.T) {
	doc := "aaa bbb ccc ddd"
	edits := []Edit{
		{Start: 0, End: 3, Replacement: "AAAA"},
		{Start: 8, End: 11, Replacement: "C"},
		{Start: 12, End: 15, Replacement: "DDDDDD"},
	}
	want := "AAAA bbb C DDDDDD"

	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
	for _, perm := range perms {
		shuffled := make([]Edit, len(edits))
		for i, j := range perm {
			shuffled[i] = edits[j]
		}
		if got := ApplyEdits(doc, shuffled); got != want {
			t.Fatalf("perm %v: got %q, want %q", perm, got, want)
		}
	}
}

func TestResolveProposalsExactMatch(t *testing.T) {
	doc := "The widget costs $50[^1] according to the vendor."
	proposals := []judge.FixProposal{
		{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs approximately $45[^1]"},
	}
	edits, out := ResolveProposals(doc, proposals)
	if out.Applied != 1 || out.Skipped != 0 {
		t.Fatalf("outcome %+v", out)
	}
	got := ApplyEdits(doc, edits)
	if !strings.Contains(got, "costs approximately $45[^1]") || strings.Contains(got, "costs $50") {
		t.Fatalf("got %q", got)
	}
}

func TestResolveProposalsSkipsStaleAndNoop(t *testing.T) {
	doc := "current text[^1]."
	proposals := []judge.FixProposal{
		{Original: "vanished text", Replacement: "anything"},
		{Original: "current", Replacement: "current"},
		{Original: "", Replacement: "x"},
	}
	edits, out := ResolveProposals(doc, proposals)
	if len(edits) != 0 || out.Skipped != 3 {
		t.Fatalf("edits=%d outcome=%+v", len(edits), out)
	}
}

func TestResolveProposalsRejectsOverlap(t *testing.T) {
	doc := "alpha beta gamma"
	proposals := []judge.FixProposal{
		{Original: "alpha beta", Replacement: "x"},
		{Original: "beta gamma", Replacement: "y"},
	}
	edits, out := ResolveProposals(doc, proposals)
	if len(edits) != 1 || out.Applied != 1 || out.Skipped != 1 {
		t.Fatalf("edits=%d outcome=%+v", len(edits), out)
	}
}

func TestValidateRewriteLengthBounds(t *testing.T) {
	orig := strings.Repeat("original text ", 10)
	if err := ValidateRewrite(orig, "tiny", nil); err == nil {
		t.Fatal("expected rejection for too-short rewrite")
	}
	if err := ValidateRewrite(orig, strings.Repeat(orig, 4), nil); err == nil {
		t.Fatal("expected rejection for too-long rewrite")
	}
	if err := ValidateRewrite(orig, orig+" amended", nil); err != nil {
		t.Fatalf("in-bounds rewrite rejected: %v", err)
	}
}

func TestValidateRewritePreservesNonRemovableFootnotes(t *testing.T) {
	orig := "Claim one[^1] and claim two[^2] live here together."
	dropped := "Claim one[^1] and claim two live here together now."
	if err := ValidateRewrite(orig, dropped, []int{2}); err == nil {
		t.Fatal("rewrite dropping accurate [^2] must be rejected")
	}
	if err := ValidateRewrite(orig, dropped, []int{1}); err != nil {
		t.Fatalf("dropping removable [^2] must pass: %v", err)
	}
}

func TestValidateRewriteEntityMarkers(t *testing.T) {
	orig := `Intro <EntityLink name="ada-lovelace"/> did things[^1] here padding text.`
	changed := `Intro <EntityLink name="alan-turing"/> did things[^1] here padding text.`
	removed := `Intro did things[^1] here with some extra padding text instead.`
	if err := ValidateRewrite(orig, changed, nil); err == nil {
		t.Fatal("changed marker must be rejected")
	}
	if err := ValidateRewrite(orig, removed, nil); err == nil {
		t.Fatal("removed marker must be rejected")
	}
	if err := ValidateRewrite(orig, orig+" more", nil); err != nil {
		t.Fatalf("unchanged markers must pass: %v", err)
	}
}

func TestCleanupOrphanedDefinitions(t *testing.T) {
	doc := strings.Join([]string{
		"Kept claim[^1].",
		"",
		"[^1]: https://example.com/kept",
		"",
		"[^2]: https://example.com/orphan",
		"",
		"Tail.",
	}, "\n")
	got, removed := CleanupOrphanedDefinitions(doc)
	if len(removed) != 1 || removed[0] != 2 {
		t.Fatalf("removed = %v", removed)
	}
	if strings.Contains(got, "orphan") {
		t.Fatalf("orphan definition survived:\n%s", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("double blank not collapsed:\n%q", got)
	}
	if !strings.Contains(got, "[^1]: https://example.com/kept") {
		t.Fatalf("referenced definition removed:\n%s", got)
	}
}

func TestBuildQueryFirstSentence(t *testing.T) {
	claim := `The <EntityLink name="x"/> engine shipped in 1994[^3]. It later won awards.`
	got := BuildQuery(claim)
	if got != "The engine shipped in 1994" {
		t.Fatalf("query = %q", got)
	}
}

func TestBuildQueryTruncatesWithoutSentence(t *testing.T) {
	claim := strings.Repeat("word ", 60)
	got := BuildQuery(claim)
	if len(got) > 200 {
		t.Fatalf("query too long: %d", len(got))
	}
	if strings.HasSuffix(got, " ") {
		t.Fatalf("query not trimmed: %q", got)
	}
}

func TestFindReplacementSourceExcludesCurrentDomain(t *testing.T) {
	p := &fakeSearch{results: []search.Result{
		{Title: "Same domain", URL: "https://www.badsource.com/a"},
		{Title: "Better", URL: "https://goodsource.org/b"},
	}}
	res, err := FindReplacementSource(context.Background(), p, "query", "badsource.com")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.URL != "https://goodsource.org/b" {
		t.Fatalf("res = %+v", res)
	}
}

func TestReplaceDefinitionSourceRewritesOnlyThatLine(t *testing.T) {
	doc := strings.Join([]string{
		"Claim[^1] and claim[^2].",
		"",
		"[^1]: https://old.example.com/page",
		"[^2]: https://other.example.com/page",
	}, "\n")
	got, ok := ReplaceDefinitionSource(doc, 1, "New Source", "https://new.example.org/x")
	if !ok {
		t.Fatal("replacement not applied")
	}
	if !strings.Contains(got, "[^1]: [New Source](https://new.example.org/x)") {
		t.Fatalf("definition not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "[^2]: https://other.example.com/page") {
		t.Fatalf("unrelated definition changed:\n%s", got)
	}
	if !strings.Contains(got, "Claim[^1] and claim[^2].") {
		t.Fatalf("body changed:\n%s", got)
	}
}

func repairDoc() string {
	return strings.Join([]string{
		"## Pricing",
		"",
		"The widget costs $50[^1] according to the vendor.",
		"",
		"[^1]: https://vendor.example.com/pricing",
	}, "\n") + "\n"
}

func flaggedRow() store.QuoteRecord {
	return store.QuoteRecord{
		PageID:    "widget",
		Footnote:  1,
		Claim:     "The widget costs $50",
		Verdict:   store.VerdictInaccurate,
		SourceURL: "https://vendor.example.com/pricing",
	}
}

func TestEngineTargetedFixImproves(t *testing.T) {
	st := newRecordingStore(flaggedRow())
	fixer := &fakeFixer{proposals: []judge.FixProposal{
		{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs approximately $45[^1]"},
	}}
	eng := &Engine{
		Fixes:  fixer,
		Store:  st,
		Assess: &fakeAssessor{results: [][]store.QuoteRecord{{}}},
		Log:    zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Applied != 1 || rep.Skipped != 0 {
		t.Fatalf("report %+v", rep)
	}
	if !strings.Contains(rep.Body, "approximately $45[^1]") {
		t.Fatalf("body not fixed:\n%s", rep.Body)
	}
	if rep.Outcome != "improved" || !rep.Changed {
		t.Fatalf("report %+v", rep)
	}
	if len(st.edits) == 0 || st.edits[0].Tool != "targeted-fix" || st.edits[0].Agency != "automated" {
		t.Fatalf("audit trail %+v", st.edits)
	}
	// Improvement to zero flagged leaves nothing for a second pass.
	if fixer.calls != 1 {
		t.Fatalf("fixer calls = %d", fixer.calls)
	}
}

func TestEngineEscalatesOnlyOnZeroProposals(t *testing.T) {
	st := newRecordingStore(flaggedRow())
	rewriter := &fakeRewriter{rewrite: "## Pricing\n\nThe widget costs about $45 per the vendor list.\n\n[^1]: https://vendor.example.com/pricing"}
	eng := &Engine{
		Fixes:    &fakeFixer{},
		Rewrites: rewriter,
		Store:    st,
		Assess:   &fakeAssessor{results: [][]store.QuoteRecord{{}}},
		Log:      zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rewriter.calls != 1 || rep.SectionsRewritten != 1 {
		t.Fatalf("rewriter calls=%d report=%+v", rewriter.calls, rep)
	}
	// The rewrite dropped [^1]; its definition must be cleaned up.
	if strings.Contains(rep.Body, "[^1]:") {
		t.Fatalf("orphan definition survived:\n%s", rep.Body)
	}
	if rep.DefinitionsRemoved != 1 {
		t.Fatalf("report %+v", rep)
	}
}

func TestEngineNoEscalationWhenProposalsExist(t *testing.T) {
	st := newRecordingStore(flaggedRow())
	rewriter := &fakeRewriter{rewrite: "anything"}
	eng := &Engine{
		Fixes: &fakeFixer{proposals: []judge.FixProposal{
			{Footnote: 1, Original: "stale text not in doc", Replacement: "whatever"},
		}},
		Rewrites: rewriter,
		Store:    st,
		Assess:   &fakeAssessor{results: [][]store.QuoteRecord{{flaggedRow()}}},
		Log:      zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rewriter.calls != 0 {
		t.Fatalf("escalation ran despite proposals: %d", rewriter.calls)
	}
	if rep.Skipped != 1 || rep.Applied != 0 {
		t.Fatalf("report %+v", rep)
	}
	if rep.Outcome != "unchanged" {
		t.Fatalf("outcome %q", rep.Outcome)
	}
}

func TestEngineSecondPassOnlyOnStrictImprovement(t *testing.T) {
	rows := []store.QuoteRecord{flaggedRow(), {
		PageID: "widget", Footnote: 2, Claim: "other claim", Verdict: store.VerdictUnsupported,
	}}
	st := newRecordingStore(rows...)
	fixer := &fakeFixer{proposals: []judge.FixProposal{
		{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs $45[^1]"},
	}}
	eng := &Engine{
		Fixes: fixer,
		Store: st,
		Assess: &fakeAssessor{results: [][]store.QuoteRecord{
			{rows[1]}, // pass 1: improved, one still flagged
			{rows[1]}, // pass 2: unchanged
		}},
		Log: zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Passes != 2 {
		t.Fatalf("passes = %d", rep.Passes)
	}
	if fixer.calls != 2 {
		t.Fatalf("fixer calls = %d", fixer.calls)
	}
}

func TestEngineRegressionSurfaced(t *testing.T) {
	st := newRecordingStore(flaggedRow())
	eng := &Engine{
		Fixes: &fakeFixer{proposals: []judge.FixProposal{
			{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs $45[^1]"},
		}},
		Store: st,
		Assess: &fakeAssessor{results: [][]store.QuoteRecord{
			{flaggedRow(), {PageID: "widget", Footnote: 3, Verdict: store.VerdictUnsupported}},
		}},
		Log: zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Outcome != "regressed" || rep.Passes != 1 {
		t.Fatalf("report %+v", rep)
	}
}

func TestEngineSourceReplacement(t *testing.T) {
	row := flaggedRow()
	row.Verdict = store.VerdictUnsupported
	row.AccuracyScore = 0.1
	st := newRecordingStore(row)
	eng := &Engine{
		Fixes: &fakeFixer{proposals: []judge.FixProposal{
			{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs $45[^1]"},
		}},
		Search: &fakeSearch{results: []search.Result{
			{Title: "Vendor mirror", URL: "https://vendor.example.com/copy"},
			{Title: "Independent review", URL: "https://reviews.example.org/widget"},
		}},
		Store:  st,
		Assess: &fakeAssessor{results: [][]store.QuoteRecord{{}}},
		Log:    zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.SourcesReplaced != 1 {
		t.Fatalf("report %+v", rep)
	}
	if !strings.Contains(rep.Body, "[^1]: [Independent review](https://reviews.example.org/widget)") {
		t.Fatalf("definition not replaced:\n%s", rep.Body)
	}
}

func TestEngineDryRunSkipsAudit(t *testing.T) {
	st := newRecordingStore(flaggedRow())
	eng := &Engine{
		Fixes: &fakeFixer{proposals: []judge.FixProposal{
			{Footnote: 1, Original: "costs $50[^1]", Replacement: "costs $45[^1]"},
		}},
		Store:  st,
		Assess: &fakeAssessor{results: [][]store.QuoteRecord{{}}},
		DryRun: true,
		Log:    zerolog.Nop(),
	}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Applied != 1 || !rep.Changed {
		t.Fatalf("report %+v", rep)
	}
	if len(st.edits) != 0 {
		t.Fatalf("dry run wrote audit rows: %+v", st.edits)
	}
}

func TestEngineAbsentStoreIsNoop(t *testing.T) {
	eng := &Engine{Store: store.Absent(), Log: zerolog.Nop()}
	rep, err := eng.RepairPage(context.Background(), "widget", repairDoc())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Changed || rep.FlaggedBefore != 0 {
		t.Fatalf("report %+v", rep)
	}
}
