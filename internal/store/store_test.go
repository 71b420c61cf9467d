package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "citeguard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertQuotePreservesAccuracyFields(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rec := QuoteRecord{PageID: "ada-lovelace", Footnote: 3, Claim: "Born in 1815", Quote: "born 10 December 1815", SourceURL: "https://a.example"}
	if err := s.UpsertQuote(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpdateAccuracy(ctx, "ada-lovelace", 3, VerdictInaccurate, 0.2, []string{"date mismatch"}, []string{"quote A"}, "easy"); err != nil {
		t.Fatalf("update accuracy: %v", err)
	}

	// Re-extraction overwrites claim/quote fields only.
	rec.Claim = "Born late 1815"
	rec.Quote = "born in December 1815"
	if err := s.UpsertQuote(ctx, rec); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetQuote(ctx, "ada-lovelace", 3)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Claim != "Born late 1815" {
		t.Fatalf("claim not overwritten: %q", got.Claim)
	}
	if got.Verdict != VerdictInaccurate || got.AccuracyScore != 0.2 {
		t.Fatalf("accuracy fields lost on re-upsert: %+v", got)
	}
	if len(got.Issues) != 1 || got.Issues[0] != "date mismatch" {
		t.Fatalf("issues lost: %v", got.Issues)
	}
}

func TestFlaggedForPageFiltersVerdicts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for fn, verdict := range map[int]string{
		1: VerdictAccurate,
		2: VerdictInaccurate,
		3: VerdictUnsupported,
		4: VerdictMinorIssues,
	} {
		if err := s.UpsertQuote(ctx, QuoteRecord{PageID: "p", Footnote: fn, Claim: "c"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.UpdateAccuracy(ctx, "p", fn, verdict, 0.5, nil, nil, ""); err != nil {
			t.Fatalf("accuracy: %v", err)
		}
	}

	flagged, err := s.FlaggedForPage(ctx, "p")
	if err != nil {
		t.Fatalf("flagged: %v", err)
	}
	if len(flagged) != 2 || flagged[0].Footnote != 2 || flagged[1].Footnote != 3 {
		t.Fatalf("unexpected flagged set %+v", flagged)
	}
	for _, f := range flagged {
		if !f.Flagged() {
			t.Fatalf("record %d should report Flagged", f.Footnote)
		}
	}
}

func TestContentLastFetchWins(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	url := "https://shared.example/paper"
	if err := s.UpsertContent(ctx, ContentRecord{URL: url, Title: "v1", Status: "verified"}); err != nil {
		t.Fatalf("upsert content: %v", err)
	}
	if err := s.UpsertContent(ctx, ContentRecord{URL: url, Title: "v2", Status: "verified"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err := s.GetContent(ctx, url)
	if err != nil || got == nil {
		t.Fatalf("get content: %v %v", got, err)
	}
	if got.Title != "v2" {
		t.Fatalf("last fetch must win, got %q", got.Title)
	}
}

func TestGetMissingReturnsNilNotError(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if rec, err := s.GetQuote(ctx, "nope", 1); err != nil || rec != nil {
		t.Fatalf("missing quote: %v %v", rec, err)
	}
	if rec, err := s.GetContent(ctx, "https://nope.example"); err != nil || rec != nil {
		t.Fatalf("missing content: %v %v", rec, err)
	}
	if rows, err := s.FlaggedForPage(ctx, "nope"); err != nil || len(rows) != 0 {
		t.Fatalf("missing flagged: %v %v", rows, err)
	}
}

func TestAbsentStoreDegradesToEmpty(t *testing.T) {
	s := Absent()
	ctx := context.Background()
	if err := s.UpsertQuote(ctx, QuoteRecord{PageID: "p", Footnote: 1}); err != nil {
		t.Fatalf("absent upsert must not fail: %v", err)
	}
	if rec, err := s.GetQuote(ctx, "p", 1); err != nil || rec != nil {
		t.Fatalf("absent get must be empty: %v %v", rec, err)
	}
	if rows, err := s.QuotesForPage(ctx, "p"); err != nil || rows != nil {
		t.Fatalf("absent list must be empty: %v %v", rows, err)
	}
	if err := s.RecordEdit(ctx, EditEntry{PageID: "p", Tool: "t"}); err != nil {
		t.Fatalf("absent edit must not fail: %v", err)
	}
}

func TestRecordEdit(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	err := s.RecordEdit(ctx, EditEntry{PageID: "p", Tool: "citation-fixer", Agency: "automated", Note: "applied 2 fixes"})
	if err != nil {
		t.Fatalf("record edit: %v", err)
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM page_edits WHERE page_id = 'p'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one audit row, got %d", count)
	}
}
