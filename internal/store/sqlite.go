package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

// Schema for the citeguard tables. Applied on open; CREATE IF NOT EXISTS
// only, no migration machinery.
const schema = `
CREATE TABLE IF NOT EXISTS citation_quotes (
	page_id TEXT NOT NULL,
	footnote INTEGER NOT NULL,
	claim TEXT NOT NULL DEFAULT '',
	quote TEXT NOT NULL DEFAULT '',
	quote_location TEXT NOT NULL DEFAULT '',
	verification_method TEXT NOT NULL DEFAULT '',
	verification_score REAL NOT NULL DEFAULT 0,
	source_url TEXT NOT NULL DEFAULT '',
	source_title TEXT NOT NULL DEFAULT '',
	verdict TEXT NOT NULL DEFAULT '',
	accuracy_score REAL NOT NULL DEFAULT 0,
	issues TEXT NOT NULL DEFAULT '[]',
	supporting_quotes TEXT NOT NULL DEFAULT '[]',
	difficulty TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY (page_id, footnote)
);
CREATE TABLE IF NOT EXISTS citation_content (
	url TEXT PRIMARY KEY,
	html TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS page_edits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	agency TEXT NOT NULL,
	note TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quotes_verdict ON citation_quotes(page_id, verdict);
CREATE INDEX IF NOT EXISTS idx_edits_page ON page_edits(page_id);
`

// contentCacheTTL bounds the in-memory layer in front of citation_content,
// so repeated citations of one URL within a batch hit the database once.
const contentCacheTTL = 15 * time.Minute

// SQLite is the Store implementation backed by modernc.org/sqlite.
type SQLite struct {
	db      *sql.DB
	content *gocache.Cache
}

// Open opens (creating when needed) the database at path and applies the
// schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent page processing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{
		db:      db,
		content: gocache.New(contentCacheTTL, 2*contentCacheTTL),
	}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) UpsertQuote(ctx context.Context, rec QuoteRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO citation_quotes
			(page_id, footnote, claim, quote, quote_location,
			 verification_method, verification_score, source_url, source_title, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id, footnote) DO UPDATE SET
			claim = excluded.claim,
			quote = excluded.quote,
			quote_location = excluded.quote_location,
			verification_method = excluded.verification_method,
			verification_score = excluded.verification_score,
			source_url = excluded.source_url,
			source_title = excluded.source_title,
			updated_at = excluded.updated_at`,
		rec.PageID, rec.Footnote, rec.Claim, rec.Quote, rec.QuoteLocation,
		rec.VerificationMethod, rec.VerificationScore, rec.SourceURL, rec.SourceTitle,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert quote (%s, %d): %w", rec.PageID, rec.Footnote, err)
	}
	return nil
}

func (s *SQLite) UpdateAccuracy(ctx context.Context, pageID string, fn int, verdict string, score float64, issues, supportingQuotes []string, difficulty string) error {
	issuesJSON, _ := json.Marshal(emptyIfNil(issues))
	quotesJSON, _ := json.Marshal(emptyIfNil(supportingQuotes))
	_, err := s.db.ExecContext(ctx, `
		UPDATE citation_quotes SET
			verdict = ?, accuracy_score = ?, issues = ?, supporting_quotes = ?,
			difficulty = ?, updated_at = ?
		WHERE page_id = ? AND footnote = ?`,
		verdict, score, string(issuesJSON), string(quotesJSON), difficulty,
		time.Now().UTC().Format(time.RFC3339), pageID, fn)
	if err != nil {
		return fmt.Errorf("update accuracy (%s, %d): %w", pageID, fn, err)
	}
	return nil
}

const quoteColumns = `page_id, footnote, claim, quote, quote_location,
	verification_method, verification_score, source_url, source_title,
	verdict, accuracy_score, issues, supporting_quotes, difficulty, updated_at`

func (s *SQLite) GetQuote(ctx context.Context, pageID string, fn int) (*QuoteRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM citation_quotes WHERE page_id = ? AND footnote = ?`,
		pageID, fn)
	rec, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLite) QuotesForPage(ctx context.Context, pageID string) ([]QuoteRecord, error) {
	return s.queryQuotes(ctx,
		`SELECT `+quoteColumns+` FROM citation_quotes WHERE page_id = ? ORDER BY footnote`,
		pageID)
}

func (s *SQLite) FlaggedForPage(ctx context.Context, pageID string) ([]QuoteRecord, error) {
	return s.queryQuotes(ctx,
		`SELECT `+quoteColumns+` FROM citation_quotes
		 WHERE page_id = ? AND verdict IN (?, ?) ORDER BY footnote`,
		pageID, VerdictInaccurate, VerdictUnsupported)
}

func (s *SQLite) queryQuotes(ctx context.Context, query string, args ...any) ([]QuoteRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()
	var out []QuoteRecord
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (*QuoteRecord, error) {
	var rec QuoteRecord
	var issues, quotes, updated string
	err := row.Scan(&rec.PageID, &rec.Footnote, &rec.Claim, &rec.Quote, &rec.QuoteLocation,
		&rec.VerificationMethod, &rec.VerificationScore, &rec.SourceURL, &rec.SourceTitle,
		&rec.Verdict, &rec.AccuracyScore, &issues, &quotes, &rec.Difficulty, &updated)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(issues), &rec.Issues)
	_ = json.Unmarshal([]byte(quotes), &rec.SupportingQuotes)
	if t, err := time.Parse(time.RFC3339, updated); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func (s *SQLite) UpsertContent(ctx context.Context, rec ContentRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO citation_content (url, html, text, title, status, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			html = excluded.html,
			text = excluded.text,
			title = excluded.title,
			status = excluded.status,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at`,
		rec.URL, rec.HTML, rec.Text, rec.Title, rec.Status, rec.ContentHash,
		rec.FetchedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", rec.URL, err)
	}
	s.content.Set(rec.URL, rec, gocache.DefaultExpiration)
	return nil
}

func (s *SQLite) GetContent(ctx context.Context, url string) (*ContentRecord, error) {
	if v, ok := s.content.Get(url); ok {
		rec := v.(ContentRecord)
		return &rec, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT url, html, text, title, status, content_hash, fetched_at
		 FROM citation_content WHERE url = ?`, url)
	var rec ContentRecord
	var fetched string
	err := row.Scan(&rec.URL, &rec.HTML, &rec.Text, &rec.Title, &rec.Status, &rec.ContentHash, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content %s: %w", url, err)
	}
	if t, err := time.Parse(time.RFC3339, fetched); err == nil {
		rec.FetchedAt = t
	}
	s.content.Set(url, rec, gocache.DefaultExpiration)
	return &rec, nil
}

func (s *SQLite) RecordEdit(ctx context.Context, entry EditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_edits (page_id, tool, agency, note, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.PageID, entry.Tool, entry.Agency, entry.Note,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record edit for %s: %w", entry.PageID, err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
