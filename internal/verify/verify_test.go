package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/citeguard/internal/fetch"
)

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	return &Verifier{
		Fetch:      &fetch.Client{UserAgent: "citeguard-test", Timeout: 2 * time.Second},
		ArchiveDir: t.TempDir(),
		BatchDelay: time.Millisecond,
	}
}

func TestVerifyCitationVerifiedHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Paper</title></head><body><p>Findings text.</p></body></html>"))
	}))
	defer srv.Close()

	rec := testVerifier(t).VerifyCitation(context.Background(), 1, srv.URL)
	if rec.Status != StatusVerified {
		t.Fatalf("expected verified, got %q (%s)", rec.Status, rec.Note)
	}
	if rec.Title != "Paper" {
		t.Fatalf("title not extracted: %q", rec.Title)
	}
	if !strings.Contains(rec.Snippet, "Findings text.") {
		t.Fatalf("snippet missing: %q", rec.Snippet)
	}
}

func TestVerifyCitationBrokenOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	rec := testVerifier(t).VerifyCitation(context.Background(), 1, srv.URL)
	if rec.Status != StatusBroken || rec.HTTPStatus != 404 {
		t.Fatalf("expected broken/404, got %+v", rec)
	}
}

func TestVerifyCitationTimeoutUnverifiable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	v := testVerifier(t)
	v.Fetch.Timeout = 50 * time.Millisecond
	rec := v.VerifyCitation(context.Background(), 1, srv.URL)
	if rec.Status != StatusUnverifiable || rec.Note != "timeout" {
		t.Fatalf("expected unverifiable timeout, got %+v", rec)
	}
}

func TestVerifyCitationPDFAcceptedWithoutExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	rec := testVerifier(t).VerifyCitation(context.Background(), 1, srv.URL)
	if rec.Status != StatusVerified || rec.Note != "pdf-accepted" {
		t.Fatalf("expected pdf acceptance, got %+v", rec)
	}
	if rec.Title != "" {
		t.Fatalf("pdf must not attempt text extraction, got title %q", rec.Title)
	}
}

func TestVerifyCitationNonHTMLPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":1}`))
	}))
	defer srv.Close()

	rec := testVerifier(t).VerifyCitation(context.Background(), 1, srv.URL)
	if rec.Status != StatusVerified || rec.Note != "non-html content" {
		t.Fatalf("expected placeholder acceptance, got %+v", rec)
	}
}

func TestVerifyCitationUnscrapableShortCircuits(t *testing.T) {
	rec := testVerifier(t).VerifyCitation(context.Background(), 1, "https://twitter.com/someone/status/1")
	if rec.Status != StatusUnverifiable || rec.Note != "unscrapable-domain" {
		t.Fatalf("expected unscrapable short-circuit, got %+v", rec)
	}
	if rec.HTTPStatus != 0 {
		t.Fatalf("no network call expected, got HTTP status %d", rec.HTTPStatus)
	}
}

func TestDomainPolicySets(t *testing.T) {
	if !IsUnscrapable("www.x.com") {
		t.Fatalf("www.x.com must be unscrapable")
	}
	if !IsUnscrapable("mobile.twitter.com") {
		t.Fatalf("subdomains must inherit unscrapable status")
	}
	if IsUnscrapable("example.com") {
		t.Fatalf("example.com must not be unscrapable")
	}
	if !IsRestrictedPublisher("www.jstor.org") {
		t.Fatalf("jstor must be restricted")
	}
}

func TestVerifyPageWritesAtomicArchiveWithTotals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(404)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>T</title></head><body>ok</body></html>"))
	}))
	defer srv.Close()

	body := strings.Join([]string{
		"Claim one[^1] and two[^2] and three[^3].",
		"",
		"[^1]: " + srv.URL + "/good",
		"[^2]: " + srv.URL + "/missing",
		"[^3]: https://twitter.com/a/status/1",
	}, "\n")

	v := testVerifier(t)
	a, err := v.VerifyPage(context.Background(), "test-page", body)
	if err != nil {
		t.Fatalf("verify page: %v", err)
	}
	if a.Totals.Verified != 1 || a.Totals.Broken != 1 || a.Totals.Unverifiable != 1 {
		t.Fatalf("unexpected totals %+v", a.Totals)
	}

	loaded, err := ReadArchive(v.ArchiveDir, "test-page")
	if err != nil || loaded == nil {
		t.Fatalf("read archive: %v %v", loaded, err)
	}
	if loaded.PageID != "test-page" || len(loaded.Citations) != 3 {
		t.Fatalf("archive round trip broken: %+v", loaded)
	}
	if loaded.VerifiedAt.IsZero() {
		t.Fatalf("verifiedAt must be set")
	}
}

func TestReadArchiveMissingIsNil(t *testing.T) {
	a, err := ReadArchive(t.TempDir(), "nope")
	if err != nil || a != nil {
		t.Fatalf("missing archive must be nil, got %v %v", a, err)
	}
}
