package repair

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hyperifyio/citeguard/internal/footnote"
	"github.com/hyperifyio/citeguard/internal/search"
)

const maxQueryChars = 200

var (
	inlineMarkerRe = regexp.MustCompile(`\[\^\d+\]`)
	// First sentence ends at the first terminal punctuation followed by
	// whitespace or end of text.
	sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)
)

// BuildQuery derives a search query from a claim: embedded markup and
// footnote markers are stripped, then the first sentence is used when one
// exists, otherwise the text is truncated to a fixed length.
func BuildQuery(claim string) string {
	q := entityLinkRe.ReplaceAllString(claim, " ")
	q = inlineMarkerRe.ReplaceAllString(q, "")
	q = strings.Join(strings.Fields(q), " ")
	if loc := sentenceEndRe.FindStringIndex(q); loc != nil {
		q = q[:loc[0]]
	}
	if len(q) > maxQueryChars {
		q = q[:maxQueryChars]
		if i := strings.LastIndex(q, " "); i > 0 {
			q = q[:i]
		}
	}
	return strings.TrimSpace(q)
}

// FindReplacementSource queries the provider and returns the first result
// whose host is not the excluded domain. A nil result with nil error means
// the search ran but produced no usable candidate.
func FindReplacementSource(ctx context.Context, p search.Provider, query, excludeDomain string) (*search.Result, error) {
	results, err := p.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		host := hostOf(r.URL)
		if host == "" {
			continue
		}
		if excludeDomain != "" && sameOrSubdomain(host, excludeDomain) {
			continue
		}
		res := r
		return &res, nil
	}
	return nil, nil
}

// ReplaceDefinitionSource rewrites footnote n's definition line so it cites
// the new source, leaving every other line untouched. The definition is
// rewritten in the markdown-link form regardless of its prior format.
func ReplaceDefinitionSource(doc string, n int, title, newURL string) (string, bool) {
	lines := strings.Split(doc, "\n")
	prefix := fmt.Sprintf("[^%d]:", n)
	for i, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		defs := footnote.ParseDefinitions(line)
		if len(defs) != 1 || defs[0].Number != n {
			continue
		}
		if title == "" {
			title = newURL
		}
		lines[i] = fmt.Sprintf("[^%d]: [%s](%s)", n, title, newURL)
		return strings.Join(lines, "\n"), true
	}
	return doc, false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

func sameOrSubdomain(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "www."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
