package footnote

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Format classifies the shape of a footnote definition body.
type Format string

const (
	// FormatMarkdownLink is a `[Title](URL)` link, possibly embedded in
	// surrounding prose such as `Author, "[Title](URL)," Journal, 2021.`
	FormatMarkdownLink Format = "markdown-link"
	// FormatTextURL is descriptive text followed by a trailing bare URL.
	FormatTextURL Format = "text-url"
	// FormatBareURL is a URL and nothing else.
	FormatBareURL Format = "bare-url"
	// FormatNoURL carries no URL at all.
	FormatNoURL Format = "no-url"
)

// Definition is one parsed `[^N]: ...` line.
type Definition struct {
	Number int
	// Line is the 1-based line number of the definition.
	Line   int
	Raw    string
	Format Format
	URL    string
	// Title is the link text for markdown links, or a synthesized
	// human-readable title for the text-url form.
	Title string
}

// Citation pairs a URL-bearing definition with the claim it supports.
type Citation struct {
	Footnote     int
	URL          string
	LinkText     string
	ClaimContext string
	// RefLine is the 1-based line of the first inline reference, or 0 when
	// the footnote is defined but never referenced.
	RefLine int
}

var (
	defRe       = regexp.MustCompile(`^\[\^(\d+)\]:\s*(.*)$`)
	inlineRefRe = regexp.MustCompile(`\[\^(\d+)\]`)

	mdLinkRe  = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
	textURLRe = regexp.MustCompile(`^(.*?)[,:]?\s*(https?://\S+)[.,]?\s*$`)
	bareURLRe = regexp.MustCompile(`^(https?://\S+)[.,]?$`)
	quotedRe  = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
)

// classifier pairs a match predicate with a normalizer that produces the
// tagged (format, url, title) triple. Evaluated strictly in order; the first
// match wins.
type classifier struct {
	match     func(s string) []string
	normalize func(m []string) (Format, string, string)
}

var classifiers = []classifier{
	{
		match: func(s string) []string { return mdLinkRe.FindStringSubmatch(s) },
		normalize: func(m []string) (Format, string, string) {
			return FormatMarkdownLink, m[2], strings.TrimSpace(m[1])
		},
	},
	{
		match: func(s string) []string {
			m := textURLRe.FindStringSubmatch(strings.TrimSpace(s))
			if m == nil || strings.TrimSpace(m[1]) == "" {
				return nil
			}
			return m
		},
		normalize: func(m []string) (Format, string, string) {
			return FormatTextURL, m[2], synthesizeTitle(m[1])
		},
	},
	{
		match: func(s string) []string { return bareURLRe.FindStringSubmatch(strings.TrimSpace(s)) },
		normalize: func(m []string) (Format, string, string) {
			return FormatBareURL, m[1], ""
		},
	},
}

// Classify determines the format of a definition body using the first
// matching shape in priority order: markdown link, text-then-URL, bare URL,
// then no URL.
func Classify(raw string) (Format, string, string) {
	for _, c := range classifiers {
		if m := c.match(raw); m != nil {
			return c.normalize(m)
		}
	}
	return FormatNoURL, "", ""
}

// synthesizeTitle extracts a quoted substring when present, otherwise the
// stripped descriptive text.
func synthesizeTitle(text string) string {
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	return strings.Trim(strings.TrimSpace(text), ` ,.:;—-"'`)
}

// ParseDefinitions returns every `[^N]: ...` definition in body, classified,
// in document order. Duplicate numbers are all returned; callers that need
// uniqueness deduplicate themselves.
func ParseDefinitions(body string) []Definition {
	lines := strings.Split(body, "\n")
	defs := make([]Definition, 0, 8)
	for i, line := range lines {
		m := defRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		format, url, title := Classify(m[2])
		defs = append(defs, Definition{
			Number: n,
			Line:   i + 1,
			Raw:    m[2],
			Format: format,
			URL:    url,
			Title:  title,
		})
	}
	return defs
}

// IsDefinitionLine reports whether line is a footnote definition.
func IsDefinitionLine(line string) bool {
	return defRe.MatchString(line)
}

// InlineNumbers returns the deduplicated, sorted set of footnote numbers
// referenced inline, skipping definition lines.
func InlineNumbers(body string) []int {
	seen := map[int]struct{}{}
	for _, line := range strings.Split(body, "\n") {
		if IsDefinitionLine(line) {
			continue
		}
		for _, m := range inlineRefRe.FindAllStringSubmatch(line, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			seen[n] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// HasInlineRef reports whether line contains an inline reference to exactly
// footnote n. Matching the full digit run keeps [^1] from matching inside
// [^10] or [^12].
func HasInlineRef(line string, n int) bool {
	for _, m := range inlineRefRe.FindAllStringSubmatch(line, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil && v == n {
			return true
		}
	}
	return false
}

// RefCount counts inline references to footnote n across body, skipping
// definition lines.
func RefCount(body string, n int) int {
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if IsDefinitionLine(line) {
			continue
		}
		for _, m := range inlineRefRe.FindAllStringSubmatch(line, -1) {
			if v, err := strconv.Atoi(m[1]); err == nil && v == n {
				count++
			}
		}
	}
	return count
}

// ExtractCitations parses body and returns one Citation per URL-bearing
// definition, with the claim context around its first inline reference.
// Definitions without a URL are skipped; use ParseDefinitions to see them.
func ExtractCitations(body string) []Citation {
	defs := ParseDefinitions(body)
	cites := make([]Citation, 0, len(defs))
	seen := map[int]struct{}{}
	for _, d := range defs {
		if d.URL == "" {
			continue
		}
		if _, dup := seen[d.Number]; dup {
			continue
		}
		seen[d.Number] = struct{}{}
		ctx, refLine := ClaimContext(body, d.Number)
		cites = append(cites, Citation{
			Footnote:     d.Number,
			URL:          d.URL,
			LinkText:     d.Title,
			ClaimContext: ctx,
			RefLine:      refLine,
		})
	}
	return cites
}
