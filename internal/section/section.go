// Package section decomposes a markdown document into frontmatter, preamble,
// and ##-bounded sections, and puts it back together without drifting
// whitespace. It also renumbers footnotes after restructuring.
package section

import (
	"regexp"
	"strings"
)

// Section is one heading-bounded slice of the document. Body includes the
// heading line. Line numbers are 1-based and informational; edits locate
// sections by exact text, never by line numbers, which may have drifted.
type Section struct {
	Heading   string
	Body      string
	StartLine int
	EndLine   int
}

// Document is the split form of a page.
type Document struct {
	// Frontmatter is the raw block between the leading --- delimiters,
	// without the delimiters themselves. Empty when absent.
	Frontmatter string
	// Preamble is everything after frontmatter and before the first ##.
	Preamble string
	Sections []Section
}

var (
	sectionHeadingRe = regexp.MustCompile(`^##\s`)
	fenceLineRe      = regexp.MustCompile("^\\s*(```|~~~)")
)

// Split parses text into frontmatter, preamble, and sections. Only ##
// headings start sections; ### and deeper stay inside their parent. A ##
// inside an open code fence is content, not a boundary.
func Split(text string) Document {
	var doc Document
	body := text
	lineOffset := 0

	if strings.HasPrefix(body, "---\n") || body == "---" {
		rest := strings.TrimPrefix(body, "---\n")
		if end := strings.Index(rest, "\n---"); end >= 0 {
			doc.Frontmatter = rest[:end]
			after := rest[end+len("\n---"):]
			after = strings.TrimPrefix(after, "\n")
			lineOffset = strings.Count(body[:len(body)-len(after)], "\n")
			body = after
		}
	}

	lines := strings.Split(body, "\n")
	inFence := false
	starts := []int{}
	for i, line := range lines {
		if fenceLineRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if !inFence && sectionHeadingRe.MatchString(line) {
			starts = append(starts, i)
		}
	}

	if len(starts) == 0 {
		doc.Preamble = strings.Trim(body, "\n")
		return doc
	}

	doc.Preamble = strings.Trim(strings.Join(lines[:starts[0]], "\n"), "\n")
	for idx, start := range starts {
		end := len(lines)
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		doc.Sections = append(doc.Sections, Section{
			Heading:   strings.TrimSpace(strings.TrimPrefix(lines[start], "##")),
			Body:      strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n"),
			StartLine: lineOffset + start + 1,
			EndLine:   lineOffset + end,
		})
	}
	return doc
}

var tripleNewlineRe = regexp.MustCompile(`\n{3,}`)

// Reassemble joins the parts with blank-line separators, collapses runs of
// three or more newlines to exactly two, and terminates with exactly one
// trailing newline.
func (d Document) Reassemble() string {
	parts := make([]string, 0, len(d.Sections)+2)
	if d.Frontmatter != "" {
		parts = append(parts, "---\n"+strings.TrimRight(d.Frontmatter, "\n")+"\n---")
	}
	if strings.TrimSpace(d.Preamble) != "" {
		parts = append(parts, strings.TrimRight(d.Preamble, "\n"))
	}
	for _, s := range d.Sections {
		parts = append(parts, strings.TrimRight(s.Body, "\n"))
	}
	out := strings.Join(parts, "\n\n")
	out = tripleNewlineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimRight(out, "\n") + "\n"
}
