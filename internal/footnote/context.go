package footnote

import (
	"regexp"
	"strings"
)

// contextRadius is the coarse window used for prompt context.
const contextRadius = 10

var (
	headingRe  = regexp.MustCompile(`^##{1,2}\s`)
	listItemRe = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s`)
	fenceRe    = regexp.MustCompile("^\\s*(```|~~~)")
)

// ClaimContext locates the first line carrying an inline reference to
// footnote n (definition lines do not count) and returns a window of up to
// ten lines on each side, plus the 1-based reference line. When the
// reference sits inside a markdown list item, only that item and its
// indented continuation lines are returned, so sibling items never bleed
// into prompts built from the context.
func ClaimContext(body string, n int) (string, int) {
	lines := strings.Split(body, "\n")
	ref := -1
	for i, line := range lines {
		if IsDefinitionLine(line) {
			continue
		}
		if HasInlineRef(line, n) {
			ref = i
			break
		}
	}
	if ref < 0 {
		return "", 0
	}
	if start, end, ok := listItemBounds(lines, ref); ok {
		return strings.Join(lines[start:end], "\n"), ref + 1
	}
	start := ref - contextRadius
	if start < 0 {
		start = 0
	}
	end := ref + contextRadius + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n"), ref + 1
}

// listItemBounds returns the [start,end) line range of the list item
// containing line i, including continuation lines indented past the item
// marker. ok is false when line i is not part of a list item.
func listItemBounds(lines []string, i int) (int, int, bool) {
	start := i
	var indent int
	for {
		if m := listItemRe.FindStringSubmatch(lines[start]); m != nil {
			indent = len(m[1])
			break
		}
		// A continuation line must be indented; anything flush-left that is
		// not a marker means we are not inside a list item.
		if start == 0 || strings.TrimSpace(lines[start]) == "" || leadingSpaces(lines[start]) == 0 {
			return 0, 0, false
		}
		start--
	}
	end := i + 1
	for end < len(lines) {
		line := lines[end]
		if strings.TrimSpace(line) == "" {
			break
		}
		if listItemRe.MatchString(line) {
			break
		}
		if leadingSpaces(line) <= indent {
			break
		}
		end++
	}
	return start, end, true
}

func leadingSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
			continue
		}
		if r == '\t' {
			n += 4
			continue
		}
		break
	}
	return n
}

// SectionContext returns the heading-bounded section around the first inline
// reference to footnote n: bounded above by the nearest preceding ## or ###
// heading (or document start) and below by the next heading or the footnote
// definition block. Headings inside open code fences do not bound, and the
// walk stops rather than crossing a fence boundary.
func SectionContext(body string, n int) (string, bool) {
	lines := strings.Split(body, "\n")
	ref := -1
	for i, line := range lines {
		if IsDefinitionLine(line) {
			continue
		}
		if HasInlineRef(line, n) {
			ref = i
			break
		}
	}
	if ref < 0 {
		return "", false
	}

	// Fence state per line, computed once from the top so headings inside
	// open fences can be ignored in both directions.
	open := fenceStates(lines)

	start := 0
	for i := ref; i >= 0; i-- {
		if fenceRe.MatchString(lines[i]) {
			start = i + 1
			break
		}
		if headingRe.MatchString(lines[i]) && !open[i] {
			start = i
			break
		}
	}
	end := len(lines)
	for i := ref + 1; i < len(lines); i++ {
		if fenceRe.MatchString(lines[i]) {
			end = i
			break
		}
		if (headingRe.MatchString(lines[i]) && !open[i]) || IsDefinitionLine(lines[i]) {
			end = i
			break
		}
	}
	if start > end {
		start = end
	}
	return strings.Join(lines[start:end], "\n"), true
}

// fenceStates returns, per line, whether a code fence is open at that line.
func fenceStates(lines []string) []bool {
	open := make([]bool, len(lines))
	inFence := false
	for i, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			open[i] = true // the fence line itself never bounds a section
			continue
		}
		open[i] = inFence
	}
	return open
}
