// Package integrity provides pure checks that detect structural corruption
// and fabrication signals in footnoted markdown: orphaned references,
// duplicate definitions, sequential fabricated identifiers, and unsourced
// definitions. Checks return raw counts and ratios; scoring lives in
// factors.go so the checks stay reusable on their own.
package integrity

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/citeguard/internal/footnote"
)

// DefaultSequentialRunThreshold is the shortest run of consecutive arXiv-like
// serials treated as suspicious. Genuinely sequential citation ranges exist,
// so this is a tunable heuristic rather than a hard rule.
const DefaultSequentialRunThreshold = 3

// Options tunes the heuristics.
type Options struct {
	// SequentialRunThreshold overrides DefaultSequentialRunThreshold when > 0.
	SequentialRunThreshold int
}

func (o Options) runThreshold() int {
	if o.SequentialRunThreshold > 0 {
		return o.SequentialRunThreshold
	}
	return DefaultSequentialRunThreshold
}

// Result carries the raw output of all four checks over one document body.
type Result struct {
	// OrphanedFootnotes are inline-referenced numbers with no definition.
	OrphanedFootnotes []int
	// TotalRefs is the count of distinct inline-referenced numbers.
	TotalRefs int
	// OrphanRatio is orphaned/total refs, 0 when there are no refs.
	OrphanRatio float64

	// DuplicateFootnoteDefs are numbers defined more than once.
	DuplicateFootnoteDefs []int

	// SequentialArxivIDs is the longest run of consecutive serials sharing a
	// YYMM prefix among deduplicated arXiv-like tokens.
	SequentialArxivIDs int
	// SuspiciousArxivRun is true when the run meets the threshold.
	SuspiciousArxivRun bool

	// UnsourcedFootnotes are defined numbers whose definition (including
	// indented continuation lines) carries no URL.
	UnsourcedFootnotes []int
	// UnsourcedRatio is unsourced/defined, 0 when nothing is defined.
	UnsourcedRatio float64
}

// Analyze runs all four checks over body text. Frontmatter must already be
// stripped by the caller.
func Analyze(body string, opts Options) Result {
	var r Result
	r.OrphanedFootnotes, r.TotalRefs, r.OrphanRatio = orphanedFootnotes(body)
	r.DuplicateFootnoteDefs = duplicateDefinitions(body)
	r.SequentialArxivIDs = longestSequentialArxivRun(arxivTokens(body))
	r.SuspiciousArxivRun = r.SequentialArxivIDs >= opts.runThreshold()
	r.UnsourcedFootnotes, r.UnsourcedRatio = unsourcedDefinitions(body)
	return r
}

// orphanedFootnotes returns inline numbers lacking a definition, the total
// distinct inline count, and the orphan ratio. A high ratio is the main
// signal that a document was truncated mid-generation.
func orphanedFootnotes(body string) ([]int, int, float64) {
	inline := footnote.InlineNumbers(body)
	defined := map[int]struct{}{}
	for _, d := range footnote.ParseDefinitions(body) {
		defined[d.Number] = struct{}{}
	}
	var orphans []int
	for _, n := range inline {
		if _, ok := defined[n]; !ok {
			orphans = append(orphans, n)
		}
	}
	ratio := 0.0
	if len(inline) > 0 {
		ratio = float64(len(orphans)) / float64(len(inline))
	}
	return orphans, len(inline), ratio
}

// duplicateDefinitions returns footnote numbers defined more than once,
// sorted. Duplicates signal merge or copy-paste corruption.
func duplicateDefinitions(body string) []int {
	counts := map[int]int{}
	for _, d := range footnote.ParseDefinitions(body) {
		counts[d.Number]++
	}
	var dups []int
	for n, c := range counts {
		if c > 1 {
			dups = append(dups, n)
		}
	}
	sort.Ints(dups)
	return dups
}

var arxivRe = regexp.MustCompile(`\b(\d{2})(\d{2})\.(\d{5})\b`)

// arxivTokens scans body for arXiv-like YYMM.NNNNN tokens, filters to
// plausible year/month prefixes to avoid false positives from version
// strings, and returns the deduplicated sorted set.
func arxivTokens(body string) []string {
	maxYear := time.Now().Year()%100 + 1
	seen := map[string]struct{}{}
	for _, m := range arxivRe.FindAllStringSubmatch(body, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if year < 7 || year > maxYear || month < 1 || month > 12 {
			continue
		}
		seen[m[1]+m[2]+"."+m[3]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// longestSequentialArxivRun finds the longest run of consecutive serial
// numbers sharing a YYMM prefix. Real arXiv IDs are sparse; a model
// fabricating citations tends to emit consecutive serials.
func longestSequentialArxivRun(tokens []string) int {
	longest, run := 0, 0
	var prevPrefix string
	prevSerial := -2
	for _, tok := range tokens {
		parts := strings.SplitN(tok, ".", 2)
		if len(parts) != 2 {
			continue
		}
		serial, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if parts[0] == prevPrefix && serial == prevSerial+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prevPrefix, prevSerial = parts[0], serial
	}
	return longest
}

var urlRe = regexp.MustCompile(`https?://\S+`)

// unsourcedDefinitions returns defined numbers whose definition text,
// including indented continuation lines, contains no URL at all.
func unsourcedDefinitions(body string) ([]int, float64) {
	lines := strings.Split(body, "\n")
	text := map[int]*strings.Builder{}
	order := []int{}
	current := -1
	for _, line := range lines {
		if footnote.IsDefinitionLine(line) {
			d := footnote.ParseDefinitions(line)[0]
			if _, ok := text[d.Number]; !ok {
				order = append(order, d.Number)
				text[d.Number] = &strings.Builder{}
			}
			current = d.Number
			text[current].WriteString(line)
			text[current].WriteString("\n")
			continue
		}
		// Indented continuations extend the open definition.
		if current >= 0 && strings.TrimSpace(line) != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			text[current].WriteString(line)
			text[current].WriteString("\n")
			continue
		}
		current = -1
	}
	var unsourced []int
	for _, n := range order {
		if !urlRe.MatchString(text[n].String()) {
			unsourced = append(unsourced, n)
		}
	}
	sort.Ints(unsourced)
	ratio := 0.0
	if len(order) > 0 {
		ratio = float64(len(unsourced)) / float64(len(order))
	}
	return unsourced, ratio
}
