package repair

import (
	"sort"
	"strings"

	"github.com/hyperifyio/citeguard/internal/judge"
)

// Edit is one resolved span replacement against an immutable source buffer.
// Start and End are byte offsets into the buffer the edit was resolved on;
// they are meaningless against any other buffer.
type Edit struct {
	Start       int
	End         int
	Replacement string
	Footnote    int
}

// ApplyOutcome reports what happened to a batch of proposals.
type ApplyOutcome struct {
	Applied int
	Skipped int
	// SkippedOriginals holds the original text of each proposal whose
	// exact text was not found in the current document.
	SkippedOriginals []string
}

// ResolveProposals locates each proposal's original text in doc by exact
// substring match. Proposals whose text is absent, empty, or identical to
// the replacement are skipped and reported. Overlapping spans keep the
// first resolved edit and skip the later one.
func ResolveProposals(doc string, proposals []judge.FixProposal) ([]Edit, ApplyOutcome) {
	var edits []Edit
	var out ApplyOutcome
	for _, p := range proposals {
		if p.Original == "" || p.Original == p.Replacement {
			out.Skipped++
			out.SkippedOriginals = append(out.SkippedOriginals, p.Original)
			continue
		}
		start := strings.Index(doc, p.Original)
		if start < 0 {
			out.Skipped++
			out.SkippedOriginals = append(out.SkippedOriginals, p.Original)
			continue
		}
		e := Edit{Start: start, End: start + len(p.Original), Replacement: p.Replacement, Footnote: p.Footnote}
		if overlapsAny(edits, e) {
			out.Skipped++
			out.SkippedOriginals = append(out.SkippedOriginals, p.Original)
			continue
		}
		edits = append(edits, e)
	}
	out.Applied = len(edits)
	return edits, out
}

func overlapsAny(edits []Edit, e Edit) bool {
	for _, x := range edits {
		if e.Start < x.End && x.Start < e.End {
			return true
		}
	}
	return false
}

// ApplyEdits splices the edits into doc in strictly descending start-offset
// order, so no applied replacement can shift the offset of one not yet
// applied. Every edit is verified against the buffer before splicing; a
// stale span is dropped rather than corrupting the document.
func ApplyEdits(doc string, edits []Edit) string {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := doc
	for _, e := range sorted {
		if e.Start < 0 || e.End > len(doc) || e.Start > e.End {
			continue
		}
		if out[e.Start:e.End] != doc[e.Start:e.End] {
			continue
		}
		out = out[:e.Start] + e.Replacement + out[e.End:]
	}
	return out
}
