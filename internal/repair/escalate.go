package repair

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/hyperifyio/citeguard/internal/footnote"
)

// Rewrite length bounds relative to the original section. Anything outside
// them is a hallucinated or truncated rewrite, not a repair.
const (
	minRewriteRatio = 0.3
	maxRewriteRatio = 3.0
)

// entityLinkRe matches JSX-like embedded components (capitalized tag name).
// These markers must survive every rewrite byte-for-byte.
var entityLinkRe = regexp.MustCompile(`<[A-Z][A-Za-z0-9]*(?:\s[^<>]*)?/?>`)

// EntityMarkers returns the embedded component markers of text, sorted, with
// duplicates kept. Two texts carry the same markers iff the slices are equal.
func EntityMarkers(text string) []string {
	markers := entityLinkRe.FindAllString(text, -1)
	sort.Strings(markers)
	return markers
}

// ValidateRewrite applies the structural safety checks to a proposed section
// rewrite. preserve lists footnote numbers whose inline references must
// survive. A non-nil error means the rewrite is discarded whole, never
// partially applied.
func ValidateRewrite(original, rewritten string, preserve []int) error {
	ratio := float64(len(rewritten)) / float64(len(original))
	if ratio < minRewriteRatio || ratio > maxRewriteRatio {
		return fmt.Errorf("rewrite length %.0f%% of original is outside %d%%..%d%%",
			ratio*100, int(minRewriteRatio*100), int(maxRewriteRatio*100))
	}
	for _, n := range preserve {
		if footnote.RefCount(original, n) > 0 && footnote.RefCount(rewritten, n) == 0 {
			return fmt.Errorf("rewrite dropped non-removable footnote [^%d]", n)
		}
	}
	before := EntityMarkers(original)
	after := EntityMarkers(rewritten)
	if len(before) != len(after) {
		return fmt.Errorf("rewrite changed embedded entity markers (%d -> %d)", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			return fmt.Errorf("rewrite changed embedded entity marker %q", before[i])
		}
	}
	return nil
}
