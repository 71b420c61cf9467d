package integrity

import "fmt"

// Factor is one named risk contribution derived from a check. Deltas are
// summed by the consumer and never capped individually; only the aggregate
// risk score is clamped.
type Factor struct {
	Name   string
	Delta  int
	Detail string
}

// Escalation threshold shared by the orphan and unsourced checks.
const severeRatio = 0.5

// Fixed point deltas per factor.
const (
	weightOrphaned        = 15
	weightSevereTrunc     = 30
	weightDuplicateDefs   = 10
	weightSequentialArxiv = 25
	weightUnsourced       = 10
	weightMostlyUnsourced = 20
)

// Factors maps a Result to its additive risk factors. The mapping is
// order-independent: each check contributes at most one factor, and the
// orphan and unsourced checks each pick their escalated form instead of
// stacking both.
func Factors(r Result) []Factor {
	var out []Factor
	if len(r.OrphanedFootnotes) > 0 {
		if r.OrphanRatio > severeRatio {
			out = append(out, Factor{
				Name:   "severe-truncation",
				Delta:  weightSevereTrunc,
				Detail: fmt.Sprintf("%d of %d inline refs orphaned", len(r.OrphanedFootnotes), r.TotalRefs),
			})
		} else {
			out = append(out, Factor{
				Name:   "orphaned-footnotes",
				Delta:  weightOrphaned,
				Detail: fmt.Sprintf("%d of %d inline refs orphaned", len(r.OrphanedFootnotes), r.TotalRefs),
			})
		}
	}
	if len(r.DuplicateFootnoteDefs) > 0 {
		out = append(out, Factor{
			Name:   "duplicate-footnote-definitions",
			Delta:  weightDuplicateDefs,
			Detail: fmt.Sprintf("%d numbers defined more than once", len(r.DuplicateFootnoteDefs)),
		})
	}
	if r.SuspiciousArxivRun {
		out = append(out, Factor{
			Name:   "sequential-arxiv-ids",
			Delta:  weightSequentialArxiv,
			Detail: fmt.Sprintf("run of %d consecutive serials", r.SequentialArxivIDs),
		})
	}
	if len(r.UnsourcedFootnotes) > 0 {
		if r.UnsourcedRatio > severeRatio {
			out = append(out, Factor{
				Name:   "mostly-unsourced-footnotes",
				Delta:  weightMostlyUnsourced,
				Detail: fmt.Sprintf("%.0f%% of definitions have no URL", r.UnsourcedRatio*100),
			})
		} else {
			out = append(out, Factor{
				Name:   "unsourced-footnotes",
				Delta:  weightUnsourced,
				Detail: fmt.Sprintf("%d definitions have no URL", len(r.UnsourcedFootnotes)),
			})
		}
	}
	return out
}

// Score sums factor deltas and returns the names alongside the total.
func Score(r Result) (int, []string) {
	total := 0
	var names []string
	for _, f := range Factors(r) {
		total += f.Delta
		names = append(names, f.Name)
	}
	return total, names
}
