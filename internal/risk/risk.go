// Package risk scores a page's hallucination risk from citation, editorial,
// review, and integrity signals. Scoring is additive and bidirectional so
// every point is traceable to a named factor; editors contesting a verdict
// can see exactly which signals produced it.
package risk

import (
	"fmt"

	"github.com/hyperifyio/citeguard/internal/integrity"
)

// Level buckets the clamped score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Bucket thresholds over the clamped [0,100] score.
const (
	mediumThreshold = 40
	highThreshold   = 70
)

// AccuracyStats carries externally supplied accuracy-check counts.
type AccuracyStats struct {
	Checked    int
	Inaccurate int
}

// Input is a snapshot of everything the scorer consumes. Body is optional;
// when present, content-integrity factors are added last.
type Input struct {
	// EntityType is the page's entity type; aliases are resolved before
	// category checks ("researcher" scores as "person").
	EntityType string
	WordCount  int
	// FootnoteCount and AuxiliaryCitations together form total citations.
	FootnoteCount      int
	AuxiliaryCitations int
	ExternalLinks      int
	// Rigor is a 0-10 editorial rating, Quality 0-100.
	Rigor          int
	Quality        int
	HasHumanReview bool
	Accuracy       *AccuracyStats
	Body           string
	// IntegrityOptions tunes the body checks when Body is set.
	IntegrityOptions integrity.Options
}

// Result is a fresh, immutable scoring outcome.
type Result struct {
	Level   Level
	Score   int
	Factors []string
	// IntegrityIssues holds the integrity analysis when Body was supplied.
	IntegrityIssues *integrity.Result
}

// baseline reflects that all content is machine-generated; risk never
// starts at zero.
const baseline = 25

var entityAliases = map[string]string{
	"researcher":   "person",
	"scientist":    "person",
	"author":       "person",
	"politician":   "person",
	"company":      "organization",
	"institution":  "organization",
	"lab":          "organization",
	"battle":       "event",
	"conference":   "event",
	"city":         "place",
	"country":      "place",
	"algorithm":    "concept",
	"theory":       "concept",
	"protocol":     "technology",
	"format":       "technology",
	"glossary":     "index",
	"bibliography": "index",
	"comparison":   "table",
	"chart":        "diagram",
}

// CanonicalEntityType resolves known aliases to their canonical type.
func CanonicalEntityType(t string) string {
	if c, ok := entityAliases[t]; ok {
		return c
	}
	return t
}

var (
	biographicalTypes = map[string]struct{}{"person": {}}
	factualTypes      = map[string]struct{}{"event": {}, "organization": {}, "place": {}}
	structuralTypes   = map[string]struct{}{"concept": {}, "technology": {}}
	structuredFormats = map[string]struct{}{"table": {}, "diagram": {}, "index": {}, "timeline": {}}
)

// Accuracy failure tiers; the highest applicable tier applies alone.
const (
	anyInaccurateDelta  = 15
	thirdInaccurateTier = 25
	halfInaccurateTier  = 35
)

// Assess computes the risk score and level for one input snapshot. The
// result is recomputed on every call and never mutated.
func Assess(in Input) Result {
	score := baseline
	factors := []string{"machine-generated-baseline"}
	add := func(delta int, name string) {
		score += delta
		factors = append(factors, name)
	}

	entity := CanonicalEntityType(in.EntityType)
	if _, ok := biographicalTypes[entity]; ok {
		add(15, "biographical-entity")
	}
	if _, ok := factualTypes[entity]; ok {
		add(10, "factual-entity")
	}

	citations := in.FootnoteCount + in.AuxiliaryCitations
	if citations == 0 && in.WordCount > 500 {
		add(25, "no-citations-long-page")
	}
	density := 0.0
	if in.WordCount > 0 {
		density = float64(citations) / float64(in.WordCount)
	}
	switch {
	case in.WordCount > 0 && density >= 1.0/75:
		add(-15, "very-high-citation-density")
	case in.WordCount > 0 && density >= 1.0/150:
		add(-10, "high-citation-density")
	case in.WordCount > 300 && density < 1.0/300:
		add(10, "low-citation-density")
	}

	if in.Rigor >= 8 {
		add(-10, "high-rigor")
	} else if in.Rigor <= 3 {
		add(10, "low-rigor")
	}
	if in.Quality >= 80 {
		add(-10, "high-quality")
	} else if in.Quality < 40 {
		add(10, "low-quality")
	}
	if in.ExternalLinks < 2 {
		add(5, "few-external-sources")
	}

	if _, ok := structuralTypes[entity]; ok {
		add(-10, "structural-entity")
	}
	if _, ok := structuredFormats[entity]; ok {
		add(-15, "structured-format")
	}
	if in.WordCount > 0 && in.WordCount < 100 {
		add(-10, "stub-page")
	}

	if in.HasHumanReview {
		add(-15, "human-reviewed")
	} else {
		add(10, "no-human-review")
	}

	if in.Accuracy != nil && in.Accuracy.Checked > 0 && in.Accuracy.Inaccurate > 0 {
		rate := float64(in.Accuracy.Inaccurate) / float64(in.Accuracy.Checked)
		switch {
		case rate > 0.5:
			add(halfInaccurateTier, "accuracy-failures-over-half")
		case rate > 0.3:
			add(thirdInaccurateTier, "accuracy-failures-over-third")
		default:
			add(anyInaccurateDelta, "accuracy-failures-present")
		}
	}

	var integrityResult *integrity.Result
	if in.Body != "" {
		r := integrity.Analyze(in.Body, in.IntegrityOptions)
		integrityResult = &r
		for _, f := range integrity.Factors(r) {
			add(f.Delta, f.Name)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Result{
		Level:           levelFor(score),
		Score:           score,
		Factors:         factors,
		IntegrityIssues: integrityResult,
	}
}

func levelFor(score int) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// String renders a result for log lines and CLI output.
func (r Result) String() string {
	return fmt.Sprintf("%s (%d)", r.Level, r.Score)
}
