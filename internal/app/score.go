package app

import (
	"context"
	"strings"

	"github.com/hyperifyio/citeguard/internal/footnote"
	"github.com/hyperifyio/citeguard/internal/integrity"
	"github.com/hyperifyio/citeguard/internal/page"
	"github.com/hyperifyio/citeguard/internal/risk"
	"github.com/hyperifyio/citeguard/internal/store"
)

// PageScore couples one page with its risk result.
type PageScore struct {
	PageID string
	Risk   risk.Result
}

// ScorePage builds the risk input from the page's frontmatter, body, and
// stored accuracy rows, then scores it. The store may be absent; the
// accuracy tiers simply contribute nothing.
func ScorePage(ctx context.Context, st store.Store, p *page.Page, opts integrity.Options) (*PageScore, error) {
	meta, err := p.Meta()
	if err != nil {
		return nil, err
	}

	in := risk.Input{
		EntityType:       metaString(meta, "entityType", "entity_type", "type"),
		WordCount:        len(strings.Fields(p.Body)),
		FootnoteCount:    len(footnote.ParseDefinitions(p.Body)),
		ExternalLinks:    metaInt(meta, "externalLinks", "external_links"),
		Rigor:            metaInt(meta, "rigor"),
		Quality:          metaInt(meta, "quality"),
		HasHumanReview:   metaBool(meta, "humanReviewed", "human_reviewed"),
		Body:             p.Body,
		IntegrityOptions: opts,
	}

	rows, err := st.QuotesForPage(ctx, p.ID)
	if err == nil && len(rows) > 0 {
		stats := risk.AccuracyStats{}
		for _, row := range rows {
			if row.Verdict == "" {
				continue
			}
			stats.Checked++
			if row.Flagged() {
				stats.Inaccurate++
			}
		}
		if stats.Checked > 0 {
			in.Accuracy = &stats
		}
	}

	return &PageScore{PageID: p.ID, Risk: risk.Assess(in)}, nil
}

func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k].(string); ok {
			return v
		}
	}
	return ""
}

func metaInt(meta map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := meta[k].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return 0
}

func metaBool(meta map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := meta[k].(bool); ok {
			return v
		}
	}
	return false
}
