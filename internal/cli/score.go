package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/citeguard/internal/app"
	"github.com/hyperifyio/citeguard/internal/integrity"
	"github.com/hyperifyio/citeguard/internal/risk"
)

var scoreMinLevel string

var scoreCmd = &cobra.Command{
	Use:   "score [page.md ...]",
	Short: "Compute hallucination risk scores for pages",
	Long: `Score each page's risk of fabricated or unsupported claims from its
frontmatter, body integrity checks, and any stored accuracy verdicts.
Scores are 0-100 with low/medium/high buckets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig()
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := resolvePages(cfg, args)
		if err != nil {
			return err
		}

		opts := integrity.Options{SequentialRunThreshold: cfg.SequentialRunThreshold}
		min := risk.Level(scoreMinLevel)
		counts := map[risk.Level]int{}
		for _, pg := range pages {
			score, err := app.ScorePage(cmd.Context(), a.Store, pg, opts)
			if err != nil {
				log.Warn().Err(err).Str("page", pg.ID).Msg("page skipped")
				continue
			}
			counts[score.Risk.Level]++
			if belowLevel(score.Risk.Level, min) {
				continue
			}
			fmt.Printf("%-40s %s\n", score.PageID, score.Risk)
			if verbose {
				for _, f := range score.Risk.Factors {
					fmt.Printf("    %s\n", f)
				}
			}
		}
		fmt.Printf("low %d, medium %d, high %d\n",
			counts[risk.LevelLow], counts[risk.LevelMedium], counts[risk.LevelHigh])
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreMinLevel, "min-level", "", "only print pages at or above this level (low|medium|high)")
	rootCmd.AddCommand(scoreCmd)
}

func belowLevel(have, min risk.Level) bool {
	rank := map[risk.Level]int{risk.LevelLow: 0, risk.LevelMedium: 1, risk.LevelHigh: 2}
	minRank, ok := rank[min]
	if !ok {
		return false
	}
	return rank[have] < minRank
}
