package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/citeguard/internal/app"
)

var (
	repairDryRun  bool
	repairRecheck bool
)

var repairCmd = &cobra.Command{
	Use:   "repair [page.md ...]",
	Short: "Autonomously rewrite pages to fix flagged citations",
	Long: `Run claim extraction and accuracy checking, then the repair state
machine over every page with flagged citations: targeted fixes first,
section-level rewrites when no targeted fix is proposed, orphaned
definition cleanup, and source replacement for unsupported citations.
Changed pages are written back atomically; --dry-run reports without
writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig()
		cfg.DryRun = repairDryRun
		cfg.Recheck = repairRecheck
		if err := cfg.ValidateForJudgment(); err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := resolvePages(cfg, args)
		if err != nil {
			return err
		}

		pipeline := &app.Pipeline{
			Store:   a.Store,
			Extract: a.Judge,
			Check:   a.Judge,
			Log:     log.Logger,
		}
		outcomes := pipeline.ProcessPages(cmd.Context(), pages, cfg.Recheck, cfg.Concurrency)
		flaggedPages := 0
		for _, out := range outcomes {
			if out.Flagged > 0 {
				flaggedPages++
			}
		}
		log.Info().Int("pages", len(outcomes)).Int("flagged", flaggedPages).Msg("accuracy check complete")

		eng := a.Engine(pipeline)
		reports := app.RepairPages(cmd.Context(), eng, pages, cfg.Concurrency, cfg.DryRun, log.Logger)

		var improved, unchanged, regressed int
		for _, rep := range reports {
			if rep.FlaggedBefore == 0 {
				continue
			}
			switch rep.Outcome {
			case "improved":
				improved++
			case "regressed":
				regressed++
			default:
				unchanged++
			}
			fmt.Printf("%s: proposed %d, applied %d, skipped %d, flagged %d -> %d (%s)\n",
				rep.PageID, rep.Proposed, rep.Applied, rep.Skipped,
				rep.FlaggedBefore, rep.FlaggedAfter, rep.Outcome)
		}
		fmt.Printf("repair: %d improved, %d unchanged, %d regressed\n", improved, unchanged, regressed)
		if regressed > 0 {
			log.Error().Int("pages", regressed).Msg("repair regressed pages, review before publishing")
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "report proposals without applying them")
	repairCmd.Flags().BoolVar(&repairRecheck, "recheck", false, "recompute accuracy even for already-processed pages")
	rootCmd.AddCommand(repairCmd)
}
