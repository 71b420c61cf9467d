package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/citeguard/internal/app"
	"github.com/hyperifyio/citeguard/internal/page"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [page.md ...]",
	Short: "Fetch and verify every citation, writing per-page archives",
	Long: `Fetch every cited URL on the given pages (or the whole content
directory), classify each citation as verified, broken, or unverifiable,
and write one archive file per page. Archives are overwritten wholesale;
a partially completed run never corrupts a prior archive.`,
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

		var verified, broken, unverifiable int
		for _, pg := range pages {
			archive, err := a.Verifier.VerifyPage(cmd.Context(), pg.ID, pg.Body)
			if err != nil {
				log.Warn().Err(err).Str("page", pg.ID).Msg("page skipped")
				continue
			}
			verified += archive.Totals.Verified
			broken += archive.Totals.Broken
			unverifiable += archive.Totals.Unverifiable
			fmt.Printf("%s: %d verified, %d broken, %d unverifiable\n",
				pg.ID, archive.Totals.Verified, archive.Totals.Broken, archive.Totals.Unverifiable)
		}
		fmt.Printf("total: %d verified, %d broken, %d unverifiable across %d pages\n",
			verified, broken, unverifiable, len(pages))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// resolvePages loads the pages named by args, or everything under the
// content directory when args is empty.
func resolvePages(cfg app.Config, args []string) ([]*page.Page, error) {
	if len(args) == 0 {
		return page.List(cfg.ContentDir)
	}
	var pages []*page.Page
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if info.IsDir() {
			sub, err := page.List(arg)
			if err != nil {
				return nil, err
			}
			pages = append(pages, sub...)
			continue
		}
		pg, err := page.Load(cfg.ContentDir, arg)
		if err != nil {
			return nil, err
		}
		pages = append(pages, pg)
	}
	return pages, nil
}
