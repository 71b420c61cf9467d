// Package cli defines the citeguard command tree. Configuration follows
// the usual hierarchy: flags over CITEGUARD_* environment variables over
// ~/.citeguard/config.yaml over defaults.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyperifyio/citeguard/internal/app"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "citeguard",
	Short: "Citation integrity and auto-repair for AI-authored knowledge bases",
	Long: `citeguard maintains citation integrity for an AI-authored knowledge base:
it parses footnotes out of markdown pages, fetches and verifies the cited
sources, scores each page's risk of fabricated or unsupported claims, and
autonomously rewrites text to fix citations flagged as inaccurate.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("citeguard v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citeguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("content-dir", ".", "knowledge base content directory")
	rootCmd.PersistentFlags().String("db", "", "sqlite database path (empty runs without a store)")
	rootCmd.PersistentFlags().String("archive-dir", "citation-archives", "directory for per-page verification archives")
	rootCmd.PersistentFlags().String("cache-dir", "", "judgment response cache directory")
	rootCmd.PersistentFlags().Int("concurrency", app.DefaultConcurrency, "page-level parallelism for batch operations")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("content_dir", rootCmd.PersistentFlags().Lookup("content-dir"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("archive_dir", rootCmd.PersistentFlags().Lookup("archive-dir"))
	_ = viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	_ = viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))

	viper.SetDefault("fetch.timeout", "15s")
	viper.SetDefault("fetch.user_agent", app.DefaultUserAgent)

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.citeguard")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CITEGUARD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// appConfig assembles the resolved app.Config from viper.
func appConfig() app.Config {
	timeout, err := time.ParseDuration(viper.GetString("fetch.timeout"))
	if err != nil {
		timeout = app.DefaultFetchTimeout
	}
	return app.Config{
		ContentDir:             viper.GetString("content_dir"),
		DBPath:                 viper.GetString("db"),
		ArchiveDir:             viper.GetString("archive_dir"),
		CacheDir:               viper.GetString("cache_dir"),
		CacheMaxAge:            viper.GetDuration("cache_max_age"),
		CacheClear:             viper.GetBool("cache_clear"),
		JudgeBaseURL:           viper.GetString("judge.base_url"),
		JudgeAPIKey:            viper.GetString("judge.api_key"),
		JudgeModel:             viper.GetString("judge.model"),
		SearxURL:               viper.GetString("search.searx_url"),
		SearxKey:               viper.GetString("search.searx_key"),
		UserAgent:              viper.GetString("fetch.user_agent"),
		FetchTimeout:           timeout,
		Concurrency:            viper.GetInt("concurrency"),
		SequentialRunThreshold: viper.GetInt("integrity.sequential_run_threshold"),
		Verbose:                viper.GetBool("verbose"),
	}
}
