package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagForce    bool
	flagMinScore float64
	flagFolder   string
	flagMaxItems int
)

// batchCmd is the default end-to-end flow: scrape everything, then score,
// filter and report.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Scrape the full folder, then score, filter and rank",
	Long: `Scrapes every posting in the configured folder, persisting a checkpoint
batch as it goes, then scores the corpus against the resume, applies the
configured filters and writes the ranked report.

Previously scored jobs are served from the cache unless the scoring engine
version changed or --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{withPortal: true})
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.pipeline.RunBatch(cmd.Context())
		if err != nil {
			return err
		}

		printSummary(a)
		fmt.Printf("ranked %d postings, report at %s\n", len(report.Entries), a.cfg.Paths.ReportPath)
		return nil
	},
}

// streamCmd judges each posting the moment its detail panel is scraped.
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Scrape, score and autosave one posting at a time",
	Long: `Processes the folder job by job: fetch the detail, persist it, score it,
and immediately save strong matches back to the shortlist folder on the
portal. Use when postings close faster than a full batch run completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{withPortal: true})
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.pipeline.RunStream(cmd.Context()); err != nil {
			return err
		}
		printSummary(a)
		return nil
	},
}

// analyzeCmd re-runs scoring and ranking over the stored corpus, no browser.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score and rank the stored corpus without scraping",
	Long: `Runs the matcher over every active stored posting and writes the ranked
report. No portal session is opened. With --force, cached results are
discarded and every job is recomputed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.pipeline.Rescore(cmd.Context(), flagForce)
		if err != nil {
			return err
		}

		printSummary(a)
		fmt.Printf("ranked %d postings, report at %s\n", len(report.Entries), a.cfg.Paths.ReportPath)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{batchCmd, streamCmd, analyzeCmd} {
		cmd.Flags().Float64Var(&flagMinScore, "min-score", -1, "override matcher.min_match_score for this run")
		cmd.Flags().StringVar(&flagFolder, "folder", "", "override the portal folder for this run")
		cmd.Flags().IntVar(&flagMaxItems, "max-items", 0, "process at most this many postings (0 = no cap)")
	}
	analyzeCmd.Flags().BoolVar(&flagForce, "force", false, "ignore cached results and recompute every job")
}

func printSummary(a *app) {
	stats := a.pipeline.Stats()
	logger.Info("run summary",
		zap.Int64("scraped", stats.Scraped),
		zap.Int64("fetch_failed", stats.FetchFailed),
		zap.Int64("score_failed", stats.ScoreFailed),
		zap.Int64("cache_hits", stats.CacheHits),
		zap.Int64("recomputed", stats.Recomputed),
		zap.Int64("kept", stats.Kept),
		zap.Int64("autosaved", stats.Autosaved))
}
