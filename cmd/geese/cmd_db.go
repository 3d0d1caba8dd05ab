package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/store"
)

var flagExportOut string

// dbStatsCmd prints per-table row counts.
var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats()
		if err != nil {
			return err
		}

		tables := make([]string, 0, len(stats))
		for table := range stats {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Printf("%-16s %d\n", table, stats[table])
		}
		return nil
	},
}

// dbExportCmd renders stored matches as a ranked report.
var dbExportCmd = &cobra.Command{
	Use:   "db-export",
	Short: "Print stored matches as a ranked report",
	Long: `Renders every stored match in rank order (fit score descending) as a
human-readable report. Default output is stdout; use --out for a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := renderMatchReport(st)
		if err != nil {
			return err
		}

		if flagExportOut == "" || flagExportOut == "-" {
			fmt.Print(report)
			return nil
		}
		if err := os.WriteFile(flagExportOut, []byte(report), 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", flagExportOut, err)
		}
		fmt.Printf("report written to %s\n", flagExportOut)
		return nil
	},
}

// renderMatchReport formats all stored matches in rank order, one line per
// posting plus its matched and missing technologies.
func renderMatchReport(st *store.Store) (string, error) {
	matches, err := st.ListMatches(0)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "no stored matches; run batch or analyze first\n", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %-6s %-9s %-26s %s\n", "RANK", "FIT", "JOB ID", "COMPANY", "TITLE")
	for i, match := range matches {
		job, err := st.GetJob(match.JobID)
		if err != nil {
			return "", fmt.Errorf("job %s for stored match: %w", match.JobID, err)
		}
		fmt.Fprintf(&b, "%-5d %-6.1f %-9s %-26.26s %s\n",
			i+1, match.FitScore, job.JobID, job.Company, job.Title)
		if len(match.MatchedTechnologies) > 0 {
			fmt.Fprintf(&b, "%12s matched: %s\n", "", strings.Join(match.MatchedTechnologies, ", "))
		}
		if len(match.MissingTechnologies) > 0 {
			fmt.Fprintf(&b, "%12s missing: %s\n", "", strings.Join(match.MissingTechnologies, ", "))
		}
	}
	return b.String(), nil
}

// clearCacheCmd invalidates stored match results.
var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete cached match results",
	Long: `Deletes stored match results so the next run recomputes them. Jobs,
cover letters and applications are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ClearMatches("")
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d cached results\n", n)
		return nil
	},
}

func init() {
	dbExportCmd.Flags().StringVar(&flagExportOut, "out", "", "output file (default stdout)")
}

// openStoreOnly loads config and opens the store without the matcher stack.
// Used by the db commands, which never embed anything.
func openStoreOnly() (*store.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Paths.DatabasePath, logger)
}
