// Command geese automates a co-op job board: it scrapes postings, scores
// them against a resume with a hybrid lexical and semantic matcher, filters
// by the user's preferences, and drives downstream actions like folder saves,
// cover letters and applications.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amanzav/geese/internal/portal"
)

// Exit codes beyond the usual 0/1.
const (
	exitAuthFailure = 2
	exitCancelled   = 130
)

var (
	cfgPath string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "geese",
	Short: "Co-op job board automation: scrape, match, filter, apply",
	Long: `geese scrapes WaterlooWorks postings, ranks them against your resume
using keyword overlap and embedding similarity, and automates the boring
follow-through: saving strong matches to a folder, drafting cover letters
and submitting applications.

Credentials come from WATERLOOWORKS_USERNAME and WATERLOOWORKS_PASSWORD.
Gemini features read GEMINI_API_KEY or GOOGLE_API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(batchCmd, streamCmd, analyzeCmd)
	rootCmd.AddCommand(lettersCmd, applyCmd)
	rootCmd.AddCommand(dbStatsCmd, dbExportCmd, clearCacheCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "geese: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, portal.ErrAuth):
		return exitAuthFailure
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return 1
	}
}
