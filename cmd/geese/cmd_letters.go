package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagLetterMinScore float64
	flagLetterLimit    int
	flagApplyDocs      []string
)

// lettersCmd drafts and renders cover letters for the strongest matches.
var lettersCmd = &cobra.Command{
	Use:   "letters",
	Short: "Generate cover letter PDFs for top matches",
	Long: `Drafts a cover letter for each stored match at or above --min-score,
anchored to the requirement/resume-bullet evidence the matcher produced,
renders it as a PDF and records it. Jobs that already have a letter are
skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{withLetters: true})
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.pipeline.GenerateLetters(cmd.Context(), flagLetterMinScore, flagLetterLimit, a.index.Bullets())
		if err != nil {
			return err
		}
		fmt.Printf("generated %d cover letters in %s\n", n, a.cfg.Paths.CoverLetterDir)
		return nil
	},
}

// applyCmd submits applications for specific postings.
var applyCmd = &cobra.Command{
	Use:   "apply [job-id...]",
	Short: "Submit applications for the given job ids",
	Long: `Opens an authenticated portal session and applies to each posting,
uploading the stored cover letter first when one exists. Postings that
redirect to an external site or demand extra documents are recorded as
skipped, not failures.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), appOptions{withPortal: true})
		if err != nil {
			return err
		}
		defer a.close()

		return a.pipeline.ApplyToJobs(cmd.Context(), args, flagApplyDocs)
	},
}

func init() {
	lettersCmd.Flags().Float64Var(&flagLetterMinScore, "min-score", 60, "minimum fit score for letter generation")
	lettersCmd.Flags().IntVar(&flagLetterLimit, "limit", 0, "maximum letters to generate (0 = no limit)")
	applyCmd.Flags().StringSliceVar(&flagApplyDocs, "docs", []string{"Resume", "Cover Letter"}, "document names to include in the package")
}
