// Package llm is the text-generation side of the system: cover letters and
// compensation normalization. Scoring never calls into here; the matcher
// stays deterministic.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/amanzav/geese/internal/types"
)

// Assistant generates prose and structured extractions from job postings.
type Assistant interface {
	// GenerateCoverLetter drafts a letter for the job, grounded in the
	// evidence pairs the matcher produced.
	GenerateCoverLetter(ctx context.Context, job *types.Job, evidence []types.Evidence, resumeBullets []string) (string, error)

	// ExtractCompensation normalizes a raw pay string into value, currency
	// and period. Returns nil when the string carries no usable figure.
	ExtractCompensation(ctx context.Context, raw string) (*types.Compensation, error)

	// Name identifies the backing provider and model.
	Name() string
}

// coverLetterPrompt builds the generation prompt. The evidence section keeps
// the letter anchored to requirements the resume can actually back.
func coverLetterPrompt(job *types.Job, evidence []types.Evidence, resumeBullets []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a one-page cover letter for this co-op posting.\n\n")
	fmt.Fprintf(&b, "Position: %s\nCompany: %s\nLocation: %s\n\n", job.Title, job.Company, job.Location)
	fmt.Fprintf(&b, "Job summary:\n%s\n\n", job.Summary)

	covered := 0
	for _, ev := range evidence {
		if ev.Covered {
			covered++
		}
	}
	if covered > 0 {
		b.WriteString("Requirements the candidate can demonstrate, with the matching resume line:\n")
		for _, ev := range evidence {
			if !ev.Covered || ev.BulletIndex < 0 || ev.BulletIndex >= len(resumeBullets) {
				continue
			}
			fmt.Fprintf(&b, "- requirement: %s\n  resume: %s\n", ev.Requirement, resumeBullets[ev.BulletIndex])
		}
		b.WriteString("\n")
	}

	b.WriteString("Constraints:\n")
	b.WriteString("- 250 to 400 words, three or four paragraphs.\n")
	b.WriteString("- Reference only experience present in the resume lines above.\n")
	b.WriteString("- No placeholder brackets, no salutation guesses; open with \"Dear Hiring Team,\".\n")
	b.WriteString("- Plain text only.\n")
	return b.String()
}

// compensationPrompt asks for a strict JSON extraction.
func compensationPrompt(raw string) string {
	return fmt.Sprintf(`Extract the pay from this compensation text.

Text: %q

Respond with only a JSON object: {"value": <number>, "currency": "<ISO code>", "period": "<hourly|weekly|monthly|yearly>"}.
If a range is given, use its midpoint. If no concrete figure exists, respond with exactly: null`, raw)
}

// WordCount counts whitespace-separated tokens, the figure stored alongside a
// generated letter.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
