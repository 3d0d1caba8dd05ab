// Package matcher implements the hybrid scoring engine: structured
// requirement extraction, the four-component fit score, the engine version
// hash and the versioned match cache.
package matcher

import (
	"regexp"
	"strings"

	"github.com/amanzav/geese/internal/lexicon"
	"github.com/amanzav/geese/internal/types"
)

// minRequirementLen drops fragments too short to be a requirement.
const minRequirementLen = 15

// actionVerbs are the signal verb stems that qualify a candidate line as a
// real requirement when no lexicon term is present. Matched as word prefixes
// so inflected forms ("tests", "building", "writes") count.
var actionVerbs = []string{
	"develop", "build", "design", "implement", "architect", "deploy",
	"debug", "test", "optimize", "integrate", "maintain", "analyze",
	"evaluate", "document", "write",
}

var (
	actionVerbRe   = regexp.MustCompile(`(?i)\b(` + strings.Join(actionVerbs, "|") + `)\w*`)
	experienceInRe = regexp.MustCompile(`(?i)^experience in (.+?) role\.?$`)
)

// Extractor decomposes a posting's free-text sections into an ordered list of
// requirement statements, filtering template noise.
type Extractor struct {
	lex  *lexicon.Lexicon
	skip *SkipList
}

// NewExtractor builds an extractor over the given lexicon and skip list.
func NewExtractor(lex *lexicon.Lexicon, skip *SkipList) *Extractor {
	return &Extractor{lex: lex, skip: skip}
}

// Extract returns the requirements of job in reading order. An empty result
// is valid; the matcher scores coverage and strength as zero in that case.
func (e *Extractor) Extract(job *types.Job) []string {
	var out []string
	seen := make(map[string]bool)

	for _, section := range []string{job.Responsibilities, job.Skills} {
		for _, line := range strings.Split(section, "\n") {
			for _, cand := range splitSentences(line) {
				cand = strings.TrimSpace(cand)
				if !e.keep(cand, job.Title) {
					continue
				}
				key := strings.ToLower(cand)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, cand)
			}
		}
	}
	return out
}

// keep applies the noise filter and the signal requirement.
func (e *Extractor) keep(cand, title string) bool {
	if len(cand) < minRequirementLen {
		return false
	}
	if strings.HasSuffix(cand, ":") {
		return false // section header
	}
	if e.skip.Matches(cand) {
		return false
	}
	if m := experienceInRe.FindStringSubmatch(cand); m != nil {
		// "Experience in <job title> role" restates the posting itself.
		if strings.Contains(strings.ToLower(title), strings.ToLower(strings.TrimSpace(m[1]))) {
			return false
		}
	}

	// Signal: a lexicon hit or an action verb.
	if len(e.lex.Extract(cand)) > 0 {
		return true
	}
	return actionVerbRe.MatchString(cand)
}

// splitSentences splits on sentence terminators followed by whitespace,
// keeping the terminator with its sentence.
func splitSentences(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t') {
				parts = append(parts, s[start:i+1])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}
