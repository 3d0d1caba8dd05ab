package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/amanzav/geese/internal/config"
)

// algorithmRevision bumps whenever the scoring algorithm itself changes in a
// way that can alter output for identical inputs.
const algorithmRevision = "r2"

// Version folds every score-affecting input into a stable string. Changing
// any of them invalidates all cached matches on next read.
func Version(cfg config.MatcherConfig, lexiconHash, skipListHash, modelID string) string {
	w := cfg.Weights
	canonical := fmt.Sprintf("w=%.4f,%.4f,%.4f,%.4f|thr=%.4f|k=%d|lex=%s|skip=%s|model=%s|alg=%s",
		w.KeywordMatch, w.SemanticCoverage, w.SemanticStrength, w.SeniorityAlignment,
		cfg.SimilarityThreshold, cfg.TopK,
		lexiconHash, skipListHash, modelID, algorithmRevision)

	sum := sha256.Sum256([]byte(canonical))
	return algorithmRevision + "-" + hex.EncodeToString(sum[:])[:16]
}
