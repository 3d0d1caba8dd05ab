// Package resume turns a resume artifact into an ordered list of bullet
// texts and maintains the persistent vector index over them. Bullet identity
// is the positional index; the list is immutable within a run.
package resume

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BulletSplitVersion changes whenever the segmentation rules below change,
// forcing an index rebuild.
const BulletSplitVersion = "v1"

// minBulletLen drops fragments too short to carry meaning.
const minBulletLen = 15

var bulletSymbols = []string{"•", "●", "◦", "▪", "-", "*"}

// SplitBullets segments extracted resume text into ordered bullets: split on
// hard line breaks, strip leading bullet glyphs, trim, drop empties and
// fragments shorter than minBulletLen. Deterministic by construction.
func SplitBullets(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, sym := range bulletSymbols {
			if strings.HasPrefix(line, sym) {
				line = strings.TrimSpace(strings.TrimPrefix(line, sym))
			}
		}
		if len(line) < minBulletLen {
			continue
		}
		bullets = append(bullets, line)
	}
	return bullets
}

// Source is the resolved resume artifact: raw bytes for hashing plus the
// extracted plain text.
type Source struct {
	Path string
	Hash string // sha256 hex of the raw file bytes
	Text string
}

// LoadSource reads the resume at path. PDF files go through text extraction;
// anything else is treated as pre-parsed plain text.
func LoadSource(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume %s: %w", path, err)
	}

	sum := sha256.Sum256(raw)
	src := &Source{
		Path: path,
		Hash: hex.EncodeToString(sum[:]),
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := extractPDFText(path)
		if err != nil {
			return nil, fmt.Errorf("extract resume text from %s: %w", path, err)
		}
		src.Text = text
	} else {
		src.Text = string(raw)
	}

	return src, nil
}
