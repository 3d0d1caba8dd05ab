package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultSkipPhrases is the built-in noise list, mirrored by
// configs/skip_phrases.yaml. Lines containing any of these are boilerplate,
// not requirements.
var defaultSkipPhrases = []string{
	"strong communication",
	"team player",
	"attention to detail",
	"problem solving",
	"time management",
	"organizational skills",
	"interpersonal skills",
	"written communication",
	"verbal communication",
	"self-motivated",
	"quick learner",
	"work independently",
	"work in a team",
	"fast-paced environment",
	"strong work ethic",
	"commitment to quality",
	"strong technical writing",
	"technical writing skills",
	"strong motivation",
	"quality and achieving deadlines",
}

// SkipList is the case-insensitive phrase denylist applied during requirement
// extraction. External and versioned: its hash feeds the engine version.
type SkipList struct {
	phrases []string // lowercased
	hash    string
}

type skipArtifact struct {
	Version int      `yaml:"version"`
	Phrases []string `yaml:"phrases"`
}

// LoadSkipList reads the artifact at path; an empty path yields the built-in
// default list.
func LoadSkipList(path string) (*SkipList, error) {
	if path == "" {
		return NewSkipList(defaultSkipPhrases)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skip list %s: %w", path, err)
	}
	var a skipArtifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse skip list %s: %w", path, err)
	}
	if len(a.Phrases) == 0 {
		return nil, fmt.Errorf("skip list %s contains no phrases", path)
	}
	return NewSkipList(a.Phrases)
}

// NewSkipList normalizes phrases and computes the content hash.
func NewSkipList(phrases []string) (*SkipList, error) {
	sl := &SkipList{}
	h := sha256.New()
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		sl.phrases = append(sl.phrases, p)
		fmt.Fprintln(h, p)
	}
	if len(sl.phrases) == 0 {
		return nil, fmt.Errorf("skip list is empty")
	}
	sl.hash = hex.EncodeToString(h.Sum(nil))
	return sl, nil
}

// Matches reports whether text contains any skip phrase, case-insensitively.
func (sl *SkipList) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range sl.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Hash is a stable digest of the phrase list.
func (sl *SkipList) Hash() string {
	return sl.hash
}
