// Package lexicon provides the canonical technology term set used for exact
// keyword matching. Matching is case-insensitive and word-boundary aware, so
// "js" matches "JS" but not "json". The lexicon is an external, versioned
// artifact; its content hash feeds the engine version.
package lexicon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one canonical term with optional aliases, e.g. kubernetes/k8s.
type Entry struct {
	Term    string   `yaml:"term"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Category groups entries for readability of the artifact; matching ignores
// the grouping.
type Category struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"entries"`
}

type artifact struct {
	Version    int        `yaml:"version"`
	Categories []Category `yaml:"categories"`
}

// Lexicon matches canonical technology terms in free text. Immutable after
// construction; safe for concurrent use.
type Lexicon struct {
	entries  []Entry // canonical order, drives deterministic output order
	patterns []*regexp.Regexp
	hash     string
}

// Load reads a lexicon artifact from path. An empty path yields the built-in
// default set.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return New(defaultCategories())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}

	var a artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	if len(a.Categories) == 0 {
		return nil, fmt.Errorf("lexicon %s contains no categories", path)
	}
	return New(a.Categories)
}

// New builds a lexicon from categories, compiling one boundary-aware pattern
// per term.
func New(categories []Category) (*Lexicon, error) {
	lex := &Lexicon{}
	seen := make(map[string]bool)

	h := sha256.New()
	for _, cat := range categories {
		for _, e := range cat.Entries {
			term := strings.ToLower(strings.TrimSpace(e.Term))
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true

			aliases := make([]string, 0, len(e.Aliases))
			for _, a := range e.Aliases {
				a = strings.ToLower(strings.TrimSpace(a))
				if a != "" {
					aliases = append(aliases, a)
				}
			}

			pat, err := compileTermPattern(term, aliases)
			if err != nil {
				return nil, fmt.Errorf("term %q: %w", term, err)
			}

			lex.entries = append(lex.entries, Entry{Term: term, Aliases: aliases})
			lex.patterns = append(lex.patterns, pat)

			fmt.Fprintf(h, "%s|%s\n", term, strings.Join(aliases, ","))
		}
	}

	if len(lex.entries) == 0 {
		return nil, fmt.Errorf("lexicon is empty")
	}

	lex.hash = hex.EncodeToString(h.Sum(nil))
	return lex, nil
}

// compileTermPattern builds a case-insensitive alternation over the term and
// its aliases. \b only works next to word characters, so terms like "c++" or
// ".net" get explicit non-word guards instead.
func compileTermPattern(term string, aliases []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, 1+len(aliases))
	for _, t := range append([]string{term}, aliases...) {
		alts = append(alts, boundaryWrap(regexp.QuoteMeta(t), t))
	}
	return regexp.Compile("(?i)(?:" + strings.Join(alts, "|") + ")")
}

func boundaryWrap(quoted, raw string) string {
	lb := `\b`
	if !isWordByte(raw[0]) {
		lb = `(?:^|[^\w])`
	}
	rb := `\b`
	if !isWordByte(raw[len(raw)-1]) {
		rb = `(?:[^\w]|$)`
	}
	return lb + quoted + rb
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Extract returns the canonical terms present in text, in lexicon order.
// Case variants of the same term count once.
func (l *Lexicon) Extract(text string) []string {
	if text == "" {
		return nil
	}

	var found []string
	for i, pat := range l.patterns {
		if pat.MatchString(text) {
			found = append(found, l.entries[i].Term)
		}
	}
	return found
}

// Contains reports whether term is one of the canonical terms.
func (l *Lexicon) Contains(term string) bool {
	term = strings.ToLower(term)
	for _, e := range l.entries {
		if e.Term == term {
			return true
		}
	}
	return false
}

// Terms returns the canonical term list in lexicon order.
func (l *Lexicon) Terms() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Term
	}
	return out
}

// Hash is a stable digest of the term set, folded into the engine version.
func (l *Lexicon) Hash() string {
	return l.hash
}

// Len returns the number of canonical terms.
func (l *Lexicon) Len() int {
	return len(l.entries)
}
