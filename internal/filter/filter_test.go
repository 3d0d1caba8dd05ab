package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/types"
)

func baseConfig() (config.MatcherConfig, config.FiltersConfig) {
	m := config.Default().Matcher
	m.MinMatchScore = 40
	m.AutoSaveThreshold = 70
	return m, config.FiltersConfig{}
}

func scoredJob(id, title, company, location string, fit float64) Scored {
	return Scored{
		Job: &types.Job{
			JobID:    id,
			Title:    title,
			Company:  company,
			Location: location,
			Summary:  "Build internal tooling.",
		},
		Match: &types.MatchResult{JobID: id, FitScore: fit},
	}
}

func TestDecideMinScore(t *testing.T) {
	m, fc := baseConfig()
	f := New(m, fc)

	low := scoredJob("1", "Dev Co-op", "Acme", "Toronto, ON", 39.9)
	if d := f.Decide(low.Job, low.Match); d != Drop {
		t.Errorf("below min score: %v, want Drop", d)
	}
	at := scoredJob("2", "Dev Co-op", "Acme", "Toronto, ON", 40)
	if d := f.Decide(at.Job, at.Match); d != Keep {
		t.Errorf("at min score: %v, want Keep", d)
	}
}

func TestDecideAutosaveThreshold(t *testing.T) {
	m, fc := baseConfig()
	f := New(m, fc)

	high := scoredJob("1", "Dev Co-op", "Acme", "Toronto, ON", 70)
	if d := f.Decide(high.Job, high.Match); d != Autosave {
		t.Errorf("at autosave threshold: %v, want Autosave", d)
	}
}

func TestDecideCompanyDenylist(t *testing.T) {
	m, fc := baseConfig()
	fc.CompaniesToAvoid = []string{"Shady Corp"}
	f := New(m, fc)

	blocked := scoredJob("1", "Dev Co-op", "SHADY CORP", "Toronto, ON", 90)
	if d := f.Decide(blocked.Job, blocked.Match); d != Drop {
		t.Errorf("denylisted company: %v, want Drop", d)
	}

	// Exact match only: a different company containing the name passes.
	similar := scoredJob("2", "Dev Co-op", "Shady Corp International", "Toronto, ON", 90)
	if d := f.Decide(similar.Job, similar.Match); d == Drop {
		t.Errorf("non-exact company name dropped")
	}
}

func TestDecideLocations(t *testing.T) {
	m, fc := baseConfig()
	fc.PreferredLocations = []string{"Toronto", "Waterloo"}
	f := New(m, fc)

	cases := []struct {
		location string
		want     Decision
	}{
		{"Toronto, ON", Keep},
		{"Kitchener-Waterloo", Keep},
		{"Remote", Keep}, // remote always passes
		{"Calgary, AB", Drop},
	}
	for _, tc := range cases {
		s := scoredJob("1", "Dev Co-op", "Acme", tc.location, 50)
		if d := f.Decide(s.Job, s.Match); d != tc.want {
			t.Errorf("location %q: %v, want %v", tc.location, d, tc.want)
		}
	}
}

func TestDecideKeywords(t *testing.T) {
	m, fc := baseConfig()
	fc.KeywordsToMatch = []string{"machine learning", "backend"}
	f := New(m, fc)

	hit := scoredJob("1", "Backend Developer Co-op", "Acme", "Toronto, ON", 50)
	if d := f.Decide(hit.Job, hit.Match); d != Keep {
		t.Errorf("keyword in title: %v, want Keep", d)
	}

	miss := scoredJob("2", "QA Analyst Co-op", "Acme", "Toronto, ON", 50)
	if d := f.Decide(miss.Job, miss.Match); d != Drop {
		t.Errorf("no keyword: %v, want Drop", d)
	}

	inSummary := scoredJob("3", "Research Co-op", "Acme", "Toronto, ON", 50)
	inSummary.Job.Summary = "Apply machine learning to customer data."
	if d := f.Decide(inSummary.Job, inSummary.Match); d != Keep {
		t.Errorf("keyword in summary: %v, want Keep", d)
	}
}

func TestApplyRanksAndDrops(t *testing.T) {
	m, fc := baseConfig()
	f := New(m, fc)

	items := []Scored{
		scoredJob("30", "Dev Co-op", "Acme", "Toronto, ON", 55.5),
		scoredJob("10", "Dev Co-op", "Acme", "Toronto, ON", 71.2),
		scoredJob("99", "Dev Co-op", "Acme", "Toronto, ON", 12.0), // dropped
		scoredJob("20", "Dev Co-op", "Acme", "Toronto, ON", 55.5),
	}

	kept := f.Apply(items)

	var order []string
	for _, item := range kept {
		order = append(order, item.Job.JobID)
	}
	// Descending score; the 55.5 tie breaks by ascending job id.
	want := []string{"10", "20", "30"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("ranking (-want +got):\n%s", diff)
	}

	if kept[0].Decision != Autosave {
		t.Errorf("top item decision = %v, want Autosave", kept[0].Decision)
	}
	if kept[1].Decision != Keep {
		t.Errorf("second item decision = %v, want Keep", kept[1].Decision)
	}
}

func TestEmptyPredicatesPassEverything(t *testing.T) {
	m, fc := baseConfig()
	m.MinMatchScore = 0
	f := New(m, fc)

	s := scoredJob("1", "Anything", "Anyone", "Anywhere", 0.1)
	if d := f.Decide(s.Job, s.Match); d != Keep {
		t.Errorf("no predicates configured: %v, want Keep", d)
	}
}
