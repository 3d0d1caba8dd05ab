package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleJob(id string) *types.Job {
	deadline := time.Date(2026, 9, 30, 23, 59, 0, 0, time.UTC)
	return &types.Job{
		JobID:                        id,
		Title:                        "Software Developer Co-op",
		Company:                      "Northern Metrics",
		Location:                     "Toronto, ON",
		Openings:                     2,
		Applications:                 41,
		Deadline:                     &deadline,
		Summary:                      "Build internal data tooling.",
		Responsibilities:             "Develop Python services.",
		Skills:                       "Python, SQL.",
		CompensationRaw:              "$28-$34/hour",
		ApplicationDocumentsRequired: []string{"Resume", "Cover Letter"},
		TargetedDegreesDisciplines:   []string{"Computer Science", "Software Engineering"},
		IsActive:                     true,
		ScrapedAt:                    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleMatch(jobID string) *types.MatchResult {
	return &types.MatchResult{
		JobID:               jobID,
		FitScore:            59.5,
		KeywordMatch:        0.5,
		SemanticCoverage:    0.5,
		SemanticStrength:    1,
		SeniorityAlignment:  0.8,
		MatchedTechnologies: []string{"python"},
		MissingTechnologies: []string{"react"},
		Evidence: []types.Evidence{
			{Requirement: "Develop Python services.", BulletIndex: 0, Similarity: 1, Covered: true},
		},
		AnalysisVersion: "r1-0011223344556677",
		AnalyzedAt:      time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestJobRoundTrip(t *testing.T) {
	st := testStore(t)

	want := sampleJob("401001")
	if err := st.UpsertJob(want); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	got, err := st.GetJob("401001")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(types.Job{}, "UpdatedAt")); diff != "" {
		t.Errorf("job round trip (-want +got):\n%s", diff)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set on insert")
	}
}

func TestGetJobNotFound(t *testing.T) {
	st := testStore(t)
	if _, err := st.GetJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertJobPreservesScrapedAt(t *testing.T) {
	st := testStore(t)

	job := sampleJob("401001")
	if err := st.UpsertJob(job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	updated := sampleJob("401001")
	updated.Title = "Software Developer Co-op (Fall)"
	updated.Applications = 77
	updated.ScrapedAt = time.Time{} // caller may not carry it on re-scrape
	if err := st.UpsertJob(updated); err != nil {
		t.Fatalf("UpsertJob update: %v", err)
	}

	got, err := st.GetJob("401001")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !got.ScrapedAt.Equal(job.ScrapedAt) {
		t.Errorf("ScrapedAt = %v, want original %v", got.ScrapedAt, job.ScrapedAt)
	}
	if got.Title != "Software Developer Co-op (Fall)" || got.Applications != 77 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestUpsertJobsBatchAndList(t *testing.T) {
	st := testStore(t)

	batch := []*types.Job{sampleJob("3"), sampleJob("1"), sampleJob("2")}
	batch[1].IsActive = false
	if err := st.UpsertJobs(batch); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	all, err := st.ListJobs(JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListJobs = %d jobs, want 3", len(all))
	}
	// Ordered by job id.
	for i, want := range []string{"1", "2", "3"} {
		if all[i].JobID != want {
			t.Errorf("order[%d] = %s, want %s", i, all[i].JobID, want)
		}
	}

	active, err := st.ListJobs(JobFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListJobs active: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d jobs, want 2", len(active))
	}
}

func TestMarkInactiveExcept(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJobs([]*types.Job{sampleJob("1"), sampleJob("2"), sampleJob("3")}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	n, err := st.MarkInactiveExcept([]string{"1", "3"})
	if err != nil {
		t.Fatalf("MarkInactiveExcept: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}

	got, err := st.GetJob("2")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.IsActive {
		t.Error("job 2 should be inactive")
	}
}

func TestMatchRoundTripAndList(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJobs([]*types.Job{sampleJob("a"), sampleJob("b")}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	ma := sampleMatch("a")
	mb := sampleMatch("b")
	mb.FitScore = 82.3
	for _, m := range []*types.MatchResult{ma, mb} {
		if err := st.UpsertMatch(m); err != nil {
			t.Fatalf("UpsertMatch: %v", err)
		}
	}

	got, err := st.GetMatch("a")
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if diff := cmp.Diff(ma, got); diff != "" {
		t.Errorf("match round trip (-want +got):\n%s", diff)
	}

	ranked, err := st.ListMatches(0)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(ranked) != 2 || ranked[0].JobID != "b" || ranked[1].JobID != "a" {
		t.Errorf("ranking wrong: %+v", ranked)
	}

	high, err := st.ListMatches(80)
	if err != nil {
		t.Fatalf("ListMatches min: %v", err)
	}
	if len(high) != 1 || high[0].JobID != "b" {
		t.Errorf("min filter wrong: %+v", high)
	}
}

func TestMatchTieBreaksByJobID(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJobs([]*types.Job{sampleJob("z"), sampleJob("a")}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	for _, id := range []string{"z", "a"} {
		if err := st.UpsertMatch(sampleMatch(id)); err != nil {
			t.Fatalf("UpsertMatch: %v", err)
		}
	}

	ranked, err := st.ListMatches(0)
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if ranked[0].JobID != "a" || ranked[1].JobID != "z" {
		t.Errorf("equal scores should order by job id: %+v", ranked)
	}
}

func TestDeleteJobCascades(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJob(sampleJob("401001")); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	if err := st.UpsertMatch(sampleMatch("401001")); err != nil {
		t.Fatalf("UpsertMatch: %v", err)
	}
	if _, err := st.RecordCoverLetter(&types.CoverLetter{
		JobID: "401001", Content: "Dear Hiring Team,", GeneratedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("RecordCoverLetter: %v", err)
	}
	if err := st.SaveFolderMembership("401001", "geese"); err != nil {
		t.Fatalf("SaveFolderMembership: %v", err)
	}

	if err := st.DeleteJob("401001"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	if _, err := st.GetMatch("401001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("match survived cascade: %v", err)
	}
	if _, err := st.GetCoverLetter("401001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("letter survived cascade: %v", err)
	}
	in, err := st.InFolder("401001", "geese")
	if err != nil {
		t.Fatalf("InFolder: %v", err)
	}
	if in {
		t.Error("folder row survived cascade")
	}
}

func TestClearMatches(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJobs([]*types.Job{sampleJob("a"), sampleJob("b")}); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	ma := sampleMatch("a")
	mb := sampleMatch("b")
	mb.AnalysisVersion = "r1-ffeeddccbbaa9988"
	for _, m := range []*types.MatchResult{ma, mb} {
		if err := st.UpsertMatch(m); err != nil {
			t.Fatalf("UpsertMatch: %v", err)
		}
	}

	n, err := st.ClearMatches(ma.AnalysisVersion)
	if err != nil {
		t.Fatalf("ClearMatches version: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}

	n, err = st.ClearMatches("")
	if err != nil {
		t.Fatalf("ClearMatches all: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}
}

func TestCoverLetterLifecycle(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJob(sampleJob("401001")); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	id, err := st.RecordCoverLetter(&types.CoverLetter{
		JobID:       "401001",
		Content:     "Dear Hiring Team,\n\nI am writing to apply.",
		Provider:    "genai:gemini-2.0-flash",
		WordCount:   9,
		GeneratedAt: time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordCoverLetter: %v", err)
	}

	if err := st.MarkLetterUploaded(id); err != nil {
		t.Fatalf("MarkLetterUploaded: %v", err)
	}

	got, err := st.GetCoverLetter("401001")
	if err != nil {
		t.Fatalf("GetCoverLetter: %v", err)
	}
	if !got.IsUploaded || got.UploadedAt == nil {
		t.Errorf("upload flags not set: %+v", got)
	}
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
}

func TestApplicationsAndFolders(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJob(sampleJob("401001")); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	app := &types.Application{
		AttemptID: "attempt-1",
		JobID:     "401001",
		Status:    types.ApplicationSubmitted,
		Documents: []string{"Resume", "Cover Letter"},
		CreatedAt: time.Date(2026, 8, 4, 8, 0, 0, 0, time.UTC),
	}
	if err := st.RecordApplication(app); err != nil {
		t.Fatalf("RecordApplication: %v", err)
	}

	apps, err := st.ListApplications("401001")
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("apps = %d, want 1", len(apps))
	}
	if diff := cmp.Diff(app, apps[0]); diff != "" {
		t.Errorf("application round trip (-want +got):\n%s", diff)
	}

	// Folder saves are idempotent.
	for i := 0; i < 2; i++ {
		if err := st.SaveFolderMembership("401001", "geese"); err != nil {
			t.Fatalf("SaveFolderMembership: %v", err)
		}
	}
	members, err := st.ListFolder("geese")
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("members = %d, want 1", len(members))
	}
}

func TestAnalysisRuns(t *testing.T) {
	st := testStore(t)

	runID, err := st.BeginAnalysisRun("r1-0011223344556677")
	if err != nil {
		t.Fatalf("BeginAnalysisRun: %v", err)
	}
	if err := st.FinishAnalysisRun(runID, 10, 7, 3); err != nil {
		t.Fatalf("FinishAnalysisRun: %v", err)
	}
	if err := st.FinishAnalysisRun("no-such-run", 0, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStatsAndCacheMetadata(t *testing.T) {
	st := testStore(t)
	if err := st.UpsertJob(sampleJob("401001")); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["jobs"] != 1 || stats["job_matches"] != 0 {
		t.Errorf("stats = %v", stats)
	}

	if err := st.SetCacheValue("resume_hash", "abc123"); err != nil {
		t.Fatalf("SetCacheValue: %v", err)
	}
	got, err := st.GetCacheValue("resume_hash")
	if err != nil {
		t.Fatalf("GetCacheValue: %v", err)
	}
	if got != "abc123" {
		t.Errorf("value = %q, want abc123", got)
	}
	if _, err := st.GetCacheValue("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/geese.db"

	st, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.UpsertJob(sampleJob("401001")); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	if _, err := st2.GetJob("401001"); err != nil {
		t.Fatalf("GetJob after reopen: %v", err)
	}
}
