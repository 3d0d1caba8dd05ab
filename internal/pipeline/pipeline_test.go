package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/matcher"
	"github.com/amanzav/geese/internal/portal"
	"github.com/amanzav/geese/internal/store"
	"github.com/amanzav/geese/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var resumeBullets = []string{"Implemented Python microservices for payment processing"}

func testEngine() *fakeEngine {
	return &fakeEngine{axes: map[string]int{"python": 0, "react": 1}}
}

// pythonJob scores 97.0 under the default weights: full keyword and semantic
// match, co-op seniority.
func pythonJob(id string) *types.Job {
	return &types.Job{
		JobID:            id,
		Title:            "Software Developer Co-op",
		Company:          "Northern Metrics",
		Location:         "Toronto, ON",
		Responsibilities: "Develop Python services for the data platform.",
	}
}

// reactJob scores 12.0: nothing in the resume covers it.
func reactJob(id string) *types.Job {
	return &types.Job{
		JobID:            id,
		Title:            "Frontend Developer Co-op",
		Company:          "Pixel Works",
		Location:         "Waterloo, ON",
		Responsibilities: "Build React dashboards for internal teams.",
	}
}

func rowFor(job *types.Job) types.JobRow {
	return types.JobRow{JobID: job.JobID, Title: job.Title, Company: job.Company}
}

func TestRunBatchEndToEnd(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	h.cfg.Paths.ReportPath = filepath.Join(t.TempDir(), "matches.json")

	strong := pythonJob("100")
	weak := reactJob("200")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong), rowFor(weak), {JobID: "300"}},
		details: map[string]*types.Job{"100": strong, "200": weak},
		fetchErrs: map[string]error{
			"300": &portal.FetchError{JobID: "300", Err: fmt.Errorf("panel timeout")},
		},
	}

	p := h.pipeline(session, nil, nil)
	report, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	stats := p.Stats()
	if stats.Scraped != 2 || stats.FetchFailed != 1 {
		t.Errorf("scraped/fetch_failed = %d/%d, want 2/1", stats.Scraped, stats.FetchFailed)
	}
	if stats.Recomputed != 2 || stats.CacheHits != 0 {
		t.Errorf("recomputed/hits = %d/%d, want 2/0", stats.Recomputed, stats.CacheHits)
	}
	if session.closes != 1 {
		t.Errorf("session closed %d times, want 1", session.closes)
	}

	if len(report.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(report.Entries))
	}
	if report.Entries[0].JobID != "100" || report.Entries[0].Rank != 1 {
		t.Errorf("top entry = %+v, want job 100 at rank 1", report.Entries[0])
	}
	if report.Entries[0].FitScore != 97.0 {
		t.Errorf("top fit = %v, want 97.0", report.Entries[0].FitScore)
	}
	if report.Entries[0].Decision != "autosave" {
		t.Errorf("top decision = %q, want autosave", report.Entries[0].Decision)
	}

	// Both jobs landed in the store; the failed fetch did not.
	if _, err := h.store.GetJob("100"); err != nil {
		t.Errorf("job 100 not persisted: %v", err)
	}
	if _, err := h.store.GetJob("300"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("job 300 lookup = %v, want ErrNotFound", err)
	}

	// The report artifact decodes back.
	data, err := os.ReadFile(h.cfg.Paths.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var onDisk Report
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if onDisk.AnalysisVersion != p.cache.Version() {
		t.Errorf("report version = %q, want %q", onDisk.AnalysisVersion, p.cache.Version())
	}
}

func TestRunBatchSecondRunServedFromCache(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	weak := reactJob("200")
	newSession := func() *fakeSession {
		return &fakeSession{
			rows:    []types.JobRow{rowFor(strong), rowFor(weak)},
			details: map[string]*types.Job{"100": strong, "200": weak},
		}
	}

	if _, err := h.pipeline(newSession(), nil, nil).RunBatch(context.Background()); err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}

	second := h.pipeline(newSession(), nil, nil)
	if _, err := second.RunBatch(context.Background()); err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}

	stats := second.Stats()
	if stats.CacheHits != 2 || stats.Recomputed != 0 {
		t.Errorf("second run hits/recomputed = %d/%d, want 2/0", stats.CacheHits, stats.Recomputed)
	}
}

func TestRunBatchHonorsItemCap(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	h.cfg.MaxItems = 1

	strong := pythonJob("100")
	weak := reactJob("200")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong), rowFor(weak)},
		details: map[string]*types.Job{"100": strong, "200": weak},
	}

	p := h.pipeline(session, nil, nil)
	report, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if p.Stats().Scraped != 1 {
		t.Errorf("scraped = %d, want 1", p.Stats().Scraped)
	}
	if len(report.Entries) != 1 || report.Entries[0].JobID != "100" {
		t.Errorf("entries = %+v, want only the first listed job", report.Entries)
	}
	if _, err := h.store.GetJob("200"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("job beyond the cap persisted: %v", err)
	}
}

func TestRunStreamHonorsItemCap(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	h.cfg.MaxItems = 1

	strong := pythonJob("100")
	weak := reactJob("200")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong), rowFor(weak)},
		details: map[string]*types.Job{"100": strong, "200": weak},
	}

	p := h.pipeline(session, nil, nil)
	if err := p.RunStream(context.Background()); err != nil {
		t.Fatalf("RunStream: %v", err)
	}
	if p.Stats().Scraped != 1 {
		t.Errorf("scraped = %d, want 1", p.Stats().Scraped)
	}
}

func TestRunBatchNormalizesCompensation(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	strong.CompensationRaw = "$25-30/hr CAD"
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
	}
	assist := &fakeAssistant{comp: &types.Compensation{Value: 27.5, Currency: "CAD", Period: "hourly"}}

	p := h.pipeline(session, assist, nil)
	if _, err := p.RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if assist.compCalls != 1 {
		t.Errorf("compCalls = %d, want 1", assist.compCalls)
	}

	stored, err := h.store.GetJob("100")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.CompensationValue != 27.5 || stored.CompensationCurrency != "CAD" || stored.CompensationPeriod != "hourly" {
		t.Errorf("stored compensation = %v %s %s, want 27.5 CAD hourly",
			stored.CompensationValue, stored.CompensationCurrency, stored.CompensationPeriod)
	}
	if stored.CompensationRaw != "$25-30/hr CAD" {
		t.Errorf("raw string lost: %q", stored.CompensationRaw)
	}
}

func TestRunStreamCompensationFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	strong.CompensationRaw = "$25-30/hr CAD"
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
	}
	assist := &fakeAssistant{compErr: fmt.Errorf("model overloaded")}

	if err := h.pipeline(session, assist, nil).RunStream(context.Background()); err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	stored, err := h.store.GetJob("100")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.CompensationValue != 0 {
		t.Errorf("CompensationValue = %v, want 0 after failed extraction", stored.CompensationValue)
	}
	if stored.CompensationRaw != "$25-30/hr CAD" {
		t.Errorf("raw string lost: %q", stored.CompensationRaw)
	}
}

func TestRunBatchAuthFailureIsFatal(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	session := &fakeSession{loginErr: portal.ErrAuth}

	_, err := h.pipeline(session, nil, nil).RunBatch(context.Background())
	if !errors.Is(err, portal.ErrAuth) {
		t.Fatalf("RunBatch = %v, want ErrAuth", err)
	}
	if session.closes != 1 {
		t.Errorf("session closed %d times, want 1", session.closes)
	}
}

func TestRunBatchCancellation(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	strong := pythonJob("100")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline(session, nil, nil).RunBatch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunBatch = %v, want context.Canceled", err)
	}
	if session.closes != 1 {
		t.Errorf("session closed %d times, want 1", session.closes)
	}
}

func TestRunBatchScoringFailureIsolated(t *testing.T) {
	// The failing substring appears only in the react job's requirement, so
	// the resume index builds fine and only that one job fails to score.
	engine := testEngine()
	engine.failOn = "dashboards"
	h := newHarness(t, engine, resumeBullets)

	strong := pythonJob("100")
	broken := reactJob("200")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong), rowFor(broken)},
		details: map[string]*types.Job{"100": strong, "200": broken},
	}

	p := h.pipeline(session, nil, nil)
	report, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if p.Stats().ScoreFailed != 1 {
		t.Errorf("score_failed = %d, want 1", p.Stats().ScoreFailed)
	}
	if len(report.Entries) != 1 || report.Entries[0].JobID != "100" {
		t.Errorf("entries = %+v, want only job 100", report.Entries)
	}
	// No cache write happened for the failed job.
	if _, err := h.store.GetMatch("200"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("match for failed job = %v, want ErrNotFound", err)
	}
}

func TestRunBatchStoreFailureIsFatal(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
	}

	cache := matcher.NewCache(&flakyMatchStore{inner: h.store, failPut: true}, h.matcher)
	p := New(h.cfg, h.store, cache, h.filter, session, nil, nil, zap.NewNop())

	_, err := p.RunBatch(context.Background())
	var storeErr *matcher.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("RunBatch = %v, want *matcher.StoreError", err)
	}
	if session.closes != 1 {
		t.Errorf("session closed %d times, want 1", session.closes)
	}
}

func TestRescoreForceRecomputes(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
	}
	if _, err := h.pipeline(session, nil, nil).RunBatch(context.Background()); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	p := h.pipeline(nil, nil, nil)
	if _, err := p.Rescore(context.Background(), true); err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	stats := p.Stats()
	if stats.Recomputed != 1 || stats.CacheHits != 0 {
		t.Errorf("forced rescore hits/recomputed = %d/%d, want 0/1", stats.CacheHits, stats.Recomputed)
	}
}

func TestRescoreEmptyCorpus(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)
	report, err := h.pipeline(nil, nil, nil).Rescore(context.Background(), false)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if len(report.Entries) != 0 {
		t.Errorf("entries = %+v, want none", report.Entries)
	}
}

func TestRunStreamAutosavesOnce(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	weak := reactJob("200")

	newSession := func() *fakeSession {
		return &fakeSession{
			rows:    []types.JobRow{rowFor(strong), rowFor(weak)},
			details: map[string]*types.Job{"100": strong, "200": weak},
		}
	}

	session := newSession()
	p := h.pipeline(session, nil, nil)
	if err := p.RunStream(context.Background()); err != nil {
		t.Fatalf("RunStream: %v", err)
	}

	stats := p.Stats()
	if stats.Kept != 2 || stats.Autosaved != 1 {
		t.Errorf("kept/autosaved = %d/%d, want 2/1", stats.Kept, stats.Autosaved)
	}
	if len(session.saves) != 1 || session.saves[0] != "100" {
		t.Errorf("saves = %v, want [100]", session.saves)
	}
	if saved, err := h.store.InFolder("100", h.cfg.Portal.Folder); err != nil || !saved {
		t.Errorf("InFolder = %v, %v, want saved", saved, err)
	}

	// A second pass sees the recorded membership and does not save again.
	rerun := newSession()
	if err := h.pipeline(rerun, nil, nil).RunStream(context.Background()); err != nil {
		t.Fatalf("second RunStream: %v", err)
	}
	if len(rerun.saves) != 0 {
		t.Errorf("second run saves = %v, want none", rerun.saves)
	}
}

func TestRunStreamFetchFailureIsolated(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	session := &fakeSession{
		rows:    []types.JobRow{{JobID: "999"}, rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
		fetchErrs: map[string]error{
			"999": &portal.FetchError{JobID: "999", Err: fmt.Errorf("panel timeout")},
		},
	}

	p := h.pipeline(session, nil, nil)
	if err := p.RunStream(context.Background()); err != nil {
		t.Fatalf("RunStream: %v", err)
	}
	stats := p.Stats()
	if stats.FetchFailed != 1 || stats.Scraped != 1 {
		t.Errorf("fetch_failed/scraped = %d/%d, want 1/1", stats.FetchFailed, stats.Scraped)
	}
}

func TestRunStreamSaveFailureDoesNotAbort(t *testing.T) {
	h := newHarness(t, testEngine(), resumeBullets)

	strong := pythonJob("100")
	session := &fakeSession{
		rows:    []types.JobRow{rowFor(strong)},
		details: map[string]*types.Job{"100": strong},
		saveErr: fmt.Errorf("portal hiccup"),
	}

	p := h.pipeline(session, nil, nil)
	if err := p.RunStream(context.Background()); err != nil {
		t.Fatalf("RunStream: %v", err)
	}
	stats := p.Stats()
	if stats.Autosaved != 0 {
		t.Errorf("autosaved = %d, want 0 after save failure", stats.Autosaved)
	}
	// Membership must not be recorded when the portal save failed.
	if saved, err := h.store.InFolder("100", h.cfg.Portal.Folder); err != nil || saved {
		t.Errorf("InFolder = %v, %v, want not saved", saved, err)
	}
}
