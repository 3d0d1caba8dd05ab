package render

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/types"
)

func TestRenderWritesPDF(t *testing.T) {
	dir := t.TempDir()
	r, err := NewPDFRenderer(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPDFRenderer: %v", err)
	}

	job := &types.Job{JobID: "424242", Title: "Backend Developer Co-op", Company: "Maple Systems"}
	letter := &types.CoverLetter{
		JobID:   job.JobID,
		Content: "Dear Hiring Team,\n\nFirst paragraph of the letter.\n\nSecond paragraph of the letter.",
	}

	path, err := r.Render(letter, job)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := filepath.Join(dir, "Maple_Systems_424242.pdf"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("rendered PDF is empty")
	}
}

func TestRenderOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	r, err := NewPDFRenderer(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPDFRenderer: %v", err)
	}

	job := &types.Job{JobID: "7", Company: "Acme"}
	if _, err := r.Render(&types.CoverLetter{Content: "First draft."}, job); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := r.Render(&types.CoverLetter{Content: "Second draft."}, job); err != nil {
		t.Fatalf("Render overwrite: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("files = %d, want 1", len(entries))
	}
}

func TestFileNameSanitization(t *testing.T) {
	cases := []struct {
		company string
		want    string
	}{
		{"Maple Systems", "Maple_Systems_1.pdf"},
		{"A/B \\ Testing: Inc?", "A_B_Testing_Inc_1.pdf"},
		{"///", "letter_1.pdf"},
		{"", "letter_1.pdf"},
	}
	for _, tc := range cases {
		job := &types.Job{JobID: "1", Company: tc.company}
		if got := fileName(job); got != tc.want {
			t.Errorf("fileName(%q) = %q, want %q", tc.company, got, tc.want)
		}
	}
}
