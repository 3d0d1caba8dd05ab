// Package render turns generated cover letters into PDF files ready for
// upload to the portal.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/types"
)

// Renderer writes a letter to disk and returns the file path.
type Renderer interface {
	Render(letter *types.CoverLetter, job *types.Job) (string, error)
}

// PDFRenderer formats a plain-text letter as a single-column A4 page.
type PDFRenderer struct {
	outputDir string
	logger    *zap.Logger
}

// NewPDFRenderer creates the output directory if needed.
func NewPDFRenderer(outputDir string, logger *zap.Logger) (*PDFRenderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cover letter directory: %w", err)
	}
	return &PDFRenderer{outputDir: outputDir, logger: logger}, nil
}

// Render writes the letter as <company>_<job_id>.pdf under the output
// directory. An existing file for the same job is overwritten.
func (r *PDFRenderer) Render(letter *types.CoverLetter, job *types.Job) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 11)

	pdf.SetTitle(fmt.Sprintf("Cover Letter - %s - %s", job.Company, job.Title), true)

	for _, paragraph := range strings.Split(letter.Content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		pdf.MultiCell(0, 5.5, paragraph, "", "L", false)
		pdf.Ln(4)
	}

	path := filepath.Join(r.outputDir, fileName(job))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write cover letter pdf %s: %w", path, err)
	}

	r.logger.Debug("cover letter rendered",
		zap.String("job_id", job.JobID), zap.String("path", path))
	return path, nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// fileName builds a filesystem-safe name from the company and job id.
func fileName(job *types.Job) string {
	company := unsafeFileChars.ReplaceAllString(job.Company, "_")
	company = strings.Trim(company, "_")
	if company == "" {
		company = "letter"
	}
	return fmt.Sprintf("%s_%s.pdf", company, job.JobID)
}

var _ Renderer = (*PDFRenderer)(nil)
