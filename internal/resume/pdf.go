package resume

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpu has no direct text extraction; it dumps per-page content streams.
// The text-show operators (Tj / TJ) carry the visible strings, so we pull
// those out and join them line-wise. Good enough for resume bullets, which
// are plain single-column text.
var (
	tjRe    = regexp.MustCompile(`\(((?:\\.|[^()\\])*)\)\s*Tj`)
	tjArrRe = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	strRe   = regexp.MustCompile(`\(((?:\\.|[^()\\])*)\)`)
	tdRe    = regexp.MustCompile(`(?:Td|TD|T\*)`)
)

func extractPDFText(path string) (string, error) {
	outDir, err := os.MkdirTemp("", "geese-resume-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read extraction dir: %w", err)
	}

	var b strings.Builder
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, f.Name()))
		if err != nil {
			continue
		}
		b.WriteString(contentStreamToText(string(content)))
		b.WriteString("\n")
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text found in %s", path)
	}
	return text, nil
}

// contentStreamToText walks a page content stream and emits the shown strings,
// inserting a newline at every text-positioning operator so that visual lines
// survive as line breaks.
func contentStreamToText(stream string) string {
	var b strings.Builder

	// Process the stream in order, switching on operator kind. Positioning
	// operators delimit lines; show operators carry text.
	for _, line := range strings.Split(stream, "\n") {
		if m := tjArrRe.FindStringSubmatch(line); m != nil {
			for _, s := range strRe.FindAllStringSubmatch(m[1], -1) {
				b.WriteString(unescapePDFString(s[1]))
			}
			b.WriteString(" ")
			continue
		}
		for _, m := range tjRe.FindAllStringSubmatch(line, -1) {
			b.WriteString(unescapePDFString(m[1]))
			b.WriteString(" ")
		}
		if tdRe.MatchString(line) {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func unescapePDFString(s string) string {
	r := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "",
		`\t`, " ",
	)
	return r.Replace(s)
}
