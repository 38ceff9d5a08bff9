// Package report renders workspace scan results for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/uox3/dfn"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Summary counts what a scan found.
type Summary struct {
	Files    int `json:"files"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Failed reports whether the scan should fail. Warnings only count when
// strict is set.
func (s Summary) Failed(strict bool) bool {
	return s.Errors > 0 || (strict && s.Warnings > 0)
}

// Summarize counts files and diagnostics by severity.
func Summarize(results []dfn.FileResult) Summary {
	sum := Summary{Files: len(results)}
	for _, r := range results {
		for _, d := range r.Diagnostics {
			switch d.Severity {
			case dfn.SeverityError:
				sum.Errors++
			case dfn.SeverityWarning:
				sum.Warnings++
			}
		}
	}
	return sum
}

// Writer renders results to an output stream.
type Writer struct {
	out    io.Writer
	format string
	base   string

	pathStyle  lipgloss.Style
	errStyle   lipgloss.Style
	warnStyle  lipgloss.Style
	faintStyle lipgloss.Style
}

// New creates a Writer. Paths are shown relative to the working directory
// when possible. Colors are only used when out is a terminal.
func New(out io.Writer, format string) (*Writer, error) {
	switch format {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	r := lipgloss.NewRenderer(out)
	base, _ := os.Getwd()
	return &Writer{
		out:        out,
		format:     format,
		base:       base,
		pathStyle:  r.NewStyle().Bold(true),
		errStyle:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warnStyle:  r.NewStyle().Foreground(lipgloss.Color("11")),
		faintStyle: r.NewStyle().Faint(true),
	}, nil
}

type jsonFile struct {
	Path        string           `json:"path"`
	Category    string           `json:"category,omitempty"`
	Sections    int              `json:"sections"`
	Diagnostics []dfn.Diagnostic `json:"diagnostics"`
}

type jsonReport struct {
	Files   []jsonFile `json:"files"`
	Summary Summary    `json:"summary"`
}

// Write renders every result followed by a summary.
func (w *Writer) Write(results []dfn.FileResult) error {
	if w.format == FormatJSON {
		return w.writeJSON(results)
	}
	for _, r := range results {
		if err := w.WriteFile(r); err != nil {
			return err
		}
	}
	sum := Summarize(results)
	_, err := fmt.Fprintln(w.out, w.faintStyle.Render(fmt.Sprintf(
		"%d %s, %d %s, %d %s",
		sum.Files, plural(sum.Files, "file"),
		sum.Errors, plural(sum.Errors, "error"),
		sum.Warnings, plural(sum.Warnings, "warning"),
	)))
	return err
}

// WriteFile renders the diagnostics of a single file. Files without
// diagnostics produce no text output.
func (w *Writer) WriteFile(r dfn.FileResult) error {
	if w.format == FormatJSON {
		return json.NewEncoder(w.out).Encode(w.toJSON(r))
	}

	path := w.relative(r.Path)
	for _, d := range r.Diagnostics {
		loc := path
		if !d.IsEOF() {
			loc = fmt.Sprintf("%s:%d:%d", path, d.Line+1, d.StartColumn+1)
		}

		sev := w.warnStyle.Render(d.Severity.String())
		if d.Severity == dfn.SeverityError {
			sev = w.errStyle.Render(d.Severity.String())
		}

		if _, err := fmt.Fprintf(w.out, "%s: %s: %s\n", w.pathStyle.Render(loc), sev, d.Message); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeJSON(results []dfn.FileResult) error {
	rep := jsonReport{Files: make([]jsonFile, 0, len(results)), Summary: Summarize(results)}
	for _, r := range results {
		rep.Files = append(rep.Files, w.toJSON(r))
	}
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func (w *Writer) toJSON(r dfn.FileResult) jsonFile {
	f := jsonFile{
		Path:        w.relative(r.Path),
		Diagnostics: r.Diagnostics,
	}
	if f.Diagnostics == nil {
		f.Diagnostics = []dfn.Diagnostic{}
	}
	if r.Definition != nil {
		f.Category = r.Definition.Category.String()
		f.Sections = len(r.Definition.Sections)
	}
	return f
}

func (w *Writer) relative(path string) string {
	if w.base == "" {
		return path
	}
	rel, err := filepath.Rel(w.base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
