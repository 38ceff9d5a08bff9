// Package dfn provides directory scanning for DFN definition trees.
package dfn

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome of parsing one file of a workspace.
type FileResult struct {
	Path        string       `json:"path"`
	Definition  *Definition  `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// HasErrors reports whether any diagnostic has error severity.
func (r FileResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Workspace parses every definition file found under a set of roots.
type Workspace struct {
	options WorkspaceOptions
	parser  *Parser
	store   *Store
}

// WorkspaceOptions configures file selection and parallelism.
type WorkspaceOptions struct {
	Roots       []string // files or directories to scan
	Extensions  []string // matched case-insensitively, e.g. ".dfn"
	Concurrency int      // 0 means GOMAXPROCS
}

// NewWorkspace creates a workspace over roots using the default parser.
func NewWorkspace(roots ...string) *Workspace {
	return &Workspace{
		options: WorkspaceOptions{
			Roots:      roots,
			Extensions: []string{".dfn"},
		},
		parser: NewParser(),
	}
}

// WithOptions sets workspace options. Empty Extensions keeps the default.
func (w *Workspace) WithOptions(opts WorkspaceOptions) *Workspace {
	if len(opts.Extensions) == 0 {
		opts.Extensions = w.options.Extensions
	}
	w.options = opts
	return w
}

// Roots returns the files and directories the workspace scans.
func (w *Workspace) Roots() []string {
	return append([]string(nil), w.options.Roots...)
}

// WithParser sets the parser used for every file.
func (w *Workspace) WithParser(p *Parser) *Workspace {
	w.parser = p
	return w
}

// WithStore records each parsed definition in s.
func (w *Workspace) WithStore(s *Store) *Workspace {
	w.store = s
	return w
}

// Files lists the definition files under the workspace roots, sorted and
// without duplicates.
func (w *Workspace) Files() ([]string, error) {
	visited := make(map[string]bool)
	var files []string

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if !visited[abs] {
			visited[abs] = true
			files = append(files, abs)
		}
		return nil
	}

	for _, root := range w.options.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		// An explicitly named file is parsed whatever its extension.
		if !info.IsDir() {
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !w.Matches(path) {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether path has one of the workspace extensions.
func (w *Workspace) Matches(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.options.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Scan parses every file of the workspace. Files are independent, so they are
// parsed concurrently. Results are sorted by path.
func (w *Workspace) Scan(ctx context.Context) ([]FileResult, error) {
	files, err := w.Files()
	if err != nil {
		return nil, err
	}

	limit := w.options.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := w.ParseFile(path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseFile reads and parses a single file.
func (w *Workspace) ParseFile(path string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read file: %w", err)
	}

	def, diags := w.parser.ParseDefinition(FileURI(path), string(data))
	if w.store != nil {
		w.store.Append(def)
	}

	return FileResult{
		Path:        path,
		Definition:  def,
		Diagnostics: diags,
	}, nil
}

// FileURI returns the file:// URI for a local path.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
