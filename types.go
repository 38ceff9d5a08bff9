// Package dfn defines the core data structures for DFN parsing.
package dfn

import "fmt"

// DefaultSource is the source tag attached to every diagnostic.
const DefaultSource = "uox3dfn"

// Section represents one [header] occurrence and the entries of its block.
type Section struct {
	Header    string
	Entries   map[string]string
	StartLine int

	keys []string
}

func newSection(header string, line int) *Section {
	return &Section{
		Header:    header,
		Entries:   make(map[string]string),
		StartLine: line,
	}
}

// set stores value under key. A repeated key overwrites the value but keeps
// its original position in Keys.
func (s *Section) set(key, value string) {
	if _, ok := s.Entries[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.Entries[key] = value
}

// Keys returns the entry keys in the order they first appeared.
func (s *Section) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Get returns the raw value stored for key.
func (s *Section) Get(key string) (string, bool) {
	v, ok := s.Entries[key]
	return v, ok
}

// Definition is the parse result for one document.
type Definition struct {
	Name     string
	URI      string
	Category Category
	Sections []*Section
}

// Section returns the first section with the given header, or nil.
func (d *Definition) Section(header string) *Section {
	for _, s := range d.Sections {
		if s.Header == header {
			return s
		}
	}
	return nil
}

// Severity of a diagnostic. Values match the LSP DiagnosticSeverity codes.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Diagnostic describes one structural defect.
//
// Columns are counted in UTF-16 code units. The end-of-file diagnostic has
// no line to point to and is anchored at Line -1 with an empty range.
type Diagnostic struct {
	Line        int      `json:"line"`
	StartColumn int      `json:"startColumn"`
	EndColumn   int      `json:"endColumn"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Source      string   `json:"source"`
}

// IsEOF reports whether d is anchored at the end-of-file sentinel.
func (d Diagnostic) IsEOF() bool {
	return d.Line < 0
}

// Result holds the sections and diagnostics of a single parse.
type Result struct {
	Sections    []*Section
	Diagnostics []Diagnostic
}

// Errors returns the error-severity diagnostics.
func (r Result) Errors() []Diagnostic {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity diagnostics.
func (r Result) Warnings() []Diagnostic {
	return r.filter(SeverityWarning)
}

func (r Result) filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
