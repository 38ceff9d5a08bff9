// Package dfn parses UOX3 definition (DFN) documents into sections and
// structural diagnostics.
package dfn

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf16"
)

// MaxLineLength bounds a single line read through ParseReader.
const MaxLineLength = 16 << 20

var entryPattern = regexp.MustCompile(`^(\w+)=(.*)$`)

// Scanner wraps a bufio.Scanner and tracks the zero-based index of the
// current line.
type Scanner struct {
	*bufio.Scanner
	lineNum int
}

// NewScanner creates a new Scanner from an io.Reader. Lines may end in
// "\n" or "\r\n".
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	return &Scanner{
		Scanner: sc,
		lineNum: -1,
	}
}

// NextLine advances the scanner and returns the current line index and text.
func (s *Scanner) NextLine() (int, string, bool) {
	if !s.Scan() {
		return s.lineNum, "", false
	}
	s.lineNum++
	return s.lineNum, s.Text(), true
}

// Parser scans DFN text. A Parser holds no per-document state and may be
// shared between goroutines.
type Parser struct {
	category      Category
	source        string
	commentMarker string
	legacyTrim    bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithCategory sets the category used to annotate diagnostic messages.
// It has no effect on how the text is parsed.
func WithCategory(c Category) Option {
	return func(p *Parser) { p.category = c }
}

// WithSource sets the source tag attached to diagnostics.
func WithSource(source string) Option {
	return func(p *Parser) { p.source = source }
}

// WithCommentMarker sets the line-comment marker.
func WithCommentMarker(marker string) Option {
	return func(p *Parser) { p.commentMarker = marker }
}

// WithLegacyCommentTrim makes comment stripping also drop the character just
// before the marker, which reproduces the column-for-column output of the
// original TypeScript server.
func WithLegacyCommentTrim(on bool) Option {
	return func(p *Parser) { p.legacyTrim = on }
}

// NewParser creates a new Parser with default configuration.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		source:        DefaultSource,
		commentMarker: "//",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// With returns a copy of p with opts applied.
func (p *Parser) With(opts ...Option) *Parser {
	cp := *p
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Parse parses text with the default parser.
func Parse(text string) Result {
	return NewParser().Parse(text)
}

// Parse scans text and returns its sections and diagnostics. Malformed input
// is reported through diagnostics; Parse never fails.
func (p *Parser) Parse(text string) Result {
	sc := NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 4096), len(text)+1)
	res, _ := p.scan(sc)
	return res
}

// ParseReader is like Parse but reads the document from r. The returned error
// is only ever a read failure; the partial result is still returned.
func (p *Parser) ParseReader(r io.Reader) (Result, error) {
	res, err := p.scan(NewScanner(r))
	if err != nil {
		return res, fmt.Errorf("read document: %w", err)
	}
	return res, nil
}

// ParseDefinition parses text as the document identified by uri. The
// category is inferred from the URI and used for message annotation.
func (p *Parser) ParseDefinition(uri, text string) (*Definition, []Diagnostic) {
	cat := ClassifyURI(uri)
	res := p.With(WithCategory(cat)).Parse(text)
	def := &Definition{
		Name:     BaseName(uri),
		URI:      uri,
		Category: cat,
		Sections: res.Sections,
	}
	return def, res.Diagnostics
}

// scan runs the block state machine over every line of sc.
func (p *Parser) scan(sc *Scanner) (Result, error) {
	var (
		res         Result
		current     *Section
		insideBlock bool
	)

	for {
		i, line, ok := sc.NextLine()
		if !ok {
			break
		}

		trimmed := p.stripComment(strings.TrimSpace(line))
		if trimmed == "" {
			continue
		}

		report := func(sev Severity, msg string) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Line:        i,
				StartColumn: 0,
				EndColumn:   utf16Len(line),
				Severity:    sev,
				Message:     FormatMessage(p.category, current, fmt.Sprintf("Line %d: %s", i+1, msg)),
				Source:      p.source,
			})
		}

		switch {
		case isHeader(trimmed):
			if insideBlock {
				report(SeverityError, "new section before closing '}'")
			}
			current = newSection(trimmed[1:len(trimmed)-1], i)
			res.Sections = append(res.Sections, current)
		case trimmed == "{":
			insideBlock = true
		case trimmed == "}":
			insideBlock = false
		case insideBlock && current != nil:
			m := entryPattern.FindStringSubmatch(trimmed)
			if m == nil {
				report(SeverityError, "invalid entry")
				continue
			}
			current.set(m[1], m[2])
			if strings.TrimSpace(m[2]) == "" {
				report(SeverityWarning, fmt.Sprintf("entry %s has no value", m[1]))
			}
		default:
			report(SeverityError, "content outside of a block")
		}
	}

	if insideBlock {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Line:     -1,
			Severity: SeverityError,
			Message:  FormatMessage(p.category, current, "file ended before closing '}'"),
			Source:   p.source,
		})
	}

	return res, sc.Err()
}

// stripComment cuts s at the first comment marker and trims the remainder.
func (p *Parser) stripComment(s string) string {
	if p.commentMarker == "" {
		return s
	}
	pos := strings.Index(s, p.commentMarker)
	if pos < 0 {
		return s
	}
	if p.legacyTrim {
		pos--
		if pos < 0 {
			pos = 0
		}
	}
	return strings.TrimSpace(s[:pos])
}

func isHeader(s string) bool {
	return len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']'
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
