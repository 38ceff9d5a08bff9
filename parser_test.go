package dfn

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	p := NewParser()
	require.NotNil(t, p)
	assert.Equal(t, DefaultSource, p.source)
	assert.Equal(t, "//", p.commentMarker)
	assert.False(t, p.legacyTrim)
}

func TestParse_TwoSectionsWithEmptyValue(t *testing.T) {
	res := Parse("[A]\n{\nfoo=1\n}\n[B]\n{\nbar=\n}")

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "A", res.Sections[0].Header)
	assert.Equal(t, map[string]string{"foo": "1"}, res.Sections[0].Entries)
	assert.Equal(t, "B", res.Sections[1].Header)
	assert.Equal(t, map[string]string{"bar": ""}, res.Sections[1].Entries)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, 6, d.Line)
	assert.Equal(t, "Line 7: entry bar has no value (in [B])", d.Message)
	assert.Equal(t, DefaultSource, d.Source)
	assert.Empty(t, res.Errors())
}

func TestParse_UnterminatedBlock(t *testing.T) {
	res := Parse("[A]\n{\nfoo=1\n")

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "1", res.Sections[0].Entries["foo"])

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.True(t, d.IsEOF())
	assert.Equal(t, -1, d.Line)
	assert.Equal(t, 0, d.StartColumn)
	assert.Equal(t, 0, d.EndColumn)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, "file ended before closing '}' (in [A])", d.Message)
}

func TestParse_HeaderInsideBlock(t *testing.T) {
	res := Parse("[A]\n{\n[B]\n}")

	require.Len(t, res.Sections, 2)
	assert.Equal(t, "A", res.Sections[0].Header)
	assert.Equal(t, 0, res.Sections[0].StartLine)
	assert.Equal(t, "B", res.Sections[1].Header)
	assert.Equal(t, 2, res.Sections[1].StartLine)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, SeverityError, d.Severity)
	// The defect is reported against the section that was still open.
	assert.Equal(t, "Line 3: new section before closing '}' (in [A])", d.Message)
}

func TestParse_ContentOutsideBlock(t *testing.T) {
	res := Parse("foo=1")

	assert.Empty(t, res.Sections)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 0, res.Diagnostics[0].Line)
	assert.Equal(t, 5, res.Diagnostics[0].EndColumn)
	assert.Equal(t, "Line 1: content outside of a block", res.Diagnostics[0].Message)
}

func TestParse_Diagnostics(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine []int
		wantSev  []Severity
	}{
		{"well formed", "[A]\n{\nfoo=1\n}", nil, nil},
		{"blank lines anywhere", "\n\n[A]\n\n{\n\nfoo=1\n\n}\n\n", nil, nil},
		{"empty document", "", nil, nil},
		{"comments only", "// header\n   // indented", nil, nil},
		{"invalid entry", "[A]\n{\nnot an entry\n}", []int{2}, []Severity{SeverityError}},
		{"hyphenated key", "[A]\n{\nmy-key=1\n}", []int{2}, []Severity{SeverityError}},
		{"missing key", "[A]\n{\n=1\n}", []int{2}, []Severity{SeverityError}},
		{"content after close", "[A]\n{\n}\nfoo=1", []int{3}, []Severity{SeverityError}},
		{"open before header", "{\nfoo=1\n}", []int{1}, []Severity{SeverityError}},
		{"open before header unterminated", "{\nfoo=1", []int{1, -1}, []Severity{SeverityError, SeverityError}},
		{"whitespace value", "[A]\n{\nfoo=   \n}", []int{2}, []Severity{SeverityWarning}},
		{"reopen is not flagged", "[A]\n{\n{\nfoo=1\n}", nil, nil},
		{"close without open", "[A]\n}\n}", nil, nil},
		{"consecutive headers", "[A]\n[B]\n{\nx=1\n}", nil, nil},
		{
			"mixed",
			"[A]\n{\nfoo=1\nbad line\nbar=\n[B]\nbaz=2\n",
			[]int{3, 4, 5, -1},
			[]Severity{SeverityError, SeverityWarning, SeverityError, SeverityError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			var lines []int
			var sevs []Severity
			for _, d := range res.Diagnostics {
				lines = append(lines, d.Line)
				sevs = append(sevs, d.Severity)
			}
			assert.Equal(t, tt.wantLine, lines)
			assert.Equal(t, tt.wantSev, sevs)
		})
	}
}

func TestParse_Entries(t *testing.T) {
	res := Parse("[A]\n{\n  foo=1\nbar=2\nfoo=3\nexpr=a=b\nspaced= x y \n}")

	require.Len(t, res.Sections, 1)
	s := res.Sections[0]
	assert.Equal(t, "3", s.Entries["foo"])
	assert.Equal(t, "a=b", s.Entries["expr"])
	// The line is trimmed before matching, the value itself is kept raw.
	assert.Equal(t, " x y", s.Entries["spaced"])
	assert.Equal(t, []string{"foo", "bar", "expr", "spaced"}, s.Keys())

	v, ok := s.Get("bar")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestParse_Headers(t *testing.T) {
	res := Parse("[]\n[  spaced header ]\n[a]b]\n  [indented]  // trailing")

	require.Len(t, res.Sections, 4)
	assert.Equal(t, "", res.Sections[0].Header)
	assert.Equal(t, "  spaced header ", res.Sections[1].Header)
	assert.Equal(t, "a]b", res.Sections[2].Header)
	assert.Equal(t, "indented", res.Sections[3].Header)
	assert.Empty(t, res.Diagnostics)
}

func TestParse_CRLF(t *testing.T) {
	res := Parse("[A]\r\n{\r\nfoo=1\r\nbar=\r\n}\r\n")

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "1", res.Sections[0].Entries["foo"])
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 3, res.Diagnostics[0].Line)
	assert.Equal(t, 4, res.Diagnostics[0].EndColumn)
}

func TestParse_ColumnsAreUTF16(t *testing.T) {
	res := Parse("[A]\n{\n  ü😀\n}")

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, 0, d.StartColumn)
	// Two spaces, one BMP rune and one surrogate pair.
	assert.Equal(t, 5, d.EndColumn)
}

func TestParse_CommentStripping(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		line   string
		want   string
		warns  int
	}{
		{"marker after space", false, "foo=1 // note", "1", 0},
		{"marker adjacent", false, "foo=1// note", "1", 0},
		{"url in value", false, "url=http://host", "http:", 0},
		{"legacy after space", true, "foo=1 // note", "1", 0},
		{"legacy adjacent drops one char", true, "foo=1// note", "", 1},
		{"legacy adjacent long value", true, "foo=123// note", "12", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(WithLegacyCommentTrim(tt.legacy))
			res := p.Parse("[A]\n{\n" + tt.line + "\n}")
			require.Len(t, res.Sections, 1)
			for _, v := range res.Sections[0].Entries {
				assert.Equal(t, tt.want, v)
			}
			assert.Len(t, res.Warnings(), tt.warns)
			assert.Empty(t, res.Errors())
		})
	}
}

func TestParse_LegacyCommentAtLineStart(t *testing.T) {
	res := NewParser(WithLegacyCommentTrim(true)).Parse("// only a comment\n[A]\n{\n}")
	assert.Empty(t, res.Diagnostics)
	assert.Len(t, res.Sections, 1)
}

func TestParse_CustomCommentMarker(t *testing.T) {
	p := NewParser(WithCommentMarker("#"))
	res := p.Parse("# heading\n[A]\n{\nfoo=1 # note\nurl=http://x\n}")

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Sections, 1)
	assert.Equal(t, "1", res.Sections[0].Entries["foo"])
	assert.Equal(t, "http://x", res.Sections[0].Entries["url"])
}

func TestParse_CategoryAnnotation(t *testing.T) {
	p := NewParser(WithCategory(HardItems), WithSource("custom"))
	res := p.Parse("[A]\n{\nbad\n}\ntail")

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, "[harditems] Line 3: invalid entry (in [A])", res.Diagnostics[0].Message)
	assert.Equal(t, "[harditems] Line 5: content outside of a block (in [A])", res.Diagnostics[1].Message)
	assert.Equal(t, "custom", res.Diagnostics[0].Source)

	// Annotation never changes structure.
	plain := Parse("[A]\n{\nbad\n}\ntail")
	assert.Equal(t, plain.Sections, res.Sections)
}

func TestParse_Idempotent(t *testing.T) {
	input := "[A]\n{\nfoo=1\nbad\n[B]\nbar=\n"
	first := Parse(input)
	second := Parse(input)
	assert.Equal(t, first, second)
}

func TestParse_SectionsInLineOrder(t *testing.T) {
	res := Parse("[A]\n{\n}\n[B]\n[C]\n{\nx=1\n}\n\n[D]")
	require.Len(t, res.Sections, 4)
	for i := 1; i < len(res.Sections); i++ {
		assert.Less(t, res.Sections[i-1].StartLine, res.Sections[i].StartLine)
	}
}

func TestParse_DiagnosticsBoundedByLines(t *testing.T) {
	fragments := []string{"[A]", "{", "}", "foo=1", "bar=", "junk", "", "// c", "[B] // c", "x=y//z"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := rng.Intn(30)
		lines := make([]string, n)
		for j := range lines {
			lines[j] = fragments[rng.Intn(len(fragments))]
		}
		input := strings.Join(lines, "\n")

		res := Parse(input)
		assert.LessOrEqual(t, len(res.Diagnostics), strings.Count(input, "\n")+1, fmt.Sprintf("input %q", input))
	}
}

func TestParseReader(t *testing.T) {
	res, err := NewParser().ParseReader(strings.NewReader("[A]\n{\nfoo=1\n}"))
	require.NoError(t, err)
	require.Len(t, res.Sections, 1)

	_, err = NewParser().ParseReader(iotest.ErrReader(fmt.Errorf("boom")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestParseDefinition(t *testing.T) {
	p := NewParser()
	def, diags := p.ParseDefinition("file:///srv/uox3/dfndata/items/weapons.dfn", "[SWORD]\n{\nNAME=\n}")

	assert.Equal(t, "weapons.dfn", def.Name)
	assert.Equal(t, "file:///srv/uox3/dfndata/items/weapons.dfn", def.URI)
	assert.Equal(t, Items, def.Category)
	require.Len(t, def.Sections, 1)
	assert.NotNil(t, def.Section("SWORD"))
	assert.Nil(t, def.Section("AXE"))

	require.Len(t, diags, 1)
	assert.Equal(t, "[items] Line 3: entry NAME has no value (in [SWORD])", diags[0].Message)

	// The receiver is left untouched.
	assert.Equal(t, Uncategorized, p.category)
}

func TestParseDefinition_Uncategorized(t *testing.T) {
	def, diags := NewParser().ParseDefinition("file:///srv/weapons/sword.dfn", "junk")
	assert.Equal(t, Uncategorized, def.Category)
	require.Len(t, diags, 1)
	assert.Equal(t, "Line 1: content outside of a block", diags[0].Message)
}

func TestSeverityText(t *testing.T) {
	b, err := SeverityWarning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warning", string(b))

	var s Severity
	require.NoError(t, s.UnmarshalText([]byte("error")))
	assert.Equal(t, SeverityError, s)
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
	assert.Equal(t, "unknown", Severity(9).String())
}
