package lsp

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Document is the editor's current text of an open file.
type Document struct {
	URI     string
	Version int32
	Text    string
}

// Apply applies content changes in order.
func (d *Document) Apply(changes []TextDocumentContentChangeEvent) error {
	for i, ch := range changes {
		if ch.Range == nil {
			d.Text = ch.Text
			continue
		}
		start := d.offset(ch.Range.Start)
		end := d.offset(ch.Range.End)
		if end < start {
			return fmt.Errorf("change %d: range end precedes start", i)
		}
		d.Text = d.Text[:start] + ch.Text + d.Text[end:]
	}
	return nil
}

// LineCount returns the number of lines, counting a trailing empty line.
func (d *Document) LineCount() int {
	return strings.Count(d.Text, "\n") + 1
}

// offset converts a position to a byte offset. Positions past the end of a
// line clamp to the line end, positions past the last line to the text end.
func (d *Document) offset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}

	lineStart := 0
	for l := 0; l < pos.Line; l++ {
		nl := strings.IndexByte(d.Text[lineStart:], '\n')
		if nl < 0 {
			return len(d.Text)
		}
		lineStart += nl + 1
	}

	lineEnd := len(d.Text)
	if nl := strings.IndexByte(d.Text[lineStart:], '\n'); nl >= 0 {
		lineEnd = lineStart + nl
		if lineEnd > lineStart && d.Text[lineEnd-1] == '\r' {
			lineEnd--
		}
	}

	off := lineStart
	units := 0
	for off < lineEnd && units < pos.Character {
		r, size := utf8.DecodeRuneInString(d.Text[off:])
		units += utf16.RuneLen(r)
		off += size
	}
	return off
}
