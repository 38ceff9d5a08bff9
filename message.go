package dfn

import "strings"

// FormatMessage annotates msg with the owning category and the header of the
// section being parsed, either of which may be absent.
//
//	FormatMessage(Items, sec, "Line 4: invalid entry")
//	// [items] Line 4: invalid entry (in [SWORD])
func FormatMessage(cat Category, section *Section, msg string) string {
	var b strings.Builder
	if cat != Uncategorized {
		b.WriteString("[")
		b.WriteString(cat.DirName())
		b.WriteString("] ")
	}
	b.WriteString(msg)
	if section != nil {
		b.WriteString(" (in [")
		b.WriteString(section.Header)
		b.WriteString("])")
	}
	return b.String()
}
