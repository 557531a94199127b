package patcher

import (
	"fmt"
	"strings"

	"github.com/sokinpui/patches/model"
)

const noNewlineMarker = `\ No newline at end of file`

// FormatHeader renders a hunk's "@@ -a,b +c,d @@" line.
func FormatHeader(h model.Hunk) string {
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OrigStart, h.OrigCount, h.NewStart, h.NewCount)
	if h.Section != "" {
		header += " " + h.Section
	}
	return header
}

// Format renders a parsed diff back to unified-diff text.
func Format(d model.DiffFile) string {
	var b strings.Builder
	b.WriteString("--- " + headerPath(d.Source, "a/") + "\n")
	b.WriteString("+++ " + headerPath(d.Target, "b/") + "\n")

	for _, h := range d.Hunks {
		b.WriteString(FormatHeader(h) + "\n")
		for i, l := range h.Lines {
			switch l.Kind {
			case model.Added:
				b.WriteString("+")
			case model.Removed:
				b.WriteString("-")
			default:
				b.WriteString(" ")
			}
			b.WriteString(l.Text + "\n")
			if markerAfter(h, i) {
				b.WriteString(noNewlineMarker + "\n")
			}
		}
	}
	return b.String()
}

func headerPath(ref model.FileRef, prefix string) string {
	if !ref.Present {
		return "/dev/null"
	}
	return prefix + ref.Path
}

// markerAfter reports whether line i is the last line of a side that lacks
// a trailing newline.
func markerAfter(h model.Hunk, i int) bool {
	kind := h.Lines[i].Kind
	lastOf := func(match func(model.LineKind) bool) bool {
		for _, l := range h.Lines[i+1:] {
			if match(l.Kind) {
				return false
			}
		}
		return true
	}
	origSide := func(k model.LineKind) bool { return k != model.Added }
	newSide := func(k model.LineKind) bool { return k != model.Removed }

	switch kind {
	case model.Context:
		return h.OrigMissingEOL && h.NewMissingEOL && lastOf(origSide) && lastOf(newSide)
	case model.Removed:
		return h.OrigMissingEOL && lastOf(origSide)
	default:
		return h.NewMissingEOL && lastOf(newSide)
	}
}
