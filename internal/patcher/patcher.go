package patcher

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/sokinpui/patches/model"
)

// Content is a file's text split into lines without their terminators.
type Content struct {
	Lines []string
	// MissingEOL is set when the last line has no trailing newline.
	MissingEOL bool
}

// Split turns raw file bytes into Content.
func Split(data []byte) Content {
	if len(data) == 0 {
		return Content{}
	}
	lines := strings.Split(string(data), "\n")
	if lines[len(lines)-1] == "" {
		return Content{Lines: lines[:len(lines)-1]}
	}
	return Content{Lines: lines, MissingEOL: true}
}

// Bytes joins the lines back into file bytes.
func (c Content) Bytes() []byte {
	if len(c.Lines) == 0 {
		return []byte{}
	}
	s := strings.Join(c.Lines, "\n")
	if !c.MissingEOL {
		s += "\n"
	}
	return []byte(s)
}

// Apply replays hunks against original and returns the new content.
// Context and removed lines must match the original exactly.
func Apply(original Content, hunks []model.Hunk) (Content, error) {
	orig := original.Lines
	out := make([]string, 0, len(orig))

	order := make([]int, len(hunks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(hunks[a].OrigStart, hunks[b].OrigStart)
	})

	pos := 0
	var last *model.Hunk
	for _, idx := range order {
		h := &hunks[idx]
		fail := func(line int, expected, actual, reason string) error {
			return &model.HunkApplyError{
				Hunk:     idx + 1,
				Header:   FormatHeader(*h),
				Line:     line,
				Expected: expected,
				Actual:   actual,
				Reason:   reason,
			}
		}

		// A hunk that removes nothing inserts after line OrigStart.
		start := h.OrigStart - 1
		if h.OrigCount == 0 {
			start = h.OrigStart
		}
		if start < 0 {
			return Content{}, fail(h.OrigStart, "", "", "hunk starts before the first line")
		}
		if start < pos {
			return Content{}, fail(h.OrigStart, "", "", "hunk overlaps the previous hunk")
		}
		if start > len(orig) {
			return Content{}, fail(h.OrigStart, "", "", fmt.Sprintf("hunk starts beyond end of file (%d lines)", len(orig)))
		}

		out = append(out, orig[pos:start]...)
		pos = start

		for _, l := range h.Lines {
			if l.Kind == model.Added {
				out = append(out, l.Text)
				continue
			}
			if pos >= len(orig) {
				return Content{}, fail(pos+1, l.Text, "", fmt.Sprintf("%s line past end of file", l.Kind))
			}
			if orig[pos] != l.Text {
				return Content{}, fail(pos+1, l.Text, orig[pos], fmt.Sprintf("%s line does not match", l.Kind))
			}
			if l.Kind == model.Context {
				out = append(out, orig[pos])
			}
			pos++
		}
		last = h
	}

	reachedEnd := pos == len(orig)
	out = append(out, orig[pos:]...)

	result := Content{Lines: out, MissingEOL: original.MissingEOL}
	// Only an explicit marker change on the final hunk alters the terminator.
	if last != nil && reachedEnd && last.OrigMissingEOL != last.NewMissingEOL {
		result.MissingEOL = last.NewMissingEOL
	}
	if len(out) == 0 {
		result.MissingEOL = false
	}
	return result, nil
}
