package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sokinpui/patches/model"
)

// nullFile is the header path unified diffs use for a side that does not exist.
const nullFile = "/dev/null"

// Options controls how header paths are turned into repository paths.
type Options struct {
	// Strip removes that many leading path components, like patch -pN.
	// A negative value strips git-style "a/" and "b/" prefixes when both
	// sides carry them.
	Strip int
}

// DefaultOptions strips git prefixes automatically.
var DefaultOptions = Options{Strip: -1}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse parses a diff document that describes exactly one file.
func Parse(raw string, opts Options) (model.DiffFile, error) {
	files, err := ParseAll(raw, opts)
	if err != nil {
		return model.DiffFile{}, err
	}
	if len(files) != 1 {
		return model.DiffFile{}, &model.MalformedDiffError{
			Reason: fmt.Sprintf("expected a single file, found %d", len(files)),
		}
	}
	return files[0], nil
}

// ParseAll parses every file section of a diff document, in document order.
func ParseAll(raw string, opts Options) ([]model.DiffFile, error) {
	s := &scanner{lines: splitLines(raw)}

	var files []model.DiffFile
	var cur *section
	flush := func() error {
		if cur == nil {
			return nil
		}
		if cur.modeOnly() {
			// Permission changes carry no content to apply.
			cur = nil
			return nil
		}
		file, err := cur.build(opts)
		if err != nil {
			return err
		}
		files = append(files, file)
		cur = nil
		return nil
	}

	for s.pos < len(s.lines) {
		line := strings.TrimRight(s.lines[s.pos], "\r")

		switch {
		case line == "-- ":
			// format-patch signature; nothing after it belongs to the diff.
			s.pos = len(s.lines)

		case strings.HasPrefix(line, "diff --git "):
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &section{line: s.pos + 1}
			s.pos++

		case strings.HasPrefix(line, "rename from "), strings.HasPrefix(line, "rename to "):
			if cur == nil {
				cur = &section{line: s.pos + 1}
			}
			if name, ok := strings.CutPrefix(line, "rename from "); ok {
				cur.renameFrom = parsePath(name)
			} else {
				cur.renameTo = parsePath(strings.TrimPrefix(line, "rename to "))
			}
			s.pos++

		case strings.HasPrefix(line, "copy from "), strings.HasPrefix(line, "copy to "):
			if cur == nil {
				cur = &section{line: s.pos + 1}
			}
			cur.copied = true
			s.pos++

		case strings.HasPrefix(line, "old mode "), strings.HasPrefix(line, "new mode "):
			if cur != nil {
				cur.modeChange = true
			}
			s.pos++

		case strings.HasPrefix(line, "Binary files ") || line == "GIT binary patch":
			return nil, &model.MalformedDiffError{Line: s.pos + 1, Reason: "binary patches are not supported"}

		case strings.HasPrefix(line, "--- ") && s.peekHeader("+++ "):
			if cur != nil && cur.hasHeaders {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			if cur == nil {
				cur = &section{line: s.pos + 1}
			}
			cur.from = parsePath(line[len("--- "):])
			cur.to = parsePath(strings.TrimRight(s.lines[s.pos+1], "\r")[len("+++ "):])
			cur.hasHeaders = true
			s.pos += 2

		case strings.HasPrefix(line, "@@"):
			if cur == nil || !cur.hasHeaders {
				return nil, &model.MalformedDiffError{Line: s.pos + 1, Reason: "hunk before ---/+++ file header"}
			}
			hunk, err := s.readHunk()
			if err != nil {
				return nil, err
			}
			cur.hunks = append(cur.hunks, hunk)

		case cur != nil && len(cur.hunks) > 0 && isBodyLine(line):
			return nil, &model.MalformedDiffError{
				Line:   s.pos + 1,
				Reason: "hunk has more lines than its header declares",
			}

		default:
			s.pos++
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &model.MalformedDiffError{Reason: "no ---/+++ file header found"}
	}
	return files, nil
}

type scanner struct {
	lines []string
	pos   int
}

func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (s *scanner) peekHeader(prefix string) bool {
	return s.pos+1 < len(s.lines) && strings.HasPrefix(s.lines[s.pos+1], prefix)
}

// readHunk consumes a hunk header and exactly as many body lines as the
// header's counts call for.
func (s *scanner) readHunk() (model.Hunk, error) {
	headerLine := s.pos + 1
	m := hunkHeaderRegex.FindStringSubmatch(strings.TrimRight(s.lines[s.pos], "\r"))
	if m == nil {
		return model.Hunk{}, &model.MalformedDiffError{
			Line:   headerLine,
			Reason: fmt.Sprintf("invalid hunk header %q", s.lines[s.pos]),
		}
	}

	h := model.Hunk{
		OrigStart: atoi(m[1]),
		OrigCount: count(m[2]),
		NewStart:  atoi(m[3]),
		NewCount:  count(m[4]),
		Section:   m[5],
	}
	if h.OrigCount == 0 && h.NewCount == 0 {
		return model.Hunk{}, &model.MalformedDiffError{Line: headerLine, Reason: "empty hunk"}
	}
	s.pos++

	origLeft, newLeft := h.OrigCount, h.NewCount
	for origLeft > 0 || newLeft > 0 {
		if s.pos >= len(s.lines) {
			return model.Hunk{}, &model.MalformedDiffError{
				Line: headerLine,
				Reason: fmt.Sprintf("hunk header declares %d original and %d new lines, input ends with %d and %d missing",
					h.OrigCount, h.NewCount, origLeft, newLeft),
			}
		}

		line := s.lines[s.pos]
		if strings.HasPrefix(line, `\`) {
			if err := markMissingEOL(&h, s.pos+1); err != nil {
				return model.Hunk{}, err
			}
			s.pos++
			continue
		}

		var kind model.LineKind
		var text string
		switch {
		case line == "":
			kind = model.Context
		case line[0] == ' ':
			kind, text = model.Context, line[1:]
		case line[0] == '+':
			kind, text = model.Added, line[1:]
		case line[0] == '-':
			kind, text = model.Removed, line[1:]
		default:
			return model.Hunk{}, &model.MalformedDiffError{
				Line:   s.pos + 1,
				Reason: "hunk has fewer lines than its header declares",
			}
		}

		switch kind {
		case model.Context:
			if origLeft == 0 || newLeft == 0 {
				return model.Hunk{}, countMismatch(s.pos+1, kind)
			}
			origLeft--
			newLeft--
		case model.Removed:
			if origLeft == 0 {
				return model.Hunk{}, countMismatch(s.pos+1, kind)
			}
			origLeft--
		case model.Added:
			if newLeft == 0 {
				return model.Hunk{}, countMismatch(s.pos+1, kind)
			}
			newLeft--
		}

		h.Lines = append(h.Lines, model.Line{Kind: kind, Text: text})
		s.pos++
	}

	if s.pos < len(s.lines) && strings.HasPrefix(s.lines[s.pos], `\`) {
		if err := markMissingEOL(&h, s.pos+1); err != nil {
			return model.Hunk{}, err
		}
		s.pos++
	}
	return h, nil
}

// markMissingEOL applies a "\ No newline at end of file" marker to the side(s)
// of the hunk's most recent line.
func markMissingEOL(h *model.Hunk, line int) error {
	if len(h.Lines) == 0 {
		return &model.MalformedDiffError{Line: line, Reason: "no-newline marker without a preceding line"}
	}
	switch h.Lines[len(h.Lines)-1].Kind {
	case model.Context:
		h.OrigMissingEOL = true
		h.NewMissingEOL = true
	case model.Removed:
		h.OrigMissingEOL = true
	case model.Added:
		h.NewMissingEOL = true
	}
	return nil
}

func countMismatch(line int, kind model.LineKind) error {
	return &model.MalformedDiffError{
		Line:   line,
		Reason: fmt.Sprintf("%s line exceeds the hunk header's line counts", kind),
	}
}

func isBodyLine(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '+' || line[0] == '-')
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func count(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}

// parsePath extracts the file name from a header field, dropping a trailing
// timestamp and C-style quoting.
func parsePath(field string) string {
	field = strings.TrimRight(field, "\r")
	if strings.HasPrefix(field, `"`) {
		if quoted, err := strconv.QuotedPrefix(field); err == nil {
			if name, err := strconv.Unquote(quoted); err == nil {
				return name
			}
		}
	}
	if i := strings.IndexByte(field, '\t'); i >= 0 {
		field = field[:i]
	}
	return strings.TrimRight(field, " ")
}

type section struct {
	line       int
	hasHeaders bool
	from, to   string
	renameFrom string
	renameTo   string
	copied     bool
	modeChange bool
	hunks      []model.Hunk
}

func (c *section) modeOnly() bool {
	return c.modeChange && !c.hasHeaders && c.renameFrom == "" && c.renameTo == "" && !c.copied
}

func (c *section) build(opts Options) (model.DiffFile, error) {
	if c.copied {
		return model.DiffFile{}, &model.MalformedDiffError{Line: c.line, Reason: "copy is not supported"}
	}

	var src, dst model.FileRef
	switch {
	case c.hasHeaders:
		src, dst = opts.refs(c.from, c.to)
	case c.renameFrom != "" && c.renameTo != "":
		src, dst = model.File(c.renameFrom), model.File(c.renameTo)
	default:
		return model.DiffFile{}, &model.MalformedDiffError{Line: c.line, Reason: "missing ---/+++ file header"}
	}

	if (src.Present && src.Path == "") || (dst.Present && dst.Path == "") {
		return model.DiffFile{}, &model.MalformedDiffError{Line: c.line, Reason: "empty file path in header"}
	}

	d := model.DiffFile{Source: src, Target: dst, Hunks: c.hunks}
	switch {
	case !src.Present && !dst.Present:
		return model.DiffFile{}, &model.MalformedDiffError{Line: c.line, Reason: "both sides of the header are " + nullFile}
	case !src.Present:
		d.Operation = model.Create
	case !dst.Present:
		d.Operation = model.Delete
	case src.Path != dst.Path:
		d.Operation = model.Rename
	default:
		d.Operation = model.Update
	}

	if len(d.Hunks) == 0 && d.Operation != model.Rename {
		return model.DiffFile{}, &model.MalformedDiffError{
			Line:   c.line,
			Reason: fmt.Sprintf("no hunks for %s of %s", d.Operation, d.Path()),
		}
	}
	return d, nil
}

func (o Options) refs(from, to string) (model.FileRef, model.FileRef) {
	fromNull, toNull := from == nullFile, to == nullFile

	if o.Strip < 0 {
		gitStyle := (fromNull || strings.HasPrefix(from, "a/")) && (toNull || strings.HasPrefix(to, "b/"))
		if gitStyle {
			from = strings.TrimPrefix(from, "a/")
			to = strings.TrimPrefix(to, "b/")
		}
	} else {
		from = stripComponents(from, o.Strip)
		to = stripComponents(to, o.Strip)
	}

	src, dst := model.File(from), model.File(to)
	if fromNull {
		src = model.NullFile
	}
	if toNull {
		dst = model.NullFile
	}
	return src, dst
}

func stripComponents(path string, n int) string {
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(path, '/')
		if idx < 0 {
			return path
		}
		path = path[idx+1:]
	}
	return path
}
