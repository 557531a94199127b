package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/patches/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}

// --- Summaries ---

func PrintSummary(s model.Summary) {
	WriteSummary(os.Stdout, s)
}

// WriteSummary writes the per-operation file lists of s, followed by the
// failure if there was one.
func WriteSummary(w io.Writer, s model.Summary) {
	HeaderColor.Fprintln(w, "\n--- Patch Summary ---")

	if s.Message != "" {
		InfoColor.Fprintln(w, s.Message)
	}

	groups := []struct {
		label string
		files []string
	}{
		{"Created %d file(s):", s.Created},
		{"Updated %d file(s):", s.Updated},
		{"Deleted %d file(s):", s.Deleted},
		{"Renamed %d file(s):", s.Renamed},
	}

	empty := true
	for _, g := range groups {
		if len(g.files) == 0 {
			continue
		}
		empty = false
		SuccessColor.Fprintf(w, g.label+"\n", len(g.files))
		for _, f := range g.files {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	if empty && s.Failed == "" {
		InfoColor.Fprintln(w, "No files were changed.")
	}
	if s.Failed != "" {
		ErrorColor.Fprintln(w, "Stopped: "+s.Failed)
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	out     io.Writer
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{out: os.Stderr, total: total, prefix: prefix}
}

// Set moves the bar to current out of total.
func (p *ProgressBar) Set(current, total int) {
	p.current, p.total = current, total
	p.draw()
}

func (p *ProgressBar) Finish() {
	if p.total > 0 {
		fmt.Fprintln(p.out)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(p.out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
