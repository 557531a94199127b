// Package patches applies an ordered sequence of unified diffs to a
// directory tree, stopping at the first diff that cannot be applied.
package patches

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sokinpui/patches/internal/fs"
	"github.com/sokinpui/patches/internal/logging"
	"github.com/sokinpui/patches/internal/parser"
	"github.com/sokinpui/patches/internal/patcher"
	"github.com/sokinpui/patches/model"
)

// ProgressUpdate is called with the number of diffs applied so far.
type ProgressUpdate func(current, total int)

// Option configures a Patcher.
type Option func(*Patcher)

// WithFs sets the filesystem that holds both the root and the diff files.
func WithFs(base afero.Fs) Option {
	return func(p *Patcher) { p.base = base }
}

// WithStrip sets how many leading path components are stripped from header
// paths. A negative value strips a/ and b/ from git-style headers only.
func WithStrip(n int) Option {
	return func(p *Patcher) { p.parseOpts.Strip = n }
}

// WithLogger sets the logger stages and results are reported to. Without
// it a Patcher logs nothing.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Patcher) { p.logger = logger }
}

// WithProgress registers a callback invoked after each applied diff.
func WithProgress(cb ProgressUpdate) Option {
	return func(p *Patcher) { p.progress = cb }
}

// DetailedError carries the stack of a recovered panic.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error { return e.Err }

// Patcher applies diffs to one root directory.
type Patcher struct {
	base      afero.Fs
	ws        *fs.Workspace
	parseOpts parser.Options
	logger    zerolog.Logger
	progress  ProgressUpdate
}

// New creates a Patcher for root, which must be an existing directory.
func New(root string, opts ...Option) (*Patcher, error) {
	p := &Patcher{
		base:      afero.NewOsFs(),
		parseOpts: parser.DefaultOptions,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	info, err := p.base.Stat(root)
	if err != nil {
		return nil, &model.IOError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &model.IOError{Op: "stat", Path: root, Err: errors.New("not a directory")}
	}

	p.ws = fs.NewWorkspace(p.base, root)
	return p, nil
}

// ApplyPatches applies diffs to the root one by one, in order. It stops at
// the first failure and returns a *model.PatchApplicationError naming it,
// together with the outcomes of everything applied before it. Changes
// already written are left in place.
func (p *Patcher) ApplyPatches(diffs []string) ([]model.Outcome, error) {
	done := logging.LogOperationStart(p.logger, "apply_patches")
	defer done()

	var outcomes []model.Outcome
	total := len(diffs)
	p.report(0, total)
	p.logger.Info().Str("root", p.ws.Root()).Int("diffs", total).Msg("Applying patches")

	for i, diffPath := range diffs {
		applied, err := p.applyDiff(i, diffPath)
		outcomes = append(outcomes, applied...)
		if err != nil {
			p.logger.Error().Err(err).Int("index", i).Str("diff", diffPath).Msg("Patch failed")
			return outcomes, err
		}
		p.report(i+1, total)
	}
	return outcomes, nil
}

// ApplyPatches applies diffs to the directory at root using the OS filesystem.
func ApplyPatches(root string, diffs []string) error {
	p, err := New(root)
	if err != nil {
		return err
	}
	_, err = p.ApplyPatches(diffs)
	return err
}

func (p *Patcher) report(current, total int) {
	if p.progress != nil {
		p.progress(current, total)
	}
}

func (p *Patcher) applyDiff(index int, diffPath string) (outcomes []model.Outcome, err error) {
	logger := p.logger.With().Int("index", index).Str("diff", diffPath).Logger()
	stage := model.StageReading
	fail := func(err error) error {
		return &model.PatchApplicationError{Index: index, DiffPath: diffPath, Stage: stage, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(&DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			})
		}
	}()

	logger.Debug().Stringer("stage", stage).Send()
	raw, err := afero.ReadFile(p.base, diffPath)
	if err != nil {
		return nil, fail(&model.IOError{Op: "read", Path: diffPath, Err: err})
	}

	stage = model.StageParsing
	logger.Debug().Stringer("stage", stage).Send()
	files, err := p.parse(diffPath, raw)
	if err != nil {
		return nil, fail(err)
	}

	for _, d := range files {
		if err := p.applyFile(logger, d, &stage); err != nil {
			return outcomes, fail(err)
		}
		logger.Info().
			Stringer("operation", d.Operation).
			Str("path", d.Path()).
			Msg("Applied")
		outcomes = append(outcomes, model.Outcome{
			Index:     index,
			DiffPath:  diffPath,
			Operation: d.Operation,
			Source:    d.Source.Path,
			Target:    d.Target.Path,
		})
	}
	return outcomes, nil
}

// parse reads every file section of a diff. Markdown inputs contribute the
// sections of their diff and patch code blocks.
func (p *Patcher) parse(diffPath string, raw []byte) ([]model.DiffFile, error) {
	if !isMarkdown(diffPath) {
		return parser.ParseAll(string(raw), p.parseOpts)
	}

	blocks, err := parser.ExtractDiffBlocks(raw)
	if err != nil {
		return nil, &model.MalformedDiffError{Reason: fmt.Sprintf("markdown: %v", err)}
	}
	if len(blocks) == 0 {
		return nil, &model.MalformedDiffError{Reason: "no diff code blocks found"}
	}

	var files []model.DiffFile
	for _, block := range blocks {
		parsed, err := parser.ParseAll(block, p.parseOpts)
		if err != nil {
			return nil, err
		}
		files = append(files, parsed...)
	}
	return files, nil
}

// applyFile validates, applies and commits one file section, keeping stage
// at the step in progress.
func (p *Patcher) applyFile(logger zerolog.Logger, d model.DiffFile, stage *model.Stage) error {
	*stage = model.StageValidating
	logger.Debug().Stringer("stage", *stage).Str("path", d.Path()).Send()
	if err := p.ws.Validate(d); err != nil {
		return err
	}

	var data []byte
	if d.Operation != model.Delete {
		*stage = model.StageApplying
		logger.Debug().Stringer("stage", *stage).Int("hunks", len(d.Hunks)).Send()

		var original patcher.Content
		if d.Operation != model.Create {
			current, err := p.ws.ReadFile(d.Source.Path)
			if err != nil {
				return err
			}
			original = patcher.Split(current)
		}

		result, err := patcher.Apply(original, d.Hunks)
		if err != nil {
			var hunkErr *model.HunkApplyError
			if errors.As(err, &hunkErr) {
				hunkErr.Path = d.Path()
			}
			logger.Debug().Str("section", patcher.Format(d)).Msg("Section does not apply")
			return err
		}
		data = result.Bytes()
	}

	*stage = model.StageCommitting
	logger.Debug().Stringer("stage", *stage).Send()
	return p.ws.Commit(d, data)
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
