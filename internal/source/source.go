package source

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// SourceProvider determines the ordered list of diff files to apply.
type SourceProvider struct {
	fs afero.Fs
}

// New creates a new SourceProvider reading from fs.
func New(fs afero.Fs) *SourceProvider {
	return &SourceProvider{fs: fs}
}

// GetDiffs returns args unchanged when any are given, otherwise the regular
// files in dir matching pattern in lexical order. A missing dir yields no diffs.
func (sp *SourceProvider) GetDiffs(args []string, dir, pattern string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if _, err := sp.fs.Stat(dir); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read patch directory: %w", err)
	}

	matches, err := afero.Glob(sp.fs, filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid diff pattern %q: %w", pattern, err)
	}

	diffs := matches[:0]
	for _, path := range matches {
		info, err := sp.fs.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.Mode().IsRegular() {
			diffs = append(diffs, path)
		}
	}
	sort.Strings(diffs)
	return diffs, nil
}
