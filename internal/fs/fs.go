package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sokinpui/patches/model"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Workspace gives root-confined access to the directory being patched.
// Every path it accepts is relative to the root.
type Workspace struct {
	root string
	fs   afero.Fs
}

// NewWorkspace roots a workspace at root inside base.
func NewWorkspace(base afero.Fs, root string) *Workspace {
	// BasePathFs confines paths by prefix, which needs an absolute root.
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Workspace{root: root, fs: afero.NewBasePathFs(base, root)}
}

// Root returns the directory the workspace is rooted at.
func (w *Workspace) Root() string {
	return w.root
}

// Validate checks that d's operation is legal for the current state of the
// workspace. It must run immediately before the matching Commit.
func (w *Workspace) Validate(d model.DiffFile) error {
	switch d.Operation {
	case model.Create:
		return w.require(d.Operation, d.Target.Path, false, model.ReasonCreateExists)
	case model.Update:
		return w.require(d.Operation, d.Target.Path, true, model.ReasonUpdateMissing)
	case model.Delete:
		return w.require(d.Operation, d.Source.Path, true, model.ReasonDeleteMissing)
	case model.Rename:
		if err := w.require(d.Operation, d.Source.Path, true, model.ReasonRenameMissing); err != nil {
			return err
		}
		return w.require(d.Operation, d.Target.Path, false, model.ReasonRenameExists)
	default:
		return &model.MalformedDiffError{Reason: "unknown operation " + d.Operation.String()}
	}
}

// require fails with reason unless path's existence equals want. Symlinks
// anywhere on the path are refused.
func (w *Workspace) require(op model.Operation, path string, want bool, reason string) error {
	name, err := w.resolve(op, path)
	if err != nil {
		return err
	}
	info, err := w.lstat(name)
	if err != nil {
		return err
	}
	if info != nil && info.Mode()&os.ModeSymlink != 0 {
		return &model.PreconditionError{Operation: op, Path: path, Reason: model.ReasonSymlink}
	}
	if exists := info != nil; exists != want {
		return &model.PreconditionError{Operation: op, Path: path, Reason: reason}
	}
	return nil
}

func (w *Workspace) resolve(op model.Operation, path string) (string, error) {
	name := filepath.FromSlash(path)
	if !filepath.IsLocal(name) {
		return "", &model.PreconditionError{Operation: op, Path: path, Reason: model.ReasonPathEscapesRoot}
	}

	// BasePathFs only checks prefixes, so a linked parent directory could
	// still lead outside the root.
	parts := strings.Split(filepath.Dir(name), string(filepath.Separator))
	dir := ""
	for _, part := range parts {
		if part == "." {
			break
		}
		dir = filepath.Join(dir, part)
		info, err := w.lstat(dir)
		if err != nil {
			return "", err
		}
		if info == nil {
			break
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return "", &model.PreconditionError{Operation: op, Path: path, Reason: model.ReasonSymlink}
		}
	}
	return name, nil
}

// lstat returns nil info for a missing name. Links are not followed when
// the filesystem supports it.
func (w *Workspace) lstat(name string) (os.FileInfo, error) {
	var info os.FileInfo
	var err error
	if l, ok := w.fs.(afero.Lstater); ok {
		info, _, err = l.LstatIfPossible(name)
	} else {
		info, err = w.fs.Stat(name)
	}
	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, iofs.ErrNotExist):
		return nil, nil
	default:
		return nil, &model.IOError{Op: "stat", Path: w.display(name), Err: err}
	}
}

// ReadFile returns the current bytes of path.
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	name := filepath.FromSlash(path)
	data, err := afero.ReadFile(w.fs, name)
	if err != nil {
		return nil, &model.IOError{Op: "read", Path: w.display(name), Err: err}
	}
	return data, nil
}

// Commit performs d's mutation. data is the new content for create, update
// and rename and is ignored for delete.
func (w *Workspace) Commit(d model.DiffFile, data []byte) error {
	switch d.Operation {
	case model.Create:
		return w.write(filepath.FromSlash(d.Target.Path), data, filePerm)
	case model.Update:
		name := filepath.FromSlash(d.Target.Path)
		mode, err := w.mode(name)
		if err != nil {
			return err
		}
		return w.write(name, data, mode)
	case model.Delete:
		return w.remove(filepath.FromSlash(d.Source.Path))
	case model.Rename:
		src, dst := filepath.FromSlash(d.Source.Path), filepath.FromSlash(d.Target.Path)
		mode, err := w.mode(src)
		if err != nil {
			return err
		}
		if err := w.write(dst, data, mode); err != nil {
			return err
		}
		return w.remove(src)
	default:
		return &model.MalformedDiffError{Reason: "unknown operation " + d.Operation.String()}
	}
}

func (w *Workspace) mode(name string) (os.FileMode, error) {
	info, err := w.fs.Stat(name)
	if err != nil {
		return 0, &model.IOError{Op: "stat", Path: w.display(name), Err: err}
	}
	return info.Mode().Perm(), nil
}

// write creates missing parent directories before writing the file.
func (w *Workspace) write(name string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := w.fs.MkdirAll(dir, dirPerm); err != nil {
			return &model.IOError{Op: "mkdir", Path: w.display(dir), Err: err}
		}
	}
	if err := afero.WriteFile(w.fs, name, data, perm); err != nil {
		return &model.IOError{Op: "write", Path: w.display(name), Err: err}
	}
	return nil
}

func (w *Workspace) remove(name string) error {
	if err := w.fs.Remove(name); err != nil {
		return &model.IOError{Op: "remove", Path: w.display(name), Err: err}
	}
	return nil
}

func (w *Workspace) display(name string) string {
	return filepath.Join(w.root, name)
}
