package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/patches/model"
)

const root = "/work"

func newWorkspace(t *testing.T, files map[string]string) (*Workspace, afero.Fs) {
	t.Helper()
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll(root, 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(base, root+"/"+name, []byte(content), 0o644))
	}
	return NewWorkspace(base, root), base
}

func diffFile(op model.Operation, source, target model.FileRef) model.DiffFile {
	return model.DiffFile{Operation: op, Source: source, Target: target}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		diff   model.DiffFile
		reason string
	}{
		{
			name: "create on absent target",
			diff: diffFile(model.Create, model.NullFile, model.File("a.txt")),
		},
		{
			name:   "create over existing file",
			files:  map[string]string{"a.txt": "x\n"},
			diff:   diffFile(model.Create, model.NullFile, model.File("a.txt")),
			reason: model.ReasonCreateExists,
		},
		{
			name:  "update existing file",
			files: map[string]string{"a.txt": "x\n"},
			diff:  diffFile(model.Update, model.File("a.txt"), model.File("a.txt")),
		},
		{
			name:   "update missing file",
			diff:   diffFile(model.Update, model.File("a.txt"), model.File("a.txt")),
			reason: model.ReasonUpdateMissing,
		},
		{
			name:  "delete existing file",
			files: map[string]string{"a.txt": "x\n"},
			diff:  diffFile(model.Delete, model.File("a.txt"), model.NullFile),
		},
		{
			name:   "delete missing file",
			diff:   diffFile(model.Delete, model.File("a.txt"), model.NullFile),
			reason: model.ReasonDeleteMissing,
		},
		{
			name:  "rename",
			files: map[string]string{"a.txt": "x\n"},
			diff:  diffFile(model.Rename, model.File("a.txt"), model.File("b.txt")),
		},
		{
			name:   "rename missing source",
			diff:   diffFile(model.Rename, model.File("a.txt"), model.File("b.txt")),
			reason: model.ReasonRenameMissing,
		},
		{
			name:   "rename onto existing target",
			files:  map[string]string{"a.txt": "x\n", "b.txt": "y\n"},
			diff:   diffFile(model.Rename, model.File("a.txt"), model.File("b.txt")),
			reason: model.ReasonRenameExists,
		},
		{
			name:   "path escaping the root",
			diff:   diffFile(model.Create, model.NullFile, model.File("../outside.txt")),
			reason: model.ReasonPathEscapesRoot,
		},
		{
			name:   "absolute path",
			diff:   diffFile(model.Create, model.NullFile, model.File("/etc/passwd")),
			reason: model.ReasonPathEscapesRoot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, _ := newWorkspace(t, tt.files)
			err := ws.Validate(tt.diff)
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}

			var precondition *model.PreconditionError
			require.True(t, errors.As(err, &precondition), "got %T: %v", err, err)
			assert.Equal(t, tt.reason, precondition.Reason)
			assert.Equal(t, tt.diff.Operation, precondition.Operation)
			assert.Contains(t, err.Error(), precondition.Path)
		})
	}
}

func TestCommit_CreateMakesParentDirs(t *testing.T) {
	ws, base := newWorkspace(t, nil)

	d := diffFile(model.Create, model.NullFile, model.File("deep/dir/a.txt"))
	require.NoError(t, ws.Commit(d, []byte("hello\n")))

	data, err := afero.ReadFile(base, "/work/deep/dir/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestCommit_UpdateKeepsPermissions(t *testing.T) {
	ws, base := newWorkspace(t, nil)
	require.NoError(t, afero.WriteFile(base, "/work/run.sh", []byte("echo a\n"), 0o755))

	d := diffFile(model.Update, model.File("run.sh"), model.File("run.sh"))
	require.NoError(t, ws.Commit(d, []byte("echo b\n")))

	info, err := base.Stat("/work/run.sh")
	require.NoError(t, err)
	assert.Equal(t, "-rwxr-xr-x", info.Mode().Perm().String())

	data, err := ws.ReadFile("run.sh")
	require.NoError(t, err)
	assert.Equal(t, "echo b\n", string(data))
}

func TestCommit_Delete(t *testing.T) {
	ws, base := newWorkspace(t, map[string]string{"a.txt": "x\n"})

	require.NoError(t, ws.Commit(diffFile(model.Delete, model.File("a.txt"), model.NullFile), nil))

	exists, err := afero.Exists(base, "/work/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCommit_Rename(t *testing.T) {
	ws, base := newWorkspace(t, map[string]string{"a.txt": "x\n"})

	d := diffFile(model.Rename, model.File("a.txt"), model.File("sub/b.txt"))
	require.NoError(t, ws.Commit(d, []byte("y\n")))

	exists, err := afero.Exists(base, "/work/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := afero.ReadFile(base, "/work/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "y\n", string(data))
}

func TestReadFile_Missing(t *testing.T) {
	ws, _ := newWorkspace(t, nil)

	_, err := ws.ReadFile("nope.txt")
	var ioErr *model.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, model.KindIO, model.KindOf(err))
}

func TestWorkspace_ValidateThenCommitSequence(t *testing.T) {
	ws, _ := newWorkspace(t, nil)

	create := diffFile(model.Create, model.NullFile, model.File("a.txt"))
	require.NoError(t, ws.Validate(create))
	require.NoError(t, ws.Commit(create, []byte("a\n")))

	// The create above satisfies a later update's precondition.
	update := diffFile(model.Update, model.File("a.txt"), model.File("a.txt"))
	require.NoError(t, ws.Validate(update))

	// And blocks a second create.
	assert.Equal(t, model.KindPrecondition, model.KindOf(ws.Validate(create)))
}

func TestValidate_RefusesSymlinks(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	outside := filepath.Join(dir, "outside")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))

	// A dangling link inside the root and a linked directory, both pointing out.
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, "dangling.txt")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))

	ws := NewWorkspace(afero.NewOsFs(), root)

	for _, path := range []string{"dangling.txt", "linked/new.txt"} {
		t.Run(path, func(t *testing.T) {
			err := ws.Validate(diffFile(model.Create, model.NullFile, model.File(path)))

			var precondition *model.PreconditionError
			require.True(t, errors.As(err, &precondition), "got %T: %v", err, err)
			assert.Equal(t, model.ReasonSymlink, precondition.Reason)
		})
	}

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
