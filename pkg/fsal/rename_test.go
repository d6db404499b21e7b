package fsal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
)

func TestRenameSameObjectIsNoop(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "first", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()
	require.NoError(t, fsal.Link(ctx, obj, env.root, "second"))

	counts := &callCounts{}
	root := &spyHandle{ObjectHandle: env.root, counts: counts}

	// Both names are links to the same object: success, and the backend
	// rename must never be invoked.
	require.NoError(t, fsal.Rename(ctx, root, "first", root, "second"))
	assert.Zero(t, counts.renames)

	for _, name := range []string{"first", "second"} {
		got, err := fsal.Lookup(ctx, env.root, name)
		require.NoError(t, err, "name %s must survive the no-op", name)
		got.Unref()
	}
}

func TestRenameRejectsDotNames(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	for _, names := range [][2]string{
		{".", "x"}, {"..", "x"}, {"x", "."}, {"x", ".."},
	} {
		err := fsal.Rename(ctx, env.root, names[0], env.root, names[1])
		assert.Equal(t, fsal.ErrInvalid, fsal.CodeOf(err))
	}
}

func TestRenameRefusesAnchoredDirectory(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "mnt", fsal.Directory, 0o755, nil)
	require.NoError(t, err)
	defer dir.Unref()

	dir.DirState().RefExportRoot()
	defer dir.DirState().UnrefExportRoot()

	err = fsal.Rename(ctx, env.root, "mnt", env.root, "elsewhere")
	assert.Equal(t, fsal.ErrNotEmpty, fsal.CodeOf(err))
}

func TestRenameMissingSource(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})

	err := fsal.Rename(env.rootCtx(), env.root, "ghost", env.root, "other")
	assert.Equal(t, fsal.ErrNotFound, fsal.CodeOf(err))
}

func TestRenameOverExistingFile(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	src, err := fsal.Create(ctx, env.root, "src", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer src.Unref()
	dest, err := fsal.Create(ctx, env.root, "dest", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer dest.Unref()

	require.NoError(t, fsal.Rename(ctx, env.root, "src", env.root, "dest"))

	got, err := fsal.Lookup(ctx, env.root, "dest")
	require.NoError(t, err)
	defer got.Unref()
	assert.Equal(t, src.Key(), got.Key())
}

// ============================================================================
// Remove
// ============================================================================

func TestRemove(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "doomed", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Remove(ctx, env.root, "doomed"))

	_, err = fsal.Lookup(ctx, env.root, "doomed")
	assert.Equal(t, fsal.ErrNotFound, fsal.CodeOf(err))
}

func TestRemoveClosesOpenFile(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "busy", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenWrite))
	require.True(t, fsal.IsOpen(obj))

	require.NoError(t, fsal.Remove(ctx, env.root, "busy"))

	assert.False(t, fsal.IsOpen(obj))
	assert.Zero(t, env.budget.InUse())
}

func TestRemoveRefusesAnchoredDirectory(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "mnt", fsal.Directory, 0o755, nil)
	require.NoError(t, err)
	defer dir.Unref()

	dir.DirState().RefExportRoot()
	defer dir.DirState().UnrefExportRoot()

	err = fsal.Remove(ctx, env.root, "mnt")
	assert.Equal(t, fsal.ErrNotEmpty, fsal.CodeOf(err))
}
