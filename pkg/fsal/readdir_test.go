package fsal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
	"github.com/marmos91/mdfs/pkg/fsal/memfs"
)

type listedEntry struct {
	fileID uint64
	cookie uint64
	state  fsal.CBState
	key    []byte
}

// listAll drains dir through the helper, collecting every delivered entry.
func listAll(t *testing.T, ctx *fsal.OpContext, dir fsal.ObjectHandle, cookie uint64) ([]listedEntry, uint, bool) {
	t.Helper()

	var entries []listedEntry
	nfound, eod, err := fsal.Readdir(ctx, dir, cookie, fsal.AttrMode,
		func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
			entry := listedEntry{fileID: fileID, cookie: cookie, state: state}
			if obj != nil {
				entry.key = obj.Key()
			}
			entries = append(entries, entry)
			return true, nil
		})
	require.NoError(t, err)
	return entries, nfound, eod
}

func TestReaddirDeliversRefreshedAttrs(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	var created []fsal.ObjectHandle
	for _, name := range []string{"a", "b", "c"} {
		obj, err := fsal.Create(ctx, env.root, name, fsal.Regular, 0o644, nil)
		require.NoError(t, err)
		defer obj.Unref()
		created = append(created, obj)
	}

	entries, nfound, eod := listAll(t, ctx, env.root, 0)
	assert.Equal(t, uint(3), nfound)
	assert.True(t, eod)
	require.Len(t, entries, 3)

	for i, entry := range entries {
		assert.Equal(t, fsal.CBOriginal, entry.state)
		assert.Equal(t, created[i].Key(), entry.key)
		assert.Equal(t, created[i].Attributes().FileID, entry.fileID)
	}
}

func TestReaddirConsumedStopsEnumeration(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	for _, name := range []string{"a", "b", "c"} {
		obj, err := fsal.Create(ctx, env.root, name, fsal.Regular, 0o644, nil)
		require.NoError(t, err)
		obj.Unref()
	}

	var calls int
	nfound, eod, err := fsal.Readdir(ctx, env.root, 0, 0,
		func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
			calls++
			return false, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, nfound)
	assert.False(t, eod)
}

func TestReaddirRequiresListAccess(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "private", fsal.Directory, 0o700, nil)
	require.NoError(t, err)
	defer dir.Unref()

	user := env.ctx(fsal.Credentials{UID: 1000, GID: 1000})
	_, _, err = fsal.Readdir(user, dir, 0, 0,
		func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
			return true, nil
		})
	assert.Equal(t, fsal.ErrAccessDenied, fsal.CodeOf(err))
}

// ============================================================================
// Junction crossing
// ============================================================================

func TestReaddirCrossesJunction(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "mnt", fsal.Directory, 0o755, nil)
	require.NoError(t, err)
	defer dir.Unref()

	inner := memfs.NewExport(2, "/inner", fsal.ExportOptions{})
	dir.DirState().SetJunction(inner)

	innerRoot, err := inner.Root(ctx)
	require.NoError(t, err)
	defer innerRoot.Unref()

	var states []fsal.CBState
	var keys [][]byte
	nfound, _, err := fsal.Readdir(ctx, env.root, 0, 0,
		func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
			if state == fsal.CBOriginal && obj.Type() == fsal.Directory && obj.DirState().Junction() != nil {
				// Ask for the junction target instead of the raw entry.
				return false, fsal.Errorf(fsal.ErrCrossJunction, "junction")
			}
			states = append(states, state)
			keys = append(keys, obj.Key())
			return true, nil
		})
	require.NoError(t, err)

	assert.Equal(t, uint(1), nfound)
	require.Len(t, states, 1)
	assert.Equal(t, fsal.CBJunction, states[0])
	assert.Equal(t, innerRoot.Key(), keys[0])
}

func TestReaddirStaleJunction(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "mnt", fsal.Directory, 0o755, nil)
	require.NoError(t, err)
	defer dir.Unref()

	inner := memfs.NewExport(2, "/inner", fsal.ExportOptions{})
	dir.DirState().SetJunction(inner)
	inner.Unmount()

	var problems int
	_, _, err = fsal.Readdir(ctx, env.root, 0, 0,
		func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
			switch state {
			case fsal.CBProblem:
				problems++
				return true, nil
			case fsal.CBOriginal:
				return false, fsal.Errorf(fsal.ErrCrossJunction, "junction")
			}
			return true, nil
		})

	assert.Equal(t, fsal.ErrStale, fsal.CodeOf(err))
	assert.Equal(t, 1, problems)
}

// ============================================================================
// GetAttrsCB junction resolution
// ============================================================================

func TestGetAttrsCBResolvesJunction(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	dir, err := fsal.Create(ctx, env.root, "mnt", fsal.Directory, 0o755, nil)
	require.NoError(t, err)
	defer dir.Unref()

	inner := memfs.NewExport(2, "/inner", fsal.ExportOptions{})
	dir.DirState().SetJunction(inner)

	innerRoot, err := inner.Root(ctx)
	require.NoError(t, err)
	defer innerRoot.Unref()

	var delivered [][]byte
	err = fsal.GetAttrsCB(ctx, dir, func(obj fsal.ObjectHandle, attrs *fsal.Attributes, fileID, cookie uint64, state fsal.CBState) (bool, error) {
		if state == fsal.CBOriginal {
			return false, fsal.Errorf(fsal.ErrCrossJunction, "junction")
		}
		delivered = append(delivered, obj.Key())
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, innerRoot.Key(), delivered[0])
}
