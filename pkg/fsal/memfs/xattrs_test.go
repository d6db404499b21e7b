package memfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
)

func TestXattrSetGetRemove(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file")
	defer obj.Unref()

	require.NoError(t, obj.SetXattrByName(ctx, "user.comment", []byte("hello"), true))

	value, err := obj.GetXattrByName(ctx, "user.comment")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), value)

	id, err := obj.GetXattrIDByName(ctx, "user.comment")
	require.NoError(t, err)

	require.NoError(t, obj.SetXattrByID(ctx, id, []byte("updated")))
	value, err = obj.GetXattrByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), value)

	require.NoError(t, obj.RemoveXattrByName(ctx, "user.comment"))
	_, err = obj.GetXattrByName(ctx, "user.comment")
	assert.Equal(t, fsal.ErrNoData, fsal.CodeOf(err))
}

func TestXattrExclusiveCreate(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file")
	defer obj.Unref()

	require.NoError(t, obj.SetXattrByName(ctx, "user.a", []byte("1"), true))

	err := obj.SetXattrByName(ctx, "user.a", []byte("2"), true)
	assert.Equal(t, fsal.ErrExists, fsal.CodeOf(err))

	// Non-exclusive set replaces the value.
	require.NoError(t, obj.SetXattrByName(ctx, "user.a", []byte("2"), false))
	value, err := obj.GetXattrByName(ctx, "user.a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)
}

func TestXattrMissingOperands(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file")
	defer obj.Unref()

	_, err := obj.GetXattrIDByName(ctx, "user.absent")
	assert.Equal(t, fsal.ErrNoData, fsal.CodeOf(err))

	assert.Equal(t, fsal.ErrNoData, fsal.CodeOf(obj.SetXattrByID(ctx, 99, []byte("x"))))
	assert.Equal(t, fsal.ErrNoData, fsal.CodeOf(obj.RemoveXattrByID(ctx, 99)))
}

func TestXattrListResumesAcrossRemoval(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file")
	defer obj.Unref()

	for _, name := range []string{"user.a", "user.b", "user.c"} {
		require.NoError(t, obj.SetXattrByName(ctx, name, []byte(name), true))
	}

	entries, eol, err := obj.ListXattrs(ctx, 0, 2)
	require.NoError(t, err)
	assert.False(t, eol)
	require.Len(t, entries, 2)

	// Removing an already-listed attribute must not shift what remains.
	require.NoError(t, obj.RemoveXattrByName(ctx, entries[0].Name))

	rest, eol, err := obj.ListXattrs(ctx, entries[1].ID+1, 0)
	require.NoError(t, err)
	assert.True(t, eol)
	require.Len(t, rest, 1)
	assert.Equal(t, "user.c", rest[0].Name)
}
