package memfs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
)

// ============================================================================
// Test helpers
// ============================================================================

func newTestExport(t *testing.T) *Export {
	t.Helper()
	return NewExport(1, "/export", fsal.ExportOptions{CanSetTime: true})
}

func rootCtx(export *Export) *fsal.OpContext {
	return fsal.NewOpContext(context.Background(),
		fsal.Credentials{UID: 0, GID: 0}, export, nil)
}

func mustCreateFile(t *testing.T, ctx *fsal.OpContext, dir fsal.ObjectHandle, name string) fsal.ObjectHandle {
	t.Helper()
	obj, err := dir.Create(ctx, name, &fsal.Attributes{
		Mask:  fsal.AttrMode | fsal.AttrOwner | fsal.AttrGroup,
		Mode:  0o644,
		Owner: 0,
		Group: 0,
	})
	require.NoError(t, err)
	return obj
}

// ============================================================================
// Handle key tests
// ============================================================================

func TestKeyRoundTrip(t *testing.T) {
	id := uuid.New()
	key := encodeKey(42, id)

	exportID, objectID, err := decodeKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), exportID)
	assert.Equal(t, id, objectID)
}

func TestKeyStableAcrossCalls(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file.txt")
	defer obj.Unref()

	assert.Equal(t, obj.Key(), obj.Key())
	assert.NotEmpty(t, obj.Key())
}

func TestMalformedKeyRejected(t *testing.T) {
	_, _, err := decodeKey([]byte{0x01, 0x02})
	assert.Equal(t, fsal.ErrBadHandle, fsal.CodeOf(err))
}

// ============================================================================
// Reference counting tests
// ============================================================================

func TestUnlinkDefersRemovalUntilLastUnref(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file.txt")

	require.NoError(t, export.root.Unlink(ctx, "file.txt", obj))

	// The caller still holds a reference: the handle answers, but as a
	// removed object.
	_, err := obj.Getattrs(ctx)
	assert.Equal(t, fsal.ErrStale, fsal.CodeOf(err))

	// Name is gone from the namespace immediately.
	_, err = export.root.Lookup(ctx, "file.txt")
	assert.Equal(t, fsal.ErrNotFound, fsal.CodeOf(err))

	before := export.objects.Load()
	obj.Unref()
	assert.Equal(t, before-1, export.objects.Load())
}

func TestHardLinkKeepsObjectAlive(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "first")
	defer obj.Unref()

	h := obj.(*Handle)
	require.NoError(t, obj.Link(ctx, export.root, "second"))
	assert.Equal(t, uint32(2), h.attrs.NumLinks)

	require.NoError(t, export.root.Unlink(ctx, "first", obj))

	// One link remains; the object is not removed.
	assert.Equal(t, uint32(1), h.attrs.NumLinks)
	_, err := obj.Getattrs(ctx)
	assert.NoError(t, err)

	other, err := export.root.Lookup(ctx, "second")
	require.NoError(t, err)
	defer other.Unref()
	assert.Equal(t, obj.Key(), other.Key())
}

// ============================================================================
// Namespace tests
// ============================================================================

func TestRmdirRefusesNonEmpty(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	dir, err := export.root.Mkdir(ctx, "dir", &fsal.Attributes{
		Mask: fsal.AttrMode, Mode: 0o755,
	})
	require.NoError(t, err)
	defer dir.Unref()

	inner := mustCreateFile(t, ctx, dir, "inner")
	defer inner.Unref()

	err = export.root.Unlink(ctx, "dir", dir)
	assert.Equal(t, fsal.ErrNotEmpty, fsal.CodeOf(err))
}

func TestRenameDisplacesExistingFile(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	src := mustCreateFile(t, ctx, export.root, "src")
	defer src.Unref()
	dest := mustCreateFile(t, ctx, export.root, "dest")
	defer dest.Unref()

	require.NoError(t, src.Rename(ctx, export.root, "src", export.root, "dest"))

	// The displaced object lost its only link.
	_, err := dest.Getattrs(ctx)
	assert.Equal(t, fsal.ErrStale, fsal.CodeOf(err))

	got, err := export.root.Lookup(ctx, "dest")
	require.NoError(t, err)
	defer got.Unref()
	assert.Equal(t, src.Key(), got.Key())

	_, err = export.root.Lookup(ctx, "src")
	assert.Equal(t, fsal.ErrNotFound, fsal.CodeOf(err))
}

func TestRenameRefusesReplacingNonEmptyDir(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	src := mustCreateFile(t, ctx, export.root, "src")
	defer src.Unref()

	dir, err := export.root.Mkdir(ctx, "dir", &fsal.Attributes{
		Mask: fsal.AttrMode, Mode: 0o755,
	})
	require.NoError(t, err)
	defer dir.Unref()
	inner := mustCreateFile(t, ctx, dir, "inner")
	defer inner.Unref()

	err = src.Rename(ctx, export.root, "src", export.root, "dir")
	assert.Equal(t, fsal.ErrNotEmpty, fsal.CodeOf(err))
}

func TestReaddirCookieResume(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	for _, name := range []string{"a", "b", "c", "d"} {
		obj := mustCreateFile(t, ctx, export.root, name)
		obj.Unref()
	}

	// Read the first two entries, then resume with the returned cookie.
	var names []string
	var resume uint64
	eod, err := export.root.Readdir(ctx, 0, func(name string, cookie uint64) bool {
		names = append(names, name)
		resume = cookie
		return len(names) < 2
	})
	require.NoError(t, err)
	assert.False(t, eod)
	assert.Equal(t, []string{"a", "b"}, names)

	names = names[:0]
	eod, err = export.root.Readdir(ctx, resume, func(name string, cookie uint64) bool {
		names = append(names, name)
		return true
	})
	require.NoError(t, err)
	assert.True(t, eod)
	assert.Equal(t, []string{"c", "d"}, names)
}

// ============================================================================
// Export tests
// ============================================================================

func TestLookupPathWalksComponents(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	dir, err := export.root.Mkdir(ctx, "sub", &fsal.Attributes{
		Mask: fsal.AttrMode, Mode: 0o755,
	})
	require.NoError(t, err)
	defer dir.Unref()

	obj := mustCreateFile(t, ctx, dir, "file.txt")
	defer obj.Unref()

	got, err := export.LookupPath(ctx, "/export/sub/file.txt")
	require.NoError(t, err)
	defer got.Unref()
	assert.Equal(t, obj.Key(), got.Key())

	_, err = export.LookupPath(ctx, "/elsewhere/file.txt")
	assert.Equal(t, fsal.ErrNotFound, fsal.CodeOf(err))
}

func TestUnmountedExportRefusesRoot(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	export.Unmount()

	_, err := export.Root(ctx)
	assert.Equal(t, fsal.ErrStale, fsal.CodeOf(err))
	assert.False(t, export.Ready())
}

func TestDynamicInfoTracksUsage(t *testing.T) {
	export := newTestExport(t)
	ctx := rootCtx(export)

	obj := mustCreateFile(t, ctx, export.root, "file.txt")
	defer obj.Unref()

	require.NoError(t, obj.Open(ctx, fsal.OpenWrite))
	_, _, err := obj.Write(ctx, 0, make([]byte, 1000), false)
	require.NoError(t, err)
	require.NoError(t, obj.Close(ctx))

	info, err := export.DynamicInfo(ctx, export.root)
	require.NoError(t, err)
	assert.Equal(t, uint64(reportedTotalBytes-1000), info.FreeBytes)
	assert.Less(t, info.FreeFiles, info.TotalFiles)
}
