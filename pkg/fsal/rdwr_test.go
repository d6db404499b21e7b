package fsal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
)

func TestRdWrWriteThenRead(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	payload := []byte("twelve bytes")
	sync := false
	n, _, err := fsal.RdWr(ctx, obj, fsal.IOWrite, 0, payload, &sync, nil)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	// RdWr opened the file itself, so it must have closed it again.
	assert.False(t, fsal.IsOpen(obj))
	assert.Zero(t, env.budget.InUse())
	assert.Equal(t, uint64(len(payload)), obj.Attributes().Size)

	buf := make([]byte, 64)
	n, eof, err := fsal.RdWr(ctx, obj, fsal.IORead, 0, buf, &sync, nil)
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Equal(t, payload, buf[:n])
}

func TestRdWrKeepsCallerOpenFile(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenRDWR))

	sync := false
	_, _, err = fsal.RdWr(ctx, obj, fsal.IOWrite, 0, []byte("data"), &sync, nil)
	require.NoError(t, err)

	// The file was already open; RdWr must leave it that way.
	assert.True(t, fsal.IsOpen(obj))
	require.NoError(t, fsal.Close(ctx, obj))
	assert.Zero(t, env.budget.InUse())
}

func TestRdWrStableWriteReported(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	sync := true
	_, _, err = fsal.RdWr(ctx, obj, fsal.IOWrite, 0, []byte("data"), &sync, nil)
	require.NoError(t, err)
	assert.True(t, sync)
}

func TestRdWrForceCommitPolicy(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{ForceCommit: true})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	// The export upgrades every write to a stable one.
	sync := false
	_, _, err = fsal.RdWr(ctx, obj, fsal.IOWrite, 0, []byte("data"), &sync, nil)
	require.NoError(t, err)
	assert.True(t, sync)
}

func TestRdWrRejectsNonFiles(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	sync := false
	_, _, err := fsal.RdWr(ctx, env.root, fsal.IORead, 0, make([]byte, 8), &sync, nil)
	assert.Equal(t, fsal.ErrIsDirectory, fsal.CodeOf(err))

	fifo, err := fsal.Create(ctx, env.root, "pipe", fsal.FIFO, 0o644, nil)
	require.NoError(t, err)
	defer fifo.Unref()

	_, _, err = fsal.RdWr(ctx, fifo, fsal.IORead, 0, make([]byte, 8), &sync, nil)
	assert.Equal(t, fsal.ErrBadType, fsal.CodeOf(err))
}

func TestRdWrReadPlusReportsData(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	sync := false
	_, _, err = fsal.RdWr(ctx, obj, fsal.IOWrite, 0, []byte("content"), &sync, nil)
	require.NoError(t, err)

	var info fsal.IOInfo
	n, _, err := fsal.RdWr(ctx, obj, fsal.IOReadPlus, 0, make([]byte, 64), &sync, &info)
	require.NoError(t, err)
	assert.Equal(t, fsal.IOData, info.Content)
	assert.Equal(t, uint64(n), info.Length)
}

// ============================================================================
// Open / Close / Commit
// ============================================================================

func TestOpenWidensAccessViaCloseAndReopen(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenRead))
	assert.Equal(t, int64(1), env.budget.InUse())

	// Write access needs different flags: close, reopen, budget stays
	// balanced.
	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenWrite))
	assert.Equal(t, int64(1), env.budget.InUse())
	assert.Equal(t, fsal.OpenWrite, obj.OpenStatus())

	require.NoError(t, fsal.Close(ctx, obj))
	assert.Zero(t, env.budget.InUse())
}

func TestOpenReopenMethod(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{ReopenMethod: true})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenRead))
	require.NoError(t, fsal.Open(ctx, obj, fsal.OpenWrite))

	assert.Equal(t, fsal.OpenWrite, obj.OpenStatus())
	assert.Equal(t, int64(1), env.budget.InUse())

	require.NoError(t, fsal.Close(ctx, obj))
	assert.Zero(t, env.budget.InUse())
}

func TestCloseOnClosedFileSucceeds(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	assert.NoError(t, fsal.Close(ctx, obj))
	assert.Zero(t, env.budget.InUse())
}

func TestCommitRangeOverflow(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	err = fsal.Commit(ctx, obj, ^uint64(0), 2)
	assert.Equal(t, fsal.ErrInvalid, fsal.CodeOf(err))
}

func TestCommitOpensTransiently(t *testing.T) {
	env := newTestEnv(t, fsal.ExportOptions{})
	ctx := env.rootCtx()

	obj, err := fsal.Create(ctx, env.root, "file", fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	defer obj.Unref()

	require.NoError(t, fsal.Commit(ctx, obj, 0, 0))
	assert.False(t, fsal.IsOpen(obj))
	assert.Zero(t, env.budget.InUse())
}
