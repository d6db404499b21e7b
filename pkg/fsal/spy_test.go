package fsal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/mdfs/pkg/fsal"
	"github.com/marmos91/mdfs/pkg/fsal/memfs"
)

// callCounts tallies backend invocations a test wants to assert on.
type callCounts struct {
	renames  int
	setattrs int
	getattrs int
	unlinks  int
}

// spyHandle wraps a real backend handle, counting selected calls before
// forwarding. Children returned by Lookup are wrapped with the same
// counters, so a whole tree can be observed through one root spy.
type spyHandle struct {
	fsal.ObjectHandle
	counts *callCounts

	// noopSetattrs swallows setattr calls, simulating a backend that
	// accepts the change without recording it.
	noopSetattrs bool
}

func unwrapSpy(obj fsal.ObjectHandle) fsal.ObjectHandle {
	if sp, ok := obj.(*spyHandle); ok {
		return sp.ObjectHandle
	}
	return obj
}

func (s *spyHandle) wrap(child fsal.ObjectHandle) fsal.ObjectHandle {
	if child == nil {
		return nil
	}
	return &spyHandle{ObjectHandle: child, counts: s.counts, noopSetattrs: s.noopSetattrs}
}

func (s *spyHandle) Lookup(ctx *fsal.OpContext, name string) (fsal.ObjectHandle, error) {
	child, err := s.ObjectHandle.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.wrap(child), nil
}

func (s *spyHandle) Getattrs(ctx *fsal.OpContext) (*fsal.Attributes, error) {
	s.counts.getattrs++
	return s.ObjectHandle.Getattrs(ctx)
}

func (s *spyHandle) Setattrs(ctx *fsal.OpContext, attrs *fsal.Attributes) error {
	s.counts.setattrs++
	if s.noopSetattrs {
		return nil
	}
	return s.ObjectHandle.Setattrs(ctx, attrs)
}

func (s *spyHandle) Rename(ctx *fsal.OpContext, oldParent fsal.ObjectHandle, oldName string, newParent fsal.ObjectHandle, newName string) error {
	s.counts.renames++
	return s.ObjectHandle.Rename(ctx, unwrapSpy(oldParent), oldName, unwrapSpy(newParent), newName)
}

func (s *spyHandle) Unlink(ctx *fsal.OpContext, name string, obj fsal.ObjectHandle) error {
	s.counts.unlinks++
	return s.ObjectHandle.Unlink(ctx, name, unwrapSpy(obj))
}

// ============================================================================
// Shared test environment
// ============================================================================

type testEnv struct {
	export *memfs.Export
	budget *fsal.FDBudget
	root   fsal.ObjectHandle
}

func newTestEnv(t *testing.T, options fsal.ExportOptions) *testEnv {
	t.Helper()

	export := memfs.NewExport(1, "/export", options)
	budget := fsal.NewFDBudget(0)

	root, err := export.Root(fsal.NewOpContext(context.Background(),
		fsal.Credentials{UID: 0}, export, budget))
	require.NoError(t, err)
	t.Cleanup(root.Unref)

	return &testEnv{export: export, budget: budget, root: root}
}

func (e *testEnv) ctx(creds fsal.Credentials) *fsal.OpContext {
	return fsal.NewOpContext(context.Background(), creds, e.export, e.budget)
}

func (e *testEnv) rootCtx() *fsal.OpContext {
	return e.ctx(fsal.Credentials{UID: 0, GID: 0})
}

// makeFile creates a regular file and hands it the given ownership and
// mode, using root credentials for the fixup.
func (e *testEnv) makeFile(t *testing.T, name string, mode, owner, group uint32) fsal.ObjectHandle {
	t.Helper()

	ctx := e.rootCtx()
	obj, err := fsal.Create(ctx, e.root, name, fsal.Regular, 0o644, nil)
	require.NoError(t, err)
	t.Cleanup(obj.Unref)

	attrs := &fsal.Attributes{
		Mask:  fsal.AttrMode | fsal.AttrOwner | fsal.AttrGroup,
		Mode:  mode,
		Owner: owner,
		Group: group,
	}
	require.NoError(t, fsal.SetAttrs(ctx, obj, attrs))
	return obj
}
