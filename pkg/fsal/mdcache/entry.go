package mdcache

import (
	"sync/atomic"
	"time"

	"github.com/marmos91/mdfs/pkg/fsal"
)

// Entry is one cache entry wrapping exactly one backend handle. It
// implements fsal.ObjectHandle, so callers and the helper layer cannot
// tell a cached handle from a bare backend handle.
//
// State machine: ACTIVE until the backend reports staleness on any
// forwarded call, then KILLED, terminal. Killing is idempotent; a killed
// entry fails every operation with a stale error without contacting the
// backend again, except Close, which always forwards so an already-open
// descriptor can be returned.
//
// The entry owns one reference on its sub-handle for its whole life and
// shares the generic reference-counting contract: the last Unref finalizes
// the entry, dropping the sub-handle reference and evicting the entry from
// the cache map.
type Entry struct {
	cache *Cache
	sub   fsal.ObjectHandle
	key   []byte

	attrs  *fsal.Attributes
	refs   atomic.Int64
	killed atomic.Bool
}

// compile-time contract check
var _ fsal.ObjectHandle = (*Entry)(nil)

func newEntry(cache *Cache, sub fsal.ObjectHandle) *Entry {
	key := make([]byte, len(sub.Key()))
	copy(key, sub.Key())

	e := &Entry{
		cache: cache,
		sub:   sub,
		key:   key,
		attrs: sub.Attributes().Clone(),
	}
	e.refs.Store(1)
	return e
}

// errKilled is the status every operation on a killed entry returns.
func errKilled() error {
	return fsal.Errorf(fsal.ErrStale, "cache entry is killed")
}

// observe inspects a forwarded call's status and kills the entry on
// backend staleness. Delay is transient, never staleness, so it does not
// kill.
func (e *Entry) observe(err error) {
	if fsal.IsStale(err) {
		e.cache.kill(e)
	}
}

// subOf unwraps a peer handle argument so backends always see their own
// handle type, never a cache entry.
func subOf(h fsal.ObjectHandle) fsal.ObjectHandle {
	if entry, ok := h.(*Entry); ok {
		return entry.sub
	}
	return h
}

// wrapChild wraps a freshly returned backend child handle, deduplicating
// through the cache map.
func (e *Entry) wrapChild(child fsal.ObjectHandle, err error) (fsal.ObjectHandle, error) {
	e.observe(err)
	if err != nil {
		if child != nil {
			// An object can accompany an error only on the create
			// exists-race path; it must still come back wrapped.
			return e.cache.Wrap(child), err
		}
		return nil, err
	}
	return e.cache.Wrap(child), nil
}

// ==================== Generic handle surface ====================

func (e *Entry) Type() fsal.FileType {
	return e.sub.Type()
}

func (e *Entry) Key() []byte {
	return e.key
}

func (e *Entry) Export() fsal.Export {
	return e.sub.Export()
}

// Attributes returns the entry's cached snapshot. It is refreshed from the
// backend by Getattrs and updated locally where the cache can do so without
// a backend round trip.
func (e *Entry) Attributes() *fsal.Attributes {
	return e.attrs
}

func (e *Entry) DirState() *fsal.DirState {
	return e.sub.DirState()
}

func (e *Entry) Ref() {
	e.refs.Add(1)
}

// Unref drops one reference. The last drop finalizes the entry exactly
// once: the entry leaves the cache map and the sub-handle reference is
// released.
func (e *Entry) Unref() {
	if e.refs.Add(-1) == 0 {
		e.cache.evict(e)
		e.sub.Unref()
	}
}

// ==================== Namespace operations ====================

func (e *Entry) Lookup(ctx *fsal.OpContext, name string) (fsal.ObjectHandle, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.wrapChild(e.sub.Lookup(ctx, name))
}

func (e *Entry) Create(ctx *fsal.OpContext, name string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.wrapChild(e.sub.Create(ctx, name, attrs))
}

func (e *Entry) Mkdir(ctx *fsal.OpContext, name string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.wrapChild(e.sub.Mkdir(ctx, name, attrs))
}

func (e *Entry) Symlink(ctx *fsal.OpContext, name, target string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.wrapChild(e.sub.Symlink(ctx, name, target, attrs))
}

func (e *Entry) Mknode(ctx *fsal.OpContext, name string, nodeType fsal.FileType, dev fsal.RawDev, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.wrapChild(e.sub.Mknode(ctx, name, nodeType, dev, attrs))
}

func (e *Entry) Readlink(ctx *fsal.OpContext) (string, error) {
	if e.killed.Load() {
		return "", errKilled()
	}
	target, err := e.sub.Readlink(ctx)
	e.observe(err)
	return target, err
}

func (e *Entry) Getattrs(ctx *fsal.OpContext) (*fsal.Attributes, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}

	attrs, err := e.sub.Getattrs(ctx)
	e.observe(err)
	if err != nil {
		return nil, err
	}

	e.attrs = attrs.Clone()
	return e.attrs, nil
}

func (e *Entry) Setattrs(ctx *fsal.OpContext, attrs *fsal.Attributes) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Setattrs(ctx, attrs)
	e.observe(err)
	return err
}

func (e *Entry) Link(ctx *fsal.OpContext, destDir fsal.ObjectHandle, name string) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Link(ctx, subOf(destDir), name)
	e.observe(err)
	return err
}

func (e *Entry) Unlink(ctx *fsal.OpContext, name string, obj fsal.ObjectHandle) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Unlink(ctx, name, subOf(obj))
	e.observe(err)
	return err
}

func (e *Entry) Rename(ctx *fsal.OpContext, oldParent fsal.ObjectHandle, oldName string, newParent fsal.ObjectHandle, newName string) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Rename(ctx, subOf(oldParent), oldName, subOf(newParent), newName)
	e.observe(err)
	return err
}

func (e *Entry) Readdir(ctx *fsal.OpContext, whence uint64, cb func(name string, cookie uint64) bool) (bool, error) {
	if e.killed.Load() {
		return false, errKilled()
	}
	eod, err := e.sub.Readdir(ctx, whence, cb)
	e.observe(err)
	return eod, err
}

func (e *Entry) TestAccess(ctx *fsal.OpContext, mask fsal.AccessMask) error {
	if e.killed.Load() {
		return errKilled()
	}
	return e.sub.TestAccess(ctx, mask)
}

// ==================== Data operations ====================

// Open consults the FD budget before contacting the backend: an exhausted
// budget surfaces as a retryable delay so the client tries again after the
// next close, instead of queueing here.
func (e *Entry) Open(ctx *fsal.OpContext, flags fsal.OpenFlags) error {
	if e.killed.Load() {
		return errKilled()
	}

	if !e.cache.budget.Available() {
		e.cache.metrics.RecordDelay()
		return fsal.Errorf(fsal.ErrDelay, "open file descriptor budget exhausted")
	}

	err := e.sub.Open(ctx, flags)
	e.observe(err)
	return err
}

func (e *Entry) Reopen(ctx *fsal.OpContext, flags fsal.OpenFlags) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Reopen(ctx, flags)
	e.observe(err)
	return err
}

// OpenStatus is delegated, since open state is not cached metadata.
func (e *Entry) OpenStatus() fsal.OpenFlags {
	return e.sub.OpenStatus()
}

// Close forwards even on a killed entry. An object can go stale while its
// file is still open, and the caller's descriptor accounting needs the real
// close to happen or the slot stays occupied forever.
func (e *Entry) Close(ctx *fsal.OpContext) error {
	err := e.sub.Close(ctx)
	e.observe(err)
	return err
}

// setAtimeNow updates the cached access time without a backend call.
func (e *Entry) setAtimeNow() {
	e.attrs.Atime = time.Now()
	e.attrs.Mask |= fsal.AttrAtime
}

func (e *Entry) Read(ctx *fsal.OpContext, offset uint64, buf []byte) (int, bool, error) {
	if e.killed.Load() {
		return 0, false, errKilled()
	}

	n, eof, err := e.sub.Read(ctx, offset, buf)
	if err == nil {
		e.setAtimeNow()
	} else {
		e.observe(err)
	}
	return n, eof, err
}

func (e *Entry) ReadPlus(ctx *fsal.OpContext, offset uint64, buf []byte, info *fsal.IOInfo) (int, bool, error) {
	if e.killed.Load() {
		return 0, false, errKilled()
	}

	n, eof, err := e.sub.ReadPlus(ctx, offset, buf, info)
	if err == nil {
		e.setAtimeNow()
	} else {
		e.observe(err)
	}
	return n, eof, err
}

func (e *Entry) Write(ctx *fsal.OpContext, offset uint64, data []byte, stable bool) (int, bool, error) {
	if e.killed.Load() {
		return 0, false, errKilled()
	}

	n, stableDone, err := e.sub.Write(ctx, offset, data, stable)
	e.observe(err)
	return n, stableDone, err
}

func (e *Entry) WritePlus(ctx *fsal.OpContext, offset uint64, data []byte, stable bool, info *fsal.IOInfo) (int, bool, error) {
	if e.killed.Load() {
		return 0, false, errKilled()
	}

	n, stableDone, err := e.sub.WritePlus(ctx, offset, data, stable, info)
	e.observe(err)
	return n, stableDone, err
}

func (e *Entry) Commit(ctx *fsal.OpContext, offset, length uint64) error {
	if e.killed.Load() {
		return errKilled()
	}
	err := e.sub.Commit(ctx, offset, length)
	e.observe(err)
	return err
}

func (e *Entry) Lock(ctx *fsal.OpContext, req *fsal.LockRequest) (*fsal.LockRequest, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.sub.Lock(ctx, req)
}
