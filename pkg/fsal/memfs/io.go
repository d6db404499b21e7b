package memfs

import (
	"time"

	"github.com/marmos91/mdfs/pkg/fsal"
)

// lockRange is one held byte-range lock. Owners are distinguished by the
// credentials that took the lock.
type lockRange struct {
	lockType fsal.LockType
	offset   uint64
	length   uint64
	owner    uint32
}

func (l *lockRange) overlaps(offset, length uint64) bool {
	if l.length != 0 && l.offset+l.length <= offset {
		return false
	}
	if length != 0 && offset+length <= l.offset {
		return false
	}
	return true
}

// checkOpenable rejects data operations on object types that have no data
// channel. Sockets and devices exist in the namespace only.
func (h *Handle) checkOpenable() error {
	if err := h.checkLive(); err != nil {
		return err
	}
	switch h.attrs.Type {
	case fsal.Regular:
		return nil
	case fsal.Socket, fsal.Block, fsal.Char:
		return fsal.Errorf(fsal.ErrBadType, "%s objects cannot be opened", h.attrs.Type)
	default:
		return fsal.Errorf(fsal.ErrBadType, "open of %s", h.attrs.Type)
	}
}

// ==================== Data operations ====================

func (h *Handle) Open(ctx *fsal.OpContext, flags fsal.OpenFlags) error {
	if err := h.checkOpenable(); err != nil {
		return err
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if h.file.openFlags != fsal.OpenClosed {
		return fsal.Errorf(fsal.ErrExists, "already open")
	}

	h.file.openFlags = flags
	if flags&fsal.OpenRead != 0 {
		h.file.shareReaders++
	}
	if flags&fsal.OpenWrite != 0 {
		h.file.shareWriters++
	}
	return nil
}

// Reopen atomically widens or narrows the open mode without a close/open
// window another client could squeeze a conflicting share through.
func (h *Handle) Reopen(ctx *fsal.OpContext, flags fsal.OpenFlags) error {
	if err := h.checkOpenable(); err != nil {
		return err
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if h.file.openFlags == fsal.OpenClosed {
		return fsal.Errorf(fsal.ErrNotOpened, "reopen of a closed file")
	}

	h.applyShareLocked(-1)
	h.file.openFlags = flags
	h.applyShareLocked(+1)
	return nil
}

// applyShareLocked adjusts the share counters for the current open mode.
func (h *Handle) applyShareLocked(delta int) {
	if h.file.openFlags&fsal.OpenRead != 0 {
		h.file.shareReaders += delta
	}
	if h.file.openFlags&fsal.OpenWrite != 0 {
		h.file.shareWriters += delta
	}
}

func (h *Handle) OpenStatus() fsal.OpenFlags {
	if h.file == nil {
		return fsal.OpenClosed
	}
	h.file.mu.Lock()
	defer h.file.mu.Unlock()
	return h.file.openFlags
}

func (h *Handle) Close(ctx *fsal.OpContext) error {
	if h.file == nil {
		return fsal.Errorf(fsal.ErrBadType, "close of %s", h.attrs.Type)
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if h.file.openFlags == fsal.OpenClosed {
		return fsal.Errorf(fsal.ErrNotOpened, "file is not open")
	}

	h.applyShareLocked(-1)
	h.file.openFlags = fsal.OpenClosed
	h.file.locks = nil
	return nil
}

func (h *Handle) checkIO(need fsal.OpenFlags) error {
	if h.file == nil {
		return fsal.Errorf(fsal.ErrBadType, "I/O on %s", h.attrs.Type)
	}
	if err := h.checkLive(); err != nil {
		return err
	}
	if h.file.openFlags&need == 0 {
		return fsal.Errorf(fsal.ErrNotOpened, "file not open for %v", need)
	}
	return nil
}

func (h *Handle) Read(ctx *fsal.OpContext, offset uint64, buf []byte) (int, bool, error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if err := h.checkIO(fsal.OpenRead); err != nil {
		return 0, false, err
	}

	size := uint64(len(h.file.data))
	if offset >= size {
		return 0, true, nil
	}

	n := copy(buf, h.file.data[offset:])
	eof := offset+uint64(n) >= size
	h.attrs.Atime = time.Now()
	return n, eof, nil
}

func (h *Handle) ReadPlus(ctx *fsal.OpContext, offset uint64, buf []byte, info *fsal.IOInfo) (int, bool, error) {
	n, eof, err := h.Read(ctx, offset, buf)
	if err != nil {
		return 0, false, err
	}
	if info != nil {
		info.Content = fsal.IOData
		info.Offset = offset
		info.Length = uint64(n)
	}
	return n, eof, nil
}

// Write extends the file as needed. Memory writes are always durable, so
// stableDone is true regardless of what the caller asked for.
func (h *Handle) Write(ctx *fsal.OpContext, offset uint64, data []byte, stable bool) (int, bool, error) {
	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	if err := h.checkIO(fsal.OpenWrite); err != nil {
		return 0, false, err
	}

	end := offset + uint64(len(data))
	if end > uint64(len(h.file.data)) {
		h.file.data = resize(h.file.data, end)
		h.attrs.Size = end
		h.attrs.SpaceUsed = end
	}
	n := copy(h.file.data[offset:], data)

	h.attrs.Mtime = time.Now()
	h.bumpChange()
	return n, true, nil
}

func (h *Handle) WritePlus(ctx *fsal.OpContext, offset uint64, data []byte, stable bool, info *fsal.IOInfo) (int, bool, error) {
	n, stableDone, err := h.Write(ctx, offset, data, stable)
	if err != nil {
		return 0, false, err
	}
	if info != nil {
		info.Content = fsal.IOData
		info.Offset = offset
		info.Length = uint64(n)
	}
	return n, stableDone, nil
}

// Commit is trivially satisfied, since nothing is ever unstable here.
func (h *Handle) Commit(ctx *fsal.OpContext, offset, length uint64) error {
	if h.file == nil {
		return fsal.Errorf(fsal.ErrBadType, "commit on %s", h.attrs.Type)
	}
	return h.checkLive()
}

// Lock takes, tests or releases a byte-range lock. On conflict the
// conflicting range is returned alongside the error.
func (h *Handle) Lock(ctx *fsal.OpContext, req *fsal.LockRequest) (*fsal.LockRequest, error) {
	if h.file == nil {
		return nil, fsal.Errorf(fsal.ErrBadType, "lock on %s", h.attrs.Type)
	}
	if err := h.checkLive(); err != nil {
		return nil, err
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	owner := ctx.Creds.UID

	if req.Type == fsal.LockUnlock {
		kept := h.file.locks[:0]
		for _, l := range h.file.locks {
			if l.owner == owner && l.overlaps(req.Offset, req.Length) {
				continue
			}
			kept = append(kept, l)
		}
		h.file.locks = kept
		return nil, nil
	}

	for _, l := range h.file.locks {
		if l.owner == owner || !l.overlaps(req.Offset, req.Length) {
			continue
		}
		if l.lockType == fsal.LockWrite || req.Type == fsal.LockWrite {
			conflict := &fsal.LockRequest{Type: l.lockType, Offset: l.offset, Length: l.length}
			return conflict, fsal.Errorf(fsal.ErrShareDenied, "conflicting lock held")
		}
	}

	h.file.locks = append(h.file.locks, lockRange{
		lockType: req.Type,
		offset:   req.Offset,
		length:   req.Length,
		owner:    owner,
	})
	return nil, nil
}
