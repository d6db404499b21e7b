package fsal

import (
	"github.com/marmos91/mdfs/internal/logger"
)

// IODirection selects the operation RdWr dispatches.
type IODirection int

const (
	IORead IODirection = iota
	IOReadPlus
	IOWrite
	IOWritePlus
)

// maxOpenAttempts bounds the open-satisfaction loop in RdWr. Another caller
// can keep flipping the handle's open mode between our check and our I/O;
// rather than spinning until the flags settle, the loop gives up after this
// many rounds and reports a retryable delay.
const maxOpenAttempts = 8

// satisfies reports whether the current open flags allow I/O needing the
// requested flags.
func satisfies(current, required OpenFlags) bool {
	rw := current & OpenRDWR
	return rw == OpenRDWR || rw == required&OpenRDWR
}

// RdWr reads from or writes to obj, opening it as needed.
//
// The required open flags follow from the direction and, for writes, the
// export policy: an export mandating commit-on-write turns every write into
// a stable one. sync carries the stable-write request in and the achieved
// stability out; a write requested stable that came back unstable is
// followed by an explicit commit. If this call opened the handle it closes
// it again afterwards, and any I/O failure other than not-opened closes a
// now-suspect descriptor rather than leaking it.
func RdWr(ctx *OpContext, obj ObjectHandle, direction IODirection, offset uint64, buf []byte, sync *bool, info *IOInfo) (n int, eof bool, err error) {
	var openflags OpenFlags

	if direction == IORead || direction == IOReadPlus {
		openflags = OpenRead
	} else {
		// Pretend the caller requested a stable write if the export
		// has the commit option. OpenSync is not always honored, so
		// setting it alone is no guarantee of stability.
		if ctx.Options.ForceCommit {
			*sync = true
		}
		openflags = OpenWrite
		if *sync {
			openflags |= OpenSync
		}
	}

	if obj.Type() != Regular {
		if obj.Type() == Directory {
			return 0, false, Errorf(ErrIsDirectory, "I/O on a directory")
		}
		return 0, false, Errorf(ErrBadType, "I/O on %s", obj.Type())
	}

	// Converge the open state on the required flags. Bounded: see
	// maxOpenAttempts.
	opened := false
	loflags := obj.OpenStatus()
	for attempts := 0; !IsOpen(obj) || !satisfies(loflags, openflags); attempts++ {
		if attempts >= maxOpenAttempts {
			return 0, false, Errorf(ErrDelay,
				"open flags did not settle after %d attempts", maxOpenAttempts)
		}
		if err := Open(ctx, obj, openflags); err != nil {
			return 0, false, err
		}
		opened = true
		loflags = obj.OpenStatus()
	}

	switch direction {
	case IORead:
		n, eof, err = obj.Read(ctx, offset, buf)
	case IOReadPlus:
		n, eof, err = obj.ReadPlus(ctx, offset, buf, info)
	case IOWrite, IOWritePlus:
		var stableDone bool
		if direction == IOWrite {
			n, stableDone, err = obj.Write(ctx, offset, buf, *sync)
		} else {
			n, stableDone, err = obj.WritePlus(ctx, offset, buf, *sync, info)
		}

		// The unstable write is complete; if it was supposed to be
		// stable, sync it now.
		if err == nil && *sync && !stableDone && loflags&OpenSync == 0 {
			err = obj.Commit(ctx, offset, uint64(len(buf)))
		} else {
			*sync = stableDone
		}
	}

	logger.Debug("rdwr: I/O returned err=%v, asked=%d, effective=%d",
		err, len(buf), n)

	if err != nil {
		if IsCode(err, ErrDelay) {
			logger.Warn("rdwr: backend asked for a delay")
		}

		n = 0

		if IsStale(err) {
			return n, eof, err
		}

		if !IsCode(err, ErrNotOpened) && obj.OpenStatus() != OpenClosed {
			// The descriptor is suspect after a failed I/O; drop it.
			logger.Debug("rdwr: closing file after I/O error")
			if cerr := Close(ctx, obj); cerr != nil {
				logger.Error("Error closing file after failed I/O: %v", cerr)
			}
		}

		return n, eof, err
	}

	if opened {
		if cerr := Close(ctx, obj); cerr != nil {
			logger.Warn("rdwr: close failed: %v", cerr)
			return n, eof, cerr
		}
	}

	if direction == IOWrite || direction == IOWritePlus {
		if rerr := RefreshAttrs(ctx, obj); rerr != nil {
			return n, eof, rerr
		}
	}

	return n, eof, nil
}

// Open opens obj for the requested access, owning the FD-budget counter
// transition: the budget is acquired on every transition from closed to
// open and released when a reopen had to really close first.
//
// Insufficient current flags are fixed either in place, when the export
// supports the reopen method, or by a close and reopen.
func Open(ctx *OpContext, obj ObjectHandle, openflags OpenFlags) error {
	if obj.Type() != Regular {
		return Errorf(ErrBadType, "open on %s", obj.Type())
	}

	// Reclaim is an open-path modifier, not an access mode.
	openflags &^= OpenReclaim

	current := obj.OpenStatus()

	if current != OpenRDWR && current != OpenClosed && current != openflags {
		var err error
		closed := false

		if ctx.Options.ReopenMethod {
			err = obj.Reopen(ctx, openflags)
		} else {
			err = obj.Close(ctx)
			closed = true
		}

		if err != nil && !IsCode(err, ErrNotOpened) {
			return err
		}
		if err == nil && closed {
			ctx.FDBudget.Release()
		}

		current = obj.OpenStatus()
	}

	if current == OpenClosed {
		if err := obj.Open(ctx, openflags); err != nil {
			return err
		}

		ctx.FDBudget.Acquire()

		logger.Debug("open: flags=%#x open_fd_count=%d",
			openflags, ctx.FDBudget.InUse())
	}

	return nil
}

// Close closes obj if it is open, releasing the FD budget only when a real
// close happened. Closing an already-closed handle succeeds without
// touching the counter.
func Close(ctx *OpContext, obj ObjectHandle) error {
	if obj.Type() != Regular {
		logger.Debug("Close on non-regular file")
		return Errorf(ErrBadType, "close on %s", obj.Type())
	}

	if !IsOpen(obj) {
		return nil
	}

	if err := obj.Close(ctx); err != nil {
		return err
	}

	ctx.FDBudget.Release()
	return nil
}

// Commit flushes [offset, offset+length) to stable storage, opening the
// file transiently if it was closed.
func Commit(ctx *OpContext, obj ObjectHandle, offset, length uint64) error {
	if length > ^uint64(0)-offset {
		return Errorf(ErrInvalid, "commit range overflows")
	}

	opened := false
	if !IsOpen(obj) {
		logger.Debug("commit: need to open")
		if err := Open(ctx, obj, OpenWrite); err != nil {
			return err
		}
		opened = true
	}

	err := obj.Commit(ctx, offset, length)

	if opened {
		if cerr := Close(ctx, obj); cerr != nil {
			logger.Warn("commit: close failed: %v", cerr)
		}
	}

	return err
}
