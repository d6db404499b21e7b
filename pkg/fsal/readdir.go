package fsal

import (
	"github.com/marmos91/mdfs/internal/logger"
)

// CBState tags each attribute-callback invocation during directory
// population, making junction resolution explicit to the caller.
type CBState int

const (
	// CBOriginal is a plain directory entry
	CBOriginal CBState = iota

	// CBJunction is the resolved root of a crossed junction, delivered
	// right after the junction entry itself signalled the crossing
	CBJunction

	// CBProblem reports a junction that could not be resolved; obj and
	// attrs are nil on this invocation
	CBProblem
)

// AttrCallback receives one object and its attribute snapshot during
// directory population or a getattr with junction resolution.
//
// Returning consumed=false stops the enumeration (the caller's buffer is
// full). Returning an ErrCrossJunction error signals that the object is a
// junction whose target root should be delivered instead.
type AttrCallback func(obj ObjectHandle, attrs *Attributes, fileID, cookie uint64, state CBState) (consumed bool, err error)

// populateState threads the caller's callback and the junction state
// machine through the backend's per-name enumeration callback.
type populateState struct {
	ctx       *OpContext
	directory ObjectHandle
	cb        AttrCallback
	state     CBState
	nfound    uint
	err       error
}

// emit refreshes obj's attributes and hands it to the caller's callback.
func (s *populateState) emit(obj ObjectHandle, cookie uint64) (bool, error) {
	if err := RefreshAttrs(s.ctx, obj); err != nil {
		return false, err
	}

	attrs := obj.Attributes()
	return s.cb(obj, attrs, attrs.FileID, cookie, s.state)
}

// populate is the per-name callback handed to the backend's readdir. It
// resolves the name, delivers the entry, and runs the junction state
// machine when the callback signals a crossing.
func (s *populateState) populate(name string, cookie uint64) bool {
	obj, err := s.directory.Lookup(s.ctx, name)
	if err != nil {
		if IsCode(err, ErrXDev) {
			logger.Info("Ignoring XDEV entry %s", name)
			return true
		}
		logger.Info("Lookup failed on %s: %v", name, err)
		s.err = err
		return false
	}
	defer obj.Unref()

	consumed, err := s.emit(obj, cookie)

	if IsCode(err, ErrCrossJunction) {
		junction := junctionExport(obj)
		if junction == nil {
			logger.Error("A junction became stale")
			s.state = CBProblem
			_, _ = s.cb(nil, nil, 0, cookie, s.state)
			s.err = Errorf(ErrStale, "junction target export is gone")
			return false
		}

		root, rerr := junction.Root(s.ctx)
		if rerr != nil {
			logger.Error("Failed to get root for %s, id=%d: %v",
				junction.Path(), junction.ID(), rerr)
			s.state = CBProblem
			_, _ = s.cb(nil, nil, 0, cookie, s.state)
			s.err = rerr
			return false
		}

		// Deliver the resolved root in place of the junction entry,
		// then restore the original state so later entries are plain
		// again.
		s.state = CBJunction
		consumed, err = s.emit(root, cookie)
		s.state = CBOriginal

		root.Unref()
	}

	if err != nil {
		logger.Info("Skipping entry %s: %v", name, err)
		return true
	}

	if !consumed {
		return false
	}

	s.nfound++
	return true
}

// Readdir enumerates dir starting at cookie, delivering every entry with
// refreshed attributes to cb.
//
// Listing requires list-directory access on dir. When the caller also
// requests attributes, an additional execute check is made (plus read-acl
// when the ACL is requested); its failure is logged but does not stop the
// listing, matching the behavior callers rely on. Junction entries are
// resolved to the target export's root via the callback state machine; a
// junction whose export is gone surfaces as stale.
//
// Returns the number of entries delivered and whether the end of the
// directory was reached.
func Readdir(ctx *OpContext, dir ObjectHandle, cookie uint64, attrMask AttrMask, cb AttrCallback) (nfound uint, eod bool, err error) {
	if dir.Type() != Directory {
		logger.Debug("Readdir on %s", dir.Type())
		return 0, false, Errorf(ErrNotDirectory, "readdir on %s", dir.Type())
	}

	if err := RefreshAttrs(ctx, dir); err != nil {
		logger.Debug("Readdir attribute refresh failed: %v", err)
		return 0, false, err
	}

	accessMask := ModeReadOK | Ace4ListDir
	accessMaskAttr := ModeReadOK | ModeExecOK | Ace4ListDir | Ace4Execute

	// We intentionally do not require READ_ATTR; READ_ACL is required
	// only when the ACL itself was asked for.
	if attrMask.Has(AttrACL) {
		accessMask |= Ace4ReadACL
		accessMaskAttr |= Ace4ReadACL
	}

	if err := Access(ctx, dir, accessMask); err != nil {
		logger.Debug("Permission check for directory failed: %v", err)
		return 0, false, err
	}
	if attrMask != 0 {
		if aerr := Access(ctx, dir, accessMaskAttr); aerr != nil {
			logger.Debug("Permission check for attributes failed: %v", aerr)
		}
	}

	state := &populateState{
		ctx:       ctx,
		directory: dir,
		cb:        cb,
		state:     CBOriginal,
	}

	eod, err = dir.Readdir(ctx, cookie, state.populate)
	if state.err != nil {
		return state.nfound, eod, state.err
	}

	return state.nfound, eod, err
}
