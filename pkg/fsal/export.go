package fsal

import (
	"sync"
	"sync/atomic"
)

// DynamicInfo is the live filesystem usage an export reports for statfs.
type DynamicInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
	AvailFiles uint64
	MaxRead    uint64
	MaxWrite   uint64
}

// Export is one mounted namespace: a rooted handle tree plus the policy
// the helper consults. Handles hold their export reference weakly; holding
// a handle never extends the export's lifetime.
type Export interface {
	// ID returns the export's numeric identifier, unique in the process
	ID() uint16

	// Path returns the export's mount path
	Path() string

	// Ready reports whether the export is mounted and usable. Junction
	// resolution re-validates this before substituting the target root
	Ready() bool

	// Root returns the export's root handle, ref'd
	Root(ctx *OpContext) (ObjectHandle, error)

	// LookupPath resolves an absolute path within the export to a
	// handle, ref'd
	LookupPath(ctx *OpContext, path string) (ObjectHandle, error)

	// Options returns the export's default policy flags
	Options() ExportOptions

	// DynamicInfo returns live usage counters for statfs
	DynamicInfo(ctx *OpContext, obj ObjectHandle) (DynamicInfo, error)
}

// DirState is the per-directory administrative state: an optional junction
// into another export's tree and a count of exports rooted at this
// directory.
//
// Readers (junction checks during lookup, readdir, rename, remove) take the
// read lock; the rare mutation of establishing or clearing a junction takes
// the write lock. The export-root refcount is atomic so refusal checks can
// read it under the read lock alongside the junction.
type DirState struct {
	mu             sync.RWMutex
	junction       Export
	exportRootRefs atomic.Int32
}

// Junction returns the export this directory redirects into, or nil.
func (s *DirState) Junction() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.junction
}

// SetJunction establishes or clears (nil) the junction.
func (s *DirState) SetJunction(export Export) {
	s.mu.Lock()
	s.junction = export
	s.mu.Unlock()
}

// RefExportRoot marks this directory as the root of one more export.
func (s *DirState) RefExportRoot() {
	s.exportRootRefs.Add(1)
}

// UnrefExportRoot drops one export-root reference.
func (s *DirState) UnrefExportRoot() {
	s.exportRootRefs.Add(-1)
}

// IsExportRoot reports whether any export is rooted at this directory.
func (s *DirState) IsExportRoot() bool {
	return s.exportRootRefs.Load() != 0
}

// Anchored reports whether the directory is a junction node or an export
// root. Anchored directories refuse rename and remove.
func (s *DirState) Anchored() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.junction != nil || s.exportRootRefs.Load() != 0
}

// readyJunction returns the junction export only if it is still ready.
// Used by the junction-crossing paths in readdir and getattr.
func (s *DirState) readyJunction() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.junction != nil && s.junction.Ready() {
		return s.junction
	}
	return nil
}
