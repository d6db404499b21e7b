package fsal

// OpenFlags describe a regular file handle's open state.
type OpenFlags uint32

const (
	// OpenClosed means no descriptor is open
	OpenClosed OpenFlags = 0

	// OpenRead and OpenWrite select the access direction
	OpenRead  OpenFlags = 0x01
	OpenWrite OpenFlags = 0x02
	OpenRDWR  OpenFlags = OpenRead | OpenWrite

	// OpenSync requests stable writes
	OpenSync OpenFlags = 0x04

	// OpenReclaim marks a post-restart reclaim open; filtered out before
	// satisfaction checks
	OpenReclaim OpenFlags = 0x08
)

// IOContent describes what a ReadPlus/WritePlus range holds.
type IOContent int

const (
	IOData IOContent = iota
	IOHole
)

// IOInfo is the extra range description carried by the plus variants of
// read and write.
type IOInfo struct {
	Content IOContent
	Offset  uint64
	Length  uint64
}

// LockType is the kind of byte-range lock requested.
type LockType int

const (
	LockRead LockType = iota
	LockWrite
	LockUnlock
)

// LockRequest describes one byte-range lock operation. Length zero means
// to end of file.
type LockRequest struct {
	Type   LockType
	Offset uint64
	Length uint64
}

// XattrEntry is one extended attribute listed by ListXattrs.
type XattrEntry struct {
	ID   uint32
	Name string
}

// ObjectHandle is the capability set every filesystem object exposes. It is
// the sole contract a backend must satisfy, and the surface the metadata
// cache wraps.
//
// Handles are reference counted and shared, never copied. Ref and Unref are
// atomic; the last Unref finalizes the handle exactly once, releasing
// cached attributes and backend resources and notifying the owner. A
// handle's type tag and key are immutable for its whole life.
//
// Data operations (Open, Read, Write, Commit) on non-regular types fail
// with a bad-type error; directory operations on non-directories fail with
// a not-a-directory error. Every operation returns either a nil error or a
// *Error carrying the backend's major code.
type ObjectHandle interface {
	// Type returns the immutable object type tag.
	Type() FileType

	// Key returns the stable opaque handle bytes, unique within the
	// export. Valid as a cache key even after the backend object is
	// unlinked.
	Key() []byte

	// Export returns the owning export. The reference is weak: it never
	// extends the export's lifetime.
	Export() Export

	// Attributes returns the handle's cached attribute snapshot. The
	// snapshot is owned by the handle and refreshed by Getattrs.
	Attributes() *Attributes

	// DirState returns the administrative directory state, or nil for
	// non-directories.
	DirState() *DirState

	// Ref atomically acquires one reference.
	Ref()

	// Unref atomically drops one reference; the last drop finalizes.
	Unref()

	// ==================== Namespace operations ====================

	// Lookup resolves name to a child handle, ref'd. "." is resolved by
	// the helper; ".." reaches the backend only when the object is not
	// the export root.
	Lookup(ctx *OpContext, name string) (ObjectHandle, error)

	// Create makes a regular file. Returns the new handle, ref'd.
	Create(ctx *OpContext, name string, attrs *Attributes) (ObjectHandle, error)

	// Mkdir makes a directory. Returns the new handle, ref'd.
	Mkdir(ctx *OpContext, name string, attrs *Attributes) (ObjectHandle, error)

	// Symlink makes a symbolic link to target. Returns the new handle,
	// ref'd.
	Symlink(ctx *OpContext, name, target string, attrs *Attributes) (ObjectHandle, error)

	// Mknode makes a socket, fifo, block or char node. Returns the new
	// handle, ref'd.
	Mknode(ctx *OpContext, name string, nodeType FileType, dev RawDev, attrs *Attributes) (ObjectHandle, error)

	// Readlink returns the symlink target.
	Readlink(ctx *OpContext) (string, error)

	// Getattrs refreshes and returns the cached attribute snapshot.
	Getattrs(ctx *OpContext) (*Attributes, error)

	// Setattrs applies the attributes selected by attrs.Mask.
	Setattrs(ctx *OpContext, attrs *Attributes) error

	// Link adds name in destDir as a new hard link to this object.
	Link(ctx *OpContext, destDir ObjectHandle, name string) error

	// Unlink removes name from this directory. obj is the already
	// resolved target; backends with outstanding references to it defer
	// the actual removal until the handle finalizes.
	Unlink(ctx *OpContext, name string, obj ObjectHandle) error

	// Rename moves this object from oldParent/oldName to
	// newParent/newName.
	Rename(ctx *OpContext, oldParent ObjectHandle, oldName string, newParent ObjectHandle, newName string) error

	// Readdir enumerates entries starting at the smallest cookie >=
	// whence, invoking cb for each until cb returns false. Returns
	// whether the end of the directory was reached.
	Readdir(ctx *OpContext, whence uint64, cb func(name string, cookie uint64) bool) (eod bool, err error)

	// TestAccess evaluates the access mask against the cached
	// attributes: the ACL when present, mode bits otherwise.
	TestAccess(ctx *OpContext, mask AccessMask) error

	// ==================== Data operations ====================

	// Open opens the file with the given flags.
	Open(ctx *OpContext, flags OpenFlags) error

	// Reopen changes the open flags in place. Only called when the
	// export supports the reopen method.
	Reopen(ctx *OpContext, flags OpenFlags) error

	// OpenStatus returns the current open flags, OpenClosed if closed.
	OpenStatus() OpenFlags

	// Close closes the file. Closing a closed handle returns a
	// not-opened error.
	Close(ctx *OpContext) error

	// Read reads into buf at offset. Returns bytes read and whether end
	// of file was hit.
	Read(ctx *OpContext, offset uint64, buf []byte) (n int, eof bool, err error)

	// ReadPlus is Read with range content info.
	ReadPlus(ctx *OpContext, offset uint64, buf []byte, info *IOInfo) (n int, eof bool, err error)

	// Write writes data at offset. stable requests a stable write; the
	// returned flag reports whether the write actually reached stable
	// storage.
	Write(ctx *OpContext, offset uint64, data []byte, stable bool) (n int, stableDone bool, err error)

	// WritePlus is Write with range content info.
	WritePlus(ctx *OpContext, offset uint64, data []byte, stable bool, info *IOInfo) (n int, stableDone bool, err error)

	// Commit flushes the byte range to stable storage.
	Commit(ctx *OpContext, offset, length uint64) error

	// Lock performs a byte-range lock operation. On conflict it returns
	// the conflicting holder's range with a lock-held error.
	Lock(ctx *OpContext, req *LockRequest) (conflict *LockRequest, err error)

	// ==================== Extended attributes ====================

	// ListXattrs returns up to count entries starting at cookie, plus
	// whether the list was exhausted.
	ListXattrs(ctx *OpContext, cookie uint32, count int) (entries []XattrEntry, eol bool, err error)

	// GetXattrIDByName resolves an attribute name to its id.
	GetXattrIDByName(ctx *OpContext, name string) (uint32, error)

	// GetXattrByName returns the value of the named attribute.
	GetXattrByName(ctx *OpContext, name string) ([]byte, error)

	// GetXattrByID returns the value of the attribute with the id.
	GetXattrByID(ctx *OpContext, id uint32) ([]byte, error)

	// SetXattrByName sets the named attribute. create fails with an
	// exists error when the attribute is already present.
	SetXattrByName(ctx *OpContext, name string, value []byte, create bool) error

	// SetXattrByID replaces the value of the attribute with the id.
	SetXattrByID(ctx *OpContext, id uint32, value []byte) error

	// RemoveXattrByID removes the attribute with the id.
	RemoveXattrByID(ctx *OpContext, id uint32) error

	// RemoveXattrByName removes the named attribute.
	RemoveXattrByName(ctx *OpContext, name string) error
}

// IsOpen reports whether obj is a regular file with an open descriptor.
func IsOpen(obj ObjectHandle) bool {
	if obj.Type() != Regular {
		return false
	}
	return obj.OpenStatus() != OpenClosed
}
