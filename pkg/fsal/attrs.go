package fsal

import "time"

// FileType identifies the kind of filesystem object a handle represents.
// The type of a handle never changes after creation.
type FileType int

const (
	// NoFileType is the zero value; no real object carries it
	NoFileType FileType = iota

	// Regular is a regular file
	Regular

	// Directory is a directory
	Directory

	// Symlink is a symbolic link
	Symlink

	// Socket is a Unix domain socket node
	Socket

	// FIFO is a named pipe node
	FIFO

	// Block is a block device node
	Block

	// Char is a character device node
	Char
)

// String returns the symbolic name of the type.
func (t FileType) String() string {
	switch t {
	case Regular:
		return "REGULAR"
	case Directory:
		return "DIRECTORY"
	case Symlink:
		return "SYMLINK"
	case Socket:
		return "SOCKET"
	case FIFO:
		return "FIFO"
	case Block:
		return "BLOCK"
	case Char:
		return "CHAR"
	default:
		return "NONE"
	}
}

// Creatable reports whether the type can be passed to the create helper.
func (t FileType) Creatable() bool {
	switch t {
	case Regular, Directory, Symlink, Socket, FIFO, Block, Char:
		return true
	default:
		return false
	}
}

// AttrMask selects which fields of an Attributes carry meaning, both on
// getattr results and on setattr requests.
type AttrMask uint32

const (
	AttrMode AttrMask = 1 << iota
	AttrOwner
	AttrGroup
	AttrSize
	AttrAtime
	AttrMtime
	AttrCtime

	// AttrAtimeServer and AttrMtimeServer request setting the respective
	// timestamp to the server's current time rather than a caller value
	AttrAtimeServer
	AttrMtimeServer

	AttrCreation
	AttrChange
	AttrACL
	AttrSpaceUsed
	AttrRawDev
)

// Has reports whether any of the given bits are set.
func (m AttrMask) Has(bits AttrMask) bool {
	return m&bits != 0
}

// Mode bit constants used by the permission side effects of setattr.
const (
	ModeSetuid = 0o4000
	ModeSetgid = 0o2000
	ModeSticky = 0o1000

	modeExecAny   = 0o111
	modeExecGroup = 0o010
)

// RawDev identifies a block or character device.
type RawDev struct {
	Major uint32
	Minor uint32
}

// Attributes is the cached attribute snapshot of one filesystem object.
//
// Handles own their snapshot; Getattrs refreshes it from the backend. Mask
// records which fields are meaningful. On setattr requests, Mask records
// which fields the caller wants changed.
type Attributes struct {
	// Mask selects the meaningful fields
	Mask AttrMask

	// Type is the object type; immutable for a given object
	Type FileType

	// FileID is the numeric identifier, unique within the export
	FileID uint64

	// Mode holds the permission bits including setuid/setgid/sticky
	Mode uint32

	// NumLinks is the hard link count
	NumLinks uint32

	// Owner and Group identify the owning user and group
	Owner uint32
	Group uint32

	// Size is the object size in bytes
	Size uint64

	// SpaceUsed is the allocated size in bytes
	SpaceUsed uint64

	// Atime, Mtime and Ctime are the POSIX timestamps
	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	// Change is a counter that must advance on every visible mutation
	Change uint64

	// RawDev is meaningful for block and character nodes only
	RawDev RawDev

	// ACL is the optional NFSv4 ACL; nil means mode-bit semantics apply
	ACL *ACL
}

// Clone returns a deep copy of the attributes. The ACL slice is copied so
// the clone can be mutated independently.
func (a *Attributes) Clone() *Attributes {
	out := *a
	if a.ACL != nil {
		acl := &ACL{ACEs: make([]ACE, len(a.ACL.ACEs))}
		copy(acl.ACEs, a.ACL.ACEs)
		out.ACL = acl
	}
	return &out
}
