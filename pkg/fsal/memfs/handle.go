// Package memfs is the reference in-memory backend. It exists to prove the
// handle and cache contracts: every object is a reference-counted handle
// with a wire-stable key, directories keep a dual-ordered index for lookup
// and cookie-resumable enumeration, and unlink with outstanding references
// defers the real removal until the last reference drops.
package memfs

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/mdfs/pkg/fsal"
)

// wireKey is the XDR-encoded form of a handle key. The encoding is stable
// across restarts and across hosts, so keys can travel inside protocol
// file handles.
type wireKey struct {
	ExportID uint32
	ObjectID [16]byte
}

// encodeKey builds the opaque handle bytes for an object.
func encodeKey(exportID uint16, id uuid.UUID) []byte {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, wireKey{ExportID: uint32(exportID), ObjectID: id}); err != nil {
		// The struct is fixed-size and marshalable; this cannot fail
		// at runtime.
		panic(err)
	}
	return buf.Bytes()
}

// decodeKey parses opaque handle bytes back into their parts.
func decodeKey(key []byte) (exportID uint16, id uuid.UUID, err error) {
	var wk wireKey
	if _, err := xdr.Unmarshal(bytes.NewReader(key), &wk); err != nil {
		return 0, uuid.Nil, fsal.Errorf(fsal.ErrBadHandle, "malformed handle key")
	}
	return uint16(wk.ExportID), uuid.UUID(wk.ObjectID), nil
}

// filePayload is the regular-file part of a handle: open mode, offset,
// share reservation counters and the content buffer.
type filePayload struct {
	mu sync.Mutex

	openFlags fsal.OpenFlags
	offset    int64

	// share reservation counters
	shareReaders int
	shareWriters int

	data  []byte
	locks []lockRange
}

// linkPayload is the symlink part of a handle.
type linkPayload struct {
	target string
}

// nodePayload is the device/socket/fifo part of a handle.
type nodePayload struct {
	nodeType fsal.FileType
	dev      fsal.RawDev
}

// Handle is one in-memory filesystem object. Exactly one of the payload
// fields is non-nil, matching the type tag.
type Handle struct {
	export *Export
	id     uuid.UUID
	key    []byte
	attrs  *fsal.Attributes

	// parent is a weak back-reference used by enumeration and unlink
	// bookkeeping; it never holds a reference.
	parent *Handle

	refs     atomic.Int64
	unlinked atomic.Bool

	dirState *fsal.DirState

	dir  *dirPayload
	file *filePayload
	link *linkPayload
	node *nodePayload

	xattrs xattrStore
}

// compile-time contract check
var _ fsal.ObjectHandle = (*Handle)(nil)

// newHandle builds an object of the given type. The caller gets the one
// initial reference.
func newHandle(export *Export, ftype fsal.FileType, attrs *fsal.Attributes) *Handle {
	id := uuid.New()
	now := time.Now()

	h := &Handle{
		export: export,
		id:     id,
		key:    encodeKey(export.id, id),
		attrs: &fsal.Attributes{
			Mask: fsal.AttrMode | fsal.AttrOwner | fsal.AttrGroup |
				fsal.AttrSize | fsal.AttrAtime | fsal.AttrMtime |
				fsal.AttrCtime | fsal.AttrChange,
			Type:     ftype,
			FileID:   export.nextFileID.Add(1),
			Mode:     attrs.Mode,
			Owner:    attrs.Owner,
			Group:    attrs.Group,
			NumLinks: 1,
			Atime:    now,
			Mtime:    now,
			Ctime:    now,
			Change:   1,
		},
	}

	switch ftype {
	case fsal.Directory:
		h.dir = newDirPayload()
		h.dirState = &fsal.DirState{}
		h.attrs.NumLinks = 2
		h.attrs.Size = 4096
	case fsal.Regular:
		h.file = &filePayload{}
		if attrs.Mask.Has(fsal.AttrSize) {
			h.file.data = make([]byte, attrs.Size)
			h.attrs.Size = attrs.Size
		}
	case fsal.Symlink:
		h.link = &linkPayload{}
	default:
		h.node = &nodePayload{nodeType: ftype}
	}

	if attrs.Mask.Has(fsal.AttrACL) {
		h.attrs.ACL = attrs.ACL
	}

	h.refs.Store(1)
	export.objects.Add(1)
	return h
}

// bumpChange records a visible mutation: the change counter advances and
// ctime moves to now.
func (h *Handle) bumpChange() {
	h.attrs.Change++
	h.attrs.Ctime = time.Now()
}

// ==================== Generic handle surface ====================

func (h *Handle) Type() fsal.FileType {
	return h.attrs.Type
}

func (h *Handle) Key() []byte {
	return h.key
}

func (h *Handle) Export() fsal.Export {
	return h.export
}

func (h *Handle) Attributes() *fsal.Attributes {
	return h.attrs
}

func (h *Handle) DirState() *fsal.DirState {
	return h.dirState
}

func (h *Handle) Ref() {
	h.refs.Add(1)
}

// Unref drops one reference. The last drop finalizes: an unlinked object
// completes its deferred removal and the export's live object count drops.
// Finalization happens exactly once.
func (h *Handle) Unref() {
	if h.refs.Add(-1) != 0 {
		return
	}

	if h.file != nil {
		h.file.mu.Lock()
		h.file.data = nil
		h.file.openFlags = fsal.OpenClosed
		h.file.mu.Unlock()
	}

	h.export.objects.Add(-1)
}

// errUnlinked is returned by namespace operations on a fully unlinked
// object. The handle stays valid as a cache key; only new work through it
// is refused.
func (h *Handle) checkLive() error {
	if h.unlinked.Load() {
		return fsal.Errorf(fsal.ErrStale, "object was removed")
	}
	return nil
}
