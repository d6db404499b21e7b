package memfs

import (
	"strings"
	"time"

	"github.com/marmos91/mdfs/pkg/fsal"
)

const maxNameLen = 255

// asHandle unwraps a peer handle argument. Anything that is not a memfs
// handle cannot be operated on by this backend.
func asHandle(obj fsal.ObjectHandle) (*Handle, error) {
	h, ok := obj.(*Handle)
	if !ok {
		return nil, fsal.Errorf(fsal.ErrXDev, "handle belongs to a different filesystem")
	}
	return h, nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return fsal.Errorf(fsal.ErrInvalid, "invalid object name %q", name)
	}
	if len(name) > maxNameLen {
		return fsal.Errorf(fsal.ErrNameTooLong, "name exceeds %d bytes", maxNameLen)
	}
	return nil
}

// touchDir records a namespace mutation on a directory.
func (h *Handle) touchDir() {
	h.attrs.Mtime = time.Now()
	h.bumpChange()
}

// dropLink removes one link from child after its directory entry is gone.
// The last link marks the object unlinked; it stays alive until the final
// reference drops.
func dropLink(child *Handle) {
	if child.attrs.Type == fsal.Directory {
		child.attrs.NumLinks = 0
		child.unlinked.Store(true)
		return
	}

	child.attrs.NumLinks--
	child.bumpChange()
	if child.attrs.NumLinks == 0 {
		child.unlinked.Store(true)
	}
}

// ==================== Namespace operations ====================

func (h *Handle) Lookup(ctx *fsal.OpContext, name string) (fsal.ObjectHandle, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}
	if h.dir == nil {
		return nil, fsal.Errorf(fsal.ErrNotDirectory, "lookup in %s", h.attrs.Type)
	}

	switch name {
	case ".":
		h.Ref()
		return h, nil
	case "..":
		parent := h.parent
		if parent == nil {
			// The root is its own parent.
			parent = h
		}
		parent.Ref()
		return parent, nil
	}

	ent := h.dir.get(name)
	if ent == nil {
		return nil, fsal.Errorf(fsal.ErrNotFound, "%s not found", name)
	}

	ent.child.Ref()
	return ent.child, nil
}

// makeObject is the shared tail of all five create operations: build the
// handle, attach it under name, account the parent.
func (h *Handle) makeObject(name string, ftype fsal.FileType, attrs *fsal.Attributes) (*Handle, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}
	if h.dir == nil {
		return nil, fsal.Errorf(fsal.ErrNotDirectory, "create in %s", h.attrs.Type)
	}
	if err := checkName(name); err != nil {
		return nil, err
	}

	child := newHandle(h.export, ftype, attrs)
	child.parent = h

	if !h.dir.insert(name, child) {
		child.Unref()
		return nil, fsal.Errorf(fsal.ErrExists, "%s already exists", name)
	}

	// One reference is owned by the directory entry, one goes to the
	// caller.
	child.Ref()

	if ftype == fsal.Directory {
		h.attrs.NumLinks++
	}
	h.touchDir()
	return child, nil
}

func (h *Handle) Create(ctx *fsal.OpContext, name string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	return h.makeObject(name, fsal.Regular, attrs)
}

func (h *Handle) Mkdir(ctx *fsal.OpContext, name string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	return h.makeObject(name, fsal.Directory, attrs)
}

func (h *Handle) Symlink(ctx *fsal.OpContext, name, target string, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	child, err := h.makeObject(name, fsal.Symlink, attrs)
	if err != nil {
		return nil, err
	}
	child.link.target = target
	child.attrs.Size = uint64(len(target))
	return child, nil
}

func (h *Handle) Mknode(ctx *fsal.OpContext, name string, nodeType fsal.FileType, dev fsal.RawDev, attrs *fsal.Attributes) (fsal.ObjectHandle, error) {
	switch nodeType {
	case fsal.Socket, fsal.FIFO, fsal.Block, fsal.Char:
	default:
		return nil, fsal.Errorf(fsal.ErrInvalid, "mknode of %s", nodeType)
	}

	child, err := h.makeObject(name, nodeType, attrs)
	if err != nil {
		return nil, err
	}
	child.node.dev = dev
	child.attrs.RawDev = dev
	return child, nil
}

func (h *Handle) Readlink(ctx *fsal.OpContext) (string, error) {
	if err := h.checkLive(); err != nil {
		return "", err
	}
	if h.link == nil {
		return "", fsal.Errorf(fsal.ErrInvalid, "readlink of %s", h.attrs.Type)
	}
	return h.link.target, nil
}

func (h *Handle) Getattrs(ctx *fsal.OpContext) (*fsal.Attributes, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}
	return h.attrs, nil
}

func (h *Handle) Setattrs(ctx *fsal.OpContext, attrs *fsal.Attributes) error {
	if err := h.checkLive(); err != nil {
		return err
	}

	now := time.Now()

	if attrs.Mask.Has(fsal.AttrSize) {
		if h.file == nil {
			return fsal.Errorf(fsal.ErrBadType, "truncate of %s", h.attrs.Type)
		}
		h.file.mu.Lock()
		h.file.data = resize(h.file.data, attrs.Size)
		h.file.mu.Unlock()
		h.attrs.Size = attrs.Size
		h.attrs.SpaceUsed = attrs.Size
		h.attrs.Mtime = now
	}

	if attrs.Mask.Has(fsal.AttrMode) {
		h.attrs.Mode = attrs.Mode & 0o7777
	}
	if attrs.Mask.Has(fsal.AttrOwner) {
		h.attrs.Owner = attrs.Owner
	}
	if attrs.Mask.Has(fsal.AttrGroup) {
		h.attrs.Group = attrs.Group
	}
	if attrs.Mask.Has(fsal.AttrACL) {
		h.attrs.ACL = attrs.ACL
	}

	if attrs.Mask.Has(fsal.AttrAtime) {
		h.attrs.Atime = attrs.Atime
	} else if attrs.Mask.Has(fsal.AttrAtimeServer) {
		h.attrs.Atime = now
	}
	if attrs.Mask.Has(fsal.AttrMtime) {
		h.attrs.Mtime = attrs.Mtime
	} else if attrs.Mask.Has(fsal.AttrMtimeServer) {
		h.attrs.Mtime = now
	}

	h.bumpChange()
	return nil
}

func (h *Handle) Link(ctx *fsal.OpContext, destDir fsal.ObjectHandle, name string) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	if h.attrs.Type == fsal.Directory {
		return fsal.Errorf(fsal.ErrBadType, "hard link to a directory")
	}

	dest, err := asHandle(destDir)
	if err != nil {
		return err
	}
	if err := dest.checkLive(); err != nil {
		return err
	}
	if dest.dir == nil {
		return fsal.Errorf(fsal.ErrNotDirectory, "link into %s", dest.attrs.Type)
	}
	if err := checkName(name); err != nil {
		return err
	}

	if !dest.dir.insert(name, h) {
		return fsal.Errorf(fsal.ErrExists, "%s already exists", name)
	}

	h.Ref()
	h.attrs.NumLinks++
	h.bumpChange()
	dest.touchDir()
	return nil
}

func (h *Handle) Unlink(ctx *fsal.OpContext, name string, obj fsal.ObjectHandle) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	if h.dir == nil {
		return fsal.Errorf(fsal.ErrNotDirectory, "unlink from %s", h.attrs.Type)
	}

	ent := h.dir.get(name)
	if ent == nil {
		return fsal.Errorf(fsal.ErrNotFound, "%s not found", name)
	}
	if ent.child.attrs.Type == fsal.Directory && ent.child.dir.count() > 0 {
		return fsal.Errorf(fsal.ErrNotEmpty, "%s is not empty", name)
	}

	ent = h.dir.remove(name)
	if ent == nil {
		return fsal.Errorf(fsal.ErrNotFound, "%s not found", name)
	}

	child := ent.child
	if child.attrs.Type == fsal.Directory {
		h.attrs.NumLinks--
	}
	dropLink(child)
	child.Unref()

	h.touchDir()
	return nil
}

// Rename is invoked on the source object, with both parents supplied.
func (h *Handle) Rename(ctx *fsal.OpContext, oldParent fsal.ObjectHandle, oldName string, newParent fsal.ObjectHandle, newName string) error {
	src, err := asHandle(oldParent)
	if err != nil {
		return err
	}
	dest, err := asHandle(newParent)
	if err != nil {
		return err
	}
	if src.dir == nil || dest.dir == nil {
		return fsal.Errorf(fsal.ErrNotDirectory, "rename between non-directories")
	}
	if err := src.checkLive(); err != nil {
		return err
	}
	if err := dest.checkLive(); err != nil {
		return err
	}
	if err := checkName(newName); err != nil {
		return err
	}

	if src == dest && oldName == newName {
		return nil
	}

	moving := src.dir.get(oldName)
	if moving == nil {
		return fsal.Errorf(fsal.ErrNotFound, "%s not found", oldName)
	}

	// POSIX compatibility checks against an existing destination.
	if existing := dest.dir.get(newName); existing != nil {
		srcIsDir := moving.child.attrs.Type == fsal.Directory
		destIsDir := existing.child.attrs.Type == fsal.Directory
		switch {
		case destIsDir && existing.child.dir.count() > 0:
			return fsal.Errorf(fsal.ErrNotEmpty, "%s is not empty", newName)
		case destIsDir && !srcIsDir:
			return fsal.Errorf(fsal.ErrIsDirectory, "%s is a directory", newName)
		case !destIsDir && srcIsDir:
			return fsal.Errorf(fsal.ErrNotDirectory, "%s is not a directory", newName)
		}
	}

	ent := src.dir.remove(oldName)
	if ent == nil {
		return fsal.Errorf(fsal.ErrNotFound, "%s not found", oldName)
	}

	if displaced := dest.dir.remove(newName); displaced != nil {
		dropLink(displaced.child)
		displaced.child.Unref()
	}

	if !dest.dir.insert(newName, ent.child) {
		// Lost a race for the destination name; put the source back.
		src.dir.insert(oldName, ent.child)
		return fsal.Errorf(fsal.ErrExists, "%s already exists", newName)
	}

	ent.child.parent = dest
	if ent.child.attrs.Type == fsal.Directory && src != dest {
		src.attrs.NumLinks--
		dest.attrs.NumLinks++
	}

	src.touchDir()
	if dest != src {
		dest.touchDir()
	}
	return nil
}

// Readdir walks the slot-ordered index from the first entry at or past
// whence. The entries are snapshotted first so the callback can re-enter
// the directory, then cb is called with each name and the cookie that
// resumes enumeration just after that entry.
func (h *Handle) Readdir(ctx *fsal.OpContext, whence uint64, cb func(name string, cookie uint64) bool) (bool, error) {
	if err := h.checkLive(); err != nil {
		return false, err
	}
	if h.dir == nil {
		return false, fsal.Errorf(fsal.ErrNotDirectory, "readdir of %s", h.attrs.Type)
	}

	type slotName struct {
		name string
		slot uint64
	}
	var snapshot []slotName
	h.dir.ascend(whence, func(ent *dirent) bool {
		snapshot = append(snapshot, slotName{name: ent.name, slot: ent.slot})
		return true
	})

	for _, ent := range snapshot {
		if !cb(ent.name, ent.slot+1) {
			return false, nil
		}
	}

	h.attrs.Atime = time.Now()
	return true, nil
}

// resize grows or shrinks a content buffer, zero-filling growth.
func resize(data []byte, size uint64) []byte {
	switch {
	case uint64(len(data)) == size:
		return data
	case uint64(len(data)) > size:
		return data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, data)
		return grown
	}
}
