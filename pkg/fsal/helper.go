// Package fsal provides the object-handle contract of the file server core
// and the stateless helper operations that enforce permission, attribute
// and namespace semantics over any handle implementation.
//
// The helpers are the layer protocol handlers call. They validate caller
// permissions against POSIX mode bits or NFSv4 ACLs, refresh cached
// attributes where semantics demand current state, and delegate the actual
// work to the handle's capability set.
package fsal

import (
	"bytes"

	"github.com/marmos91/mdfs/internal/logger"
)

// Access checks that the caller holds the requested access on obj. The
// cached attributes are refreshed first so the check runs against current
// state.
func Access(ctx *OpContext, obj ObjectHandle, mask AccessMask) error {
	if err := RefreshAttrs(ctx, obj); err != nil {
		logger.Warn("Failed to refresh attributes: %v", err)
		return err
	}
	return obj.TestAccess(ctx, mask)
}

// RefreshAttrs re-reads obj's attributes from the backend. Any cached ACL
// is dropped first so a revoked ACL cannot satisfy a later check.
func RefreshAttrs(ctx *OpContext, obj ObjectHandle) error {
	obj.Attributes().ACL = nil

	if _, err := obj.Getattrs(ctx); err != nil {
		logger.Debug("Attribute refresh failed: %v", err)
		return err
	}
	return nil
}

// checkSetattrPerms decides whether the caller may apply the requested
// attribute changes to obj, based on obj's current (just refreshed)
// attributes.
//
// The required-access bitmask is assembled per changed attribute: ownership
// changes need write-owner unless the caller already owns the object, group
// changes additionally require membership in the target group, mode or ACL
// changes need write-acl, size changes need write-data, and timestamps need
// write-data when set to "now" but write-attr when set explicitly. With no
// ACL on the object, only the pure write-data case can be satisfied, via a
// mode-bit write check.
func checkSetattrPerms(ctx *OpContext, obj ObjectHandle, attrs *Attributes) error {
	creds := &ctx.Creds
	current := obj.Attributes()

	if creds.IsPrivileged() {
		return nil
	}

	var accessCheck AccessMask
	notOwner := creds.UID != current.Owner

	if attrs.Mask.Has(AttrOwner) {
		// An unprivileged caller may only take ownership themselves.
		if attrs.Owner != creds.UID {
			return Errorf(ErrPermDenied, "new owner is not the caller")
		}
		if notOwner {
			accessCheck |= Ace4WriteOwner
			logger.Debug("Change OWNER requires WRITE_OWNER")
		}
	}

	if attrs.Mask.Has(AttrGroup) {
		// An unprivileged caller may only move the object into a
		// group they are a member of.
		if !creds.MemberOf(attrs.Group) {
			return Errorf(ErrPermDenied, "caller is not a member of new group %d", attrs.Group)
		}
		if notOwner {
			accessCheck |= Ace4WriteOwner
			logger.Debug("Change GROUP requires WRITE_OWNER")
		}
	}

	// Every remaining attribute is changeable by the owner, and the
	// ownership changes above were already validated as ones the owner
	// may make.
	if !notOwner {
		return nil
	}

	if attrs.Mask.Has(AttrMode | AttrACL) {
		accessCheck |= Ace4WriteACL
		logger.Debug("Change MODE or ACL requires WRITE_ACL")
	}

	if attrs.Mask.Has(AttrSize) {
		accessCheck |= Ace4WriteData
		logger.Debug("Change SIZE requires WRITE_DATA")
	}

	if attrs.Mask.Has(AttrAtimeServer|AttrMtimeServer) &&
		!attrs.Mask.Has(AttrAtime|AttrMtime) {
		// Setting atime/mtime to "now" only needs write access, the
		// same bar as writing the data that bumps them.
		accessCheck |= Ace4WriteData
		logger.Debug("Change ATIME and MTIME to NOW requires WRITE_DATA")
	} else if attrs.Mask.Has(AttrAtime | AttrMtime | AttrAtimeServer | AttrMtimeServer) {
		// Explicit timestamps need write-attr.
		accessCheck |= Ace4WriteAttr
		logger.Debug("Change ATIME and/or MTIME requires WRITE_ATTR")
	}

	if current.ACL != nil {
		return obj.TestAccess(ctx, accessCheck)
	}

	if accessCheck != Ace4WriteData {
		// Without an ACL the mode bits cannot grant write-owner,
		// write-acl or write-attr to a non-owner.
		return Errorf(ErrPermDenied, "no ACL to grant requested attribute change")
	}

	return obj.TestAccess(ctx, ModeWriteOK)
}

// SetAttrs applies the attribute changes selected by attrs.Mask to obj.
//
// The cached attributes are refreshed before the permission check so the
// decision uses current state. POSIX chown/chmod side effects on the setuid
// and setgid bits are applied to the request before it reaches the backend.
// After the backend commits, the change counter is forced to advance if the
// backend did not advance it. On success the complete new attribute set is
// copied back over attrs.
func SetAttrs(ctx *OpContext, obj ObjectHandle, attrs *Attributes) error {
	if attrs.Mask.Has(AttrSize|AttrSpaceUsed) && obj.Type() != Regular {
		logger.Warn("Attempt to truncate non-regular file: type=%s", obj.Type())
		return Errorf(ErrBadType, "cannot set size on %s", obj.Type())
	}

	if !ctx.Options.CanSetTime &&
		attrs.Mask.Has(AttrAtime|AttrCreation|AttrCtime|AttrMtime) {
		return Errorf(ErrInvalid, "export does not allow setting times")
	}

	if err := RefreshAttrs(ctx, obj); err != nil {
		logger.Warn("Failed to refresh attributes: %v", err)
		return err
	}

	if err := checkSetattrPerms(ctx, obj, attrs); err != nil {
		return err
	}

	current := obj.Attributes()
	creds := &ctx.Creds

	// chown(2): when an unprivileged user changes the owner or group of
	// an executable file, setuid is cleared, and setgid too unless the
	// file is not group-executable, where setgid means mandatory locking
	// and survives the chown.
	if !creds.IsPrivileged() &&
		attrs.Mask.Has(AttrOwner|AttrGroup) &&
		current.Mode&modeExecAny != 0 &&
		current.Mode&(ModeSetuid|ModeSetgid) != 0 {
		if !attrs.Mask.Has(AttrMode) {
			attrs.Mode = current.Mode
			attrs.Mask |= AttrMode
		}
		if current.Mode&modeExecGroup != 0 {
			attrs.Mode &^= ModeSetgid
		}
		attrs.Mode &^= ModeSetuid
	}

	// chmod(2): an unprivileged caller setting setgid on a file whose
	// group they are not a member of has the bit silently turned off.
	if !creds.IsPrivileged() &&
		attrs.Mask.Has(AttrMode) &&
		attrs.Mode&ModeSetgid != 0 &&
		!creds.MemberOf(current.Group) {
		attrs.Mode &^= ModeSetgid
	}

	before := current.Change

	if err := obj.Setattrs(ctx, attrs); err != nil {
		if IsStale(err) {
			logger.Warn("Backend returned STALE from setattrs")
		}
		return err
	}

	if _, err := obj.Getattrs(ctx); err != nil {
		if IsStale(err) {
			logger.Warn("Backend returned STALE from getattrs")
		}
		return err
	}

	// The change counter must be monotonic from the caller's point of
	// view even when the backend forgot to bump it.
	current = obj.Attributes()
	if current.Change == before {
		current.Change++
	}

	*attrs = *current

	return nil
}

// Lookup resolves name within parent, requiring execute access on parent.
// "." returns parent itself and ".." resolves via LookupParent, which
// short-circuits at the export root. The returned handle is ref'd.
func Lookup(ctx *OpContext, parent ObjectHandle, name string) (ObjectHandle, error) {
	if parent.Type() != Directory {
		return nil, Errorf(ErrNotDirectory, "lookup in %s", parent.Type())
	}

	accessMask := ModeExecOK | Ace4Execute
	if err := Access(ctx, parent, accessMask); err != nil {
		return nil, err
	}

	switch name {
	case ".":
		parent.Ref()
		return parent, nil
	case "..":
		return LookupParent(ctx, parent)
	}

	return parent.Lookup(ctx, name)
}

// LookupParent resolves obj's parent directory. At the export root it
// short-circuits and returns the root itself, ref'd, without calling the
// backend.
func LookupParent(ctx *OpContext, obj ObjectHandle) (ObjectHandle, error) {
	if obj.Type() == Directory {
		root, err := ctx.Export.LookupPath(ctx, ctx.Export.Path())
		if err != nil {
			return nil, err
		}

		if bytes.Equal(obj.Key(), root.Key()) {
			// obj is the root of the current export; ".." stays
			// put. The reference from LookupPath serves as the
			// returned reference.
			return root, nil
		}
		root.Unref()
	}

	return obj.Lookup(ctx, "..")
}

// CreateArg carries the type-specific extras of a create request.
type CreateArg struct {
	// LinkContent is the target for symlink creation
	LinkContent string

	// Dev identifies the device for block and char nodes
	Dev RawDev
}

// Create makes a new object of the given type under parent.
//
// Owner, group and mode of the new object always come from the caller's
// credentials and the supplied mode. On an already-exists race the name is
// re-resolved: the existing object is returned alongside the exists error
// only when its type matches the request, so callers can tell a cleanly
// lost creation race from a name taken by an incompatible type.
func Create(ctx *OpContext, parent ObjectHandle, name string, ftype FileType, mode uint32, arg *CreateArg) (ObjectHandle, error) {
	if arg == nil {
		arg = &CreateArg{}
	}

	if !ftype.Creatable() {
		logger.Debug("Create failed because of bad type %s", ftype)
		return nil, Errorf(ErrBadType, "cannot create object of type %s", ftype)
	}

	// Permission checking is the backend's job on create paths.
	attrs := &Attributes{
		Mask:  AttrMode | AttrOwner | AttrGroup,
		Mode:  mode,
		Owner: ctx.Creds.UID,
		Group: ctx.Creds.GID,
	}

	var obj ObjectHandle
	var err error

	switch ftype {
	case Regular:
		obj, err = parent.Create(ctx, name, attrs)
	case Directory:
		obj, err = parent.Mkdir(ctx, name, attrs)
	case Symlink:
		obj, err = parent.Symlink(ctx, name, arg.LinkContent, attrs)
	case Socket, FIFO:
		obj, err = parent.Mknode(ctx, name, ftype, RawDev{}, attrs)
	case Block, Char:
		obj, err = parent.Mknode(ctx, name, ftype, arg.Dev, attrs)
	}

	// The parent's attributes changed whether or not the create won.
	if rerr := RefreshAttrs(ctx, parent); rerr != nil {
		logger.Debug("Parent attribute refresh after create failed: %v", rerr)
	}

	if err != nil {
		if IsStale(err) {
			logger.Warn("Backend returned STALE on create type %s", ftype)
		} else if IsCode(err, ErrExists) {
			existing, lerr := Lookup(ctx, parent, name)
			if existing != nil {
				logger.Debug("Create failed because %q already exists", name)
				if existing.Type() != ftype {
					// Incompatible type holds the name.
					existing.Unref()
					existing = nil
				}
				return existing, Errorf(ErrExists, "%s already exists", name)
			}
			return nil, lerr
		}
		return nil, err
	}

	return obj, nil
}

// CreateVerify reports whether obj carries the exclusive-create verifier
// encoded as its atime and mtime seconds.
func CreateVerify(ctx *OpContext, obj ObjectHandle, verfHi, verfLo uint32) bool {
	if err := RefreshAttrs(ctx, obj); err != nil {
		return false
	}

	attrs := obj.Attributes()
	return attrs.Mask.Has(AttrAtime) && attrs.Mask.Has(AttrMtime) &&
		attrs.Atime.Unix() == int64(verfHi) &&
		attrs.Mtime.Unix() == int64(verfLo)
}

// Link hard links obj under destDir as name. Directories cannot be
// hard linked. When the export's backend does not perform its own
// permission checks on link, the destination directory is pre-checked for
// add-file access here.
func Link(ctx *OpContext, obj ObjectHandle, destDir ObjectHandle, name string) error {
	if obj.Type() == Directory {
		return Errorf(ErrBadType, "cannot hard link a directory")
	}
	if destDir.Type() != Directory {
		return Errorf(ErrNotDirectory, "link target parent is %s", destDir.Type())
	}

	if !ctx.Options.LinkPermissionChecks {
		err := Access(ctx, destDir,
			ModeWriteOK|ModeExecOK|Ace4Execute|Ace4AddFile)
		if err != nil {
			return err
		}
	}

	// Rather than looking the name up first, let the backend report the
	// collision.
	if err := obj.Link(ctx, destDir, name); err != nil {
		return err
	}

	return RefreshAttrs(ctx, destDir)
}

// ReadLink returns obj's symlink target. Attributes are never refreshed on
// this path.
func ReadLink(ctx *OpContext, obj ObjectHandle) (string, error) {
	if obj.Type() != Symlink {
		return "", Errorf(ErrBadType, "readlink on %s", obj.Type())
	}
	return obj.Readlink(ctx)
}

// GetAttrsCB delivers obj's cached attributes to cb, resolving junctions.
//
// Attributes should have been refreshed before this call, usually via
// Access. If cb signals a junction crossing, the junction's target export
// is re-validated and its root is delivered through a second invocation
// with CBJunction state; a junction whose export is gone is reported as
// stale after cb is told about the problem.
func GetAttrsCB(ctx *OpContext, obj ObjectHandle, cb AttrCallback) error {
	return getAttrsCB(ctx, obj, cb, CBOriginal)
}

func getAttrsCB(ctx *OpContext, obj ObjectHandle, cb AttrCallback, state CBState) error {
	attrs := obj.Attributes()

	_, err := cb(obj, attrs, attrs.FileID, 0, state)
	if !IsCode(err, ErrCrossJunction) {
		return err
	}

	junction := junctionExport(obj)
	if junction == nil {
		logger.Error("A junction became stale")
		_, _ = cb(nil, nil, 0, 0, CBProblem)
		return Errorf(ErrStale, "junction target export is gone")
	}

	root, err := junction.Root(ctx)
	if err != nil {
		logger.Error("Failed to get root for %s, id=%d: %v",
			junction.Path(), junction.ID(), err)
		_, _ = cb(nil, nil, 0, 0, CBProblem)
		return err
	}
	defer root.Unref()

	return getAttrsCB(ctx, root, cb, CBJunction)
}

// junctionExport returns obj's junction target export if obj is a junction
// directory and the target export is still ready.
func junctionExport(obj ObjectHandle) Export {
	state := obj.DirState()
	if state == nil {
		return nil
	}
	return state.readyJunction()
}

// StatFS returns the live filesystem usage of the export obj belongs to.
func StatFS(ctx *OpContext, obj ObjectHandle) (DynamicInfo, error) {
	info, err := ctx.Export.DynamicInfo(ctx, obj)
	if err != nil {
		return DynamicInfo{}, err
	}

	logger.Debug(
		"statfs: total_bytes=%d free_bytes=%d avail_bytes=%d total_files=%d free_files=%d avail_files=%d",
		info.TotalBytes, info.FreeBytes, info.AvailBytes,
		info.TotalFiles, info.FreeFiles, info.AvailFiles)

	return info, nil
}
