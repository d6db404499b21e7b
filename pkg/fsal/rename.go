package fsal

import (
	"github.com/marmos91/mdfs/internal/logger"
)

// sameObject reports whether two handles refer to the same backend object.
func sameObject(a, b ObjectHandle) bool {
	if a == b {
		return true
	}
	return string(a.Key()) == string(b.Key())
}

// Rename moves srcDir/oldName to destDir/newName.
//
// "." and ".." are rejected as either name. The source must exist; renaming
// an export root or a junction directory is refused. When the destination
// resolves to the very same object as the source, the rename is a no-op
// success per POSIX. After a successful rename over an existing
// destination, the displaced object's attributes are refreshed; staleness
// from that refresh propagates, other refresh errors only when they are
// real failures of the refresh itself.
func Rename(ctx *OpContext, srcDir ObjectHandle, oldName string, destDir ObjectHandle, newName string) error {
	if srcDir.Type() != Directory || destDir.Type() != Directory {
		return Errorf(ErrNotDirectory, "rename between non-directories")
	}

	if oldName == "." || oldName == ".." || newName == "." || newName == ".." {
		return Errorf(ErrInvalid, "rename involving . or ..")
	}

	src, err := Lookup(ctx, srcDir, oldName)
	if err != nil {
		logger.Debug("Rename %q -> %q: source doesn't exist", oldName, newName)
		return err
	}
	defer src.Unref()

	// Never displace an export mount point.
	if src.Type() == Directory {
		if state := src.DirState(); state != nil && state.Anchored() {
			logger.Error("Attempt to rename export %s", oldName)
			return Errorf(ErrNotEmpty, "%s is an export mount point", oldName)
		}
	}

	dest, err := Lookup(ctx, destDir, newName)
	if err == nil {
		logger.Debug("Rename %q -> %q: destination already exists", oldName, newName)
		defer dest.Unref()

		if sameObject(src, dest) {
			// Source and destination are the same object, possibly
			// hard links of each other. POSIX says do nothing and
			// report success.
			logger.Debug("Rename %q -> %q: same object, skipping", oldName, newName)
			return nil
		}
	} else if !IsCode(err, ErrNotFound) {
		// Anything other than not-found is a real failure.
		return err
	} else {
		dest = nil
	}

	if err := src.Rename(ctx, srcDir, oldName, destDir, newName); err != nil {
		logger.Debug("Backend rename failed: %v", err)
		return err
	}

	if dest != nil {
		if err := RefreshAttrs(ctx, dest); err != nil && !IsStale(err) {
			return err
		}
	}

	return nil
}

// Remove unlinks name from parent.
//
// Export roots and junction directories are refused. An open target is
// closed first, best effort, since unlinking an open file triggers silly
// rename semantics on some backends; a failed pre-close is logged and the
// removal proceeds. Parent and target attributes are refreshed afterwards.
func Remove(ctx *OpContext, parent ObjectHandle, name string) error {
	if parent.Type() != Directory {
		return Errorf(ErrNotDirectory, "remove from %s", parent.Type())
	}

	obj, err := Lookup(ctx, parent, name)
	if err != nil {
		logger.Debug("Remove: lookup %q failed: %v", name, err)
		return err
	}
	defer obj.Unref()

	// Never remove an export mount point.
	if obj.Type() == Directory {
		if state := obj.DirState(); state != nil && state.Anchored() {
			logger.Error("Attempt to remove export %s", name)
			return Errorf(ErrNotEmpty, "%s is an export mount point", name)
		}
	}

	logger.Debug("Remove %q", name)

	if IsOpen(obj) {
		if cerr := Close(ctx, obj); cerr != nil {
			// Non-fatal: some backends need no pre-close.
			logger.Warn("Error closing %s before unlink: %v", name, cerr)
		}
	}

	if err := parent.Unlink(ctx, name, obj); err != nil {
		logger.Debug("Unlink %q failed: %v", name, err)
		return err
	}

	if err := RefreshAttrs(ctx, parent); err != nil {
		logger.Debug("Parent attribute refresh after remove failed: %v", err)
		return err
	}

	// The target going stale here just means the last link went away.
	if err := RefreshAttrs(ctx, obj); err != nil && !IsStale(err) {
		logger.Debug("Target attribute refresh after remove failed: %v", err)
		return err
	}

	return nil
}
