package memfs

import (
	"github.com/marmos91/mdfs/pkg/fsal"
)

// TestAccess evaluates the requested access mask against the object's
// permissions under the caller's credentials. When the object carries an
// ACL and the request names NFSv4 permission bits, the ACL decides;
// otherwise classic mode-bit evaluation applies.
func (h *Handle) TestAccess(ctx *fsal.OpContext, mask fsal.AccessMask) error {
	if err := h.checkLive(); err != nil {
		return err
	}

	if h.attrs.ACL != nil && mask.Ace4Bits() != 0 {
		return h.testACLAccess(&ctx.Creds, mask)
	}
	return h.testModeAccess(&ctx.Creds, mask)
}

// testACLAccess grants the request only when every requested bit is
// allowed and none is denied. Bits no ACE covers default to denied.
func (h *Handle) testACLAccess(creds *fsal.Credentials, mask fsal.AccessMask) error {
	if creds.IsPrivileged() {
		return nil
	}

	requested := mask.Ace4Bits()

	// The owner may always read and write its own ACL and attributes.
	if creds.UID == h.attrs.Owner {
		granted := fsal.Ace4ReadACL | fsal.Ace4WriteACL | fsal.Ace4ReadAttr | fsal.Ace4WriteAttr
		requested &^= granted
		if requested == 0 {
			return nil
		}
	}

	allowed, denied := h.attrs.ACL.Evaluate(creds, h.attrs.Owner, h.attrs.Group, requested)
	if denied != 0 || allowed != requested {
		return fsal.Errorf(fsal.ErrAccessDenied, "access denied by ACL")
	}
	return nil
}

// testModeAccess evaluates rwx mode bits, choosing the owner, group or
// other triplet by the caller's credentials.
func (h *Handle) testModeAccess(creds *fsal.Credentials, mask fsal.AccessMask) error {
	want := mask.ModeBits()
	if want == 0 {
		want = rwxFromAce4(mask.Ace4Bits())
	}
	if want == 0 {
		return nil
	}

	if creds.IsPrivileged() {
		// Root bypasses read and write checks but still needs at least
		// one execute bit somewhere for execute access.
		if want&0o1 == 0 || h.attrs.Mode&modeExecAnyBits != 0 {
			return nil
		}
		return fsal.Errorf(fsal.ErrAccessDenied, "execute access denied")
	}

	var have uint32
	switch {
	case creds.UID == h.attrs.Owner:
		have = (h.attrs.Mode >> 6) & 0o7
	case creds.GID == h.attrs.Group || creds.MemberOf(h.attrs.Group):
		have = (h.attrs.Mode >> 3) & 0o7
	default:
		have = h.attrs.Mode & 0o7
	}

	if have&want != want {
		return fsal.Errorf(fsal.ErrAccessDenied, "access denied")
	}
	return nil
}

const modeExecAnyBits = 0o111

// rwxFromAce4 maps NFSv4 permission bits onto the rwx triplet for
// mode-only objects.
func rwxFromAce4(bits fsal.AccessMask) uint32 {
	var want uint32
	if bits&(fsal.Ace4ReadData|fsal.Ace4ReadAttr|fsal.Ace4ReadACL) != 0 {
		want |= 0o4
	}
	if bits&(fsal.Ace4WriteData|fsal.Ace4AppendData|fsal.Ace4AddFile|fsal.Ace4AddSubdir|fsal.Ace4DeleteChild) != 0 {
		want |= 0o2
	}
	if bits&fsal.Ace4Execute != 0 {
		want |= 0o1
	}
	return want
}
