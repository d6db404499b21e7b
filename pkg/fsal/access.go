package fsal

// AccessMask is a combined access probe: NFSv4 ACE permission bits in the
// low word plus POSIX mode probes shifted into the high byte. A single mask
// can carry both so TestAccess implementations evaluate whichever model the
// object's attributes call for (ACL present or mode bits only).
type AccessMask uint32

// NFSv4 ACE permission bits. Directory aliases share values with their file
// counterparts as in the protocol.
const (
	Ace4ReadData       AccessMask = 0x00000001
	Ace4ListDir        AccessMask = Ace4ReadData
	Ace4WriteData      AccessMask = 0x00000002
	Ace4AddFile        AccessMask = Ace4WriteData
	Ace4AppendData     AccessMask = 0x00000004
	Ace4AddSubdir      AccessMask = Ace4AppendData
	Ace4ReadNamedAttr  AccessMask = 0x00000008
	Ace4WriteNamedAttr AccessMask = 0x00000010
	Ace4Execute        AccessMask = 0x00000020
	Ace4DeleteChild    AccessMask = 0x00000040
	Ace4ReadAttr       AccessMask = 0x00000080
	Ace4WriteAttr      AccessMask = 0x00000100
	Ace4Delete         AccessMask = 0x00010000
	Ace4ReadACL        AccessMask = 0x00020000
	Ace4WriteACL       AccessMask = 0x00040000
	Ace4WriteOwner     AccessMask = 0x00080000
	Ace4Synchronize    AccessMask = 0x00100000
)

// POSIX mode probes, kept clear of the ACE4 bit range.
const (
	modeShift = 24

	ModeExecOK  AccessMask = 0o1 << modeShift
	ModeWriteOK AccessMask = 0o2 << modeShift
	ModeReadOK  AccessMask = 0o4 << modeShift
)

// ModeBits returns the POSIX probe portion as plain rwx bits (0-7).
func (m AccessMask) ModeBits() uint32 {
	return uint32(m>>modeShift) & 0o7
}

// Ace4Bits returns the ACE4 permission portion of the mask.
func (m AccessMask) Ace4Bits() AccessMask {
	return m &^ (ModeReadOK | ModeWriteOK | ModeExecOK)
}

// AceType says whether an ACE grants or denies its permission bits.
type AceType int

const (
	AceAllow AceType = iota
	AceDeny
)

// SpecialWho identifies the principal class an ACE applies to.
type SpecialWho int

const (
	// WhoNamed means the ACE names a specific uid or gid
	WhoNamed SpecialWho = iota

	// WhoOwner matches the object's owner (owner@)
	WhoOwner

	// WhoGroup matches the object's owning group (group@)
	WhoGroup

	// WhoEveryone matches every caller (everyone@)
	WhoEveryone
)

// ACE is one NFSv4 access control entry.
type ACE struct {
	// Type grants or denies
	Type AceType

	// Perm is the set of ACE4 permission bits this entry covers
	Perm AccessMask

	// Special selects owner@/group@/everyone@ or a named principal
	Special SpecialWho

	// ID is the uid or gid for WhoNamed entries
	ID uint32

	// Group marks a WhoNamed ID as a group rather than a user
	Group bool
}

// Matches reports whether the ACE applies to the given credentials against
// an object owned by owner/group.
func (a *ACE) Matches(creds *Credentials, owner, group uint32) bool {
	switch a.Special {
	case WhoOwner:
		return creds.UID == owner
	case WhoGroup:
		return creds.MemberOf(group)
	case WhoEveryone:
		return true
	default:
		if a.Group {
			return creds.MemberOf(a.ID)
		}
		return creds.UID == a.ID
	}
}

// ACL is an ordered list of access control entries. Evaluation walks the
// list first to last; the first entry covering a requested bit decides it.
type ACL struct {
	ACEs []ACE
}

// Evaluate walks the ACL for the requested ACE4 bits. It returns the bits
// that were explicitly allowed and the bits that were explicitly denied;
// bits in neither set were not covered by any entry.
func (acl *ACL) Evaluate(creds *Credentials, owner, group uint32, requested AccessMask) (allowed, denied AccessMask) {
	remaining := requested
	for i := range acl.ACEs {
		if remaining == 0 {
			break
		}
		ace := &acl.ACEs[i]
		if !ace.Matches(creds, owner, group) {
			continue
		}
		hit := ace.Perm & remaining
		if hit == 0 {
			continue
		}
		if ace.Type == AceAllow {
			allowed |= hit
		} else {
			denied |= hit
		}
		remaining &^= hit
	}
	return allowed, denied
}
