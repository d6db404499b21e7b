package fsal

import "context"

// Credentials identify the caller of an operation.
type Credentials struct {
	// UID is the caller's effective user id
	UID uint32

	// GID is the caller's effective group id
	GID uint32

	// Groups lists supplementary group ids
	Groups []uint32
}

// IsPrivileged reports whether the caller bypasses permission checks.
func (c *Credentials) IsPrivileged() bool {
	return c.UID == 0
}

// MemberOf reports whether gid is the caller's effective group or one of
// the supplementary groups.
func (c *Credentials) MemberOf(gid uint32) bool {
	if c.GID == gid {
		return true
	}
	for _, g := range c.Groups {
		if g == gid {
			return true
		}
	}
	return false
}

// ExportOptions carry the per-export policy flags the helper consults.
type ExportOptions struct {
	// ForceCommit makes every write behave as if the caller requested a
	// stable write
	ForceCommit bool

	// CanSetTime allows explicit timestamp changes via setattr
	CanSetTime bool

	// LinkPermissionChecks means the backend performs its own permission
	// check on hard link creation; when false the helper pre-checks the
	// destination directory
	LinkPermissionChecks bool

	// ReopenMethod means handles support changing open flags in place;
	// when false the helper closes and reopens
	ReopenMethod bool
}

// OpContext carries everything one operation needs: cancellation context,
// caller credentials, the export being operated on with its policy options,
// and the shared open-FD budget.
//
// An OpContext is built once per protocol request and threaded through every
// helper and handle call of that request.
type OpContext struct {
	context.Context

	// Creds identify the caller
	Creds Credentials

	// Export is the export the operation runs against
	Export Export

	// Options are the export policy flags for this operation
	Options ExportOptions

	// FDBudget is the process-wide open file descriptor budget
	FDBudget *FDBudget
}

// NewOpContext builds an operation context for the given export, taking
// the export's default options.
func NewOpContext(ctx context.Context, creds Credentials, export Export, budget *FDBudget) *OpContext {
	opts := ExportOptions{}
	if export != nil {
		opts = export.Options()
	}
	return &OpContext{
		Context:  ctx,
		Creds:    creds,
		Export:   export,
		Options:  opts,
		FDBudget: budget,
	}
}
