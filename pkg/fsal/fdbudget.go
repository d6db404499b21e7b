package fsal

import "sync/atomic"

// FDBudget is the process-wide ceiling on concurrently open regular file
// handles. One instance is shared by the helper layer, which performs the
// counter transitions around real opens and closes, and the cache layer,
// which consults availability to apply backpressure before contacting a
// backend.
//
// The budget never blocks. Exhaustion is surfaced to callers as a retryable
// delay status; retry policy belongs to the protocol layer.
type FDBudget struct {
	limit int64
	open  atomic.Int64
}

// NewFDBudget creates a budget with the given ceiling. A non-positive limit
// means unlimited. A nil *FDBudget behaves as unlimited and untracked.
func NewFDBudget(limit int64) *FDBudget {
	return &FDBudget{limit: limit}
}

// Acquire records one closed-to-open transition.
func (b *FDBudget) Acquire() {
	if b == nil {
		return
	}
	b.open.Add(1)
}

// Release records one real close. Calls must pair with Acquire; closing an
// already-closed handle must not release.
func (b *FDBudget) Release() {
	if b == nil {
		return
	}
	b.open.Add(-1)
}

// Available reports whether the counter is below the ceiling.
func (b *FDBudget) Available() bool {
	return b == nil || b.limit <= 0 || b.open.Load() < b.limit
}

// InUse returns the current open count.
func (b *FDBudget) InUse() int64 {
	if b == nil {
		return 0
	}
	return b.open.Load()
}

// Limit returns the configured ceiling.
func (b *FDBudget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}
