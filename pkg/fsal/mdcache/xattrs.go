package mdcache

import (
	"github.com/marmos91/mdfs/pkg/fsal"
)

// Extended attribute operations are pure pass-through: no caching, exactly
// one forwarded call per caller call, status returned unchanged. Only the
// killed guard sits in front, as for every other operation.

func (e *Entry) ListXattrs(ctx *fsal.OpContext, cookie uint32, count int) ([]fsal.XattrEntry, bool, error) {
	if e.killed.Load() {
		return nil, false, errKilled()
	}
	return e.sub.ListXattrs(ctx, cookie, count)
}

func (e *Entry) GetXattrIDByName(ctx *fsal.OpContext, name string) (uint32, error) {
	if e.killed.Load() {
		return 0, errKilled()
	}
	return e.sub.GetXattrIDByName(ctx, name)
}

func (e *Entry) GetXattrByName(ctx *fsal.OpContext, name string) ([]byte, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.sub.GetXattrByName(ctx, name)
}

func (e *Entry) GetXattrByID(ctx *fsal.OpContext, id uint32) ([]byte, error) {
	if e.killed.Load() {
		return nil, errKilled()
	}
	return e.sub.GetXattrByID(ctx, id)
}

func (e *Entry) SetXattrByName(ctx *fsal.OpContext, name string, value []byte, create bool) error {
	if e.killed.Load() {
		return errKilled()
	}
	return e.sub.SetXattrByName(ctx, name, value, create)
}

func (e *Entry) SetXattrByID(ctx *fsal.OpContext, id uint32, value []byte) error {
	if e.killed.Load() {
		return errKilled()
	}
	return e.sub.SetXattrByID(ctx, id, value)
}

func (e *Entry) RemoveXattrByID(ctx *fsal.OpContext, id uint32) error {
	if e.killed.Load() {
		return errKilled()
	}
	return e.sub.RemoveXattrByID(ctx, id)
}

func (e *Entry) RemoveXattrByName(ctx *fsal.OpContext, name string) error {
	if e.killed.Load() {
		return errKilled()
	}
	return e.sub.RemoveXattrByName(ctx, name)
}
