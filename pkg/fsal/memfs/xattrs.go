package memfs

import (
	"sync"

	"github.com/marmos91/mdfs/pkg/fsal"
)

// xattrStore holds an object's extended attributes. Ids are assigned from
// a per-object counter and never reused, so a listing cookie survives
// concurrent removal.
type xattrStore struct {
	mu     sync.Mutex
	byID   map[uint32][]byte
	names  map[string]uint32
	nameOf map[uint32]string
	nextID uint32
}

func (x *xattrStore) initLocked() {
	if x.byID == nil {
		x.byID = make(map[uint32][]byte)
		x.names = make(map[string]uint32)
		x.nameOf = make(map[uint32]string)
		x.nextID = 1
	}
}

// ==================== Extended attributes ====================

func (h *Handle) ListXattrs(ctx *fsal.OpContext, cookie uint32, count int) ([]fsal.XattrEntry, bool, error) {
	if err := h.checkLive(); err != nil {
		return nil, false, err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	var entries []fsal.XattrEntry
	// Ids are dense enough to scan; the store is tiny by construction.
	for id := cookie; id < x.nextID; id++ {
		name, ok := x.nameOf[id]
		if !ok {
			continue
		}
		if count > 0 && len(entries) == count {
			return entries, false, nil
		}
		entries = append(entries, fsal.XattrEntry{ID: id, Name: name})
	}
	return entries, true, nil
}

func (h *Handle) GetXattrIDByName(ctx *fsal.OpContext, name string) (uint32, error) {
	if err := h.checkLive(); err != nil {
		return 0, err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	id, ok := x.names[name]
	if !ok {
		return 0, fsal.Errorf(fsal.ErrNoData, "no attribute named %s", name)
	}
	return id, nil
}

func (h *Handle) GetXattrByName(ctx *fsal.OpContext, name string) ([]byte, error) {
	id, err := h.GetXattrIDByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return h.GetXattrByID(ctx, id)
}

func (h *Handle) GetXattrByID(ctx *fsal.OpContext, id uint32) ([]byte, error) {
	if err := h.checkLive(); err != nil {
		return nil, err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	value, ok := x.byID[id]
	if !ok {
		return nil, fsal.Errorf(fsal.ErrNoData, "no attribute with id %d", id)
	}
	return value, nil
}

func (h *Handle) SetXattrByName(ctx *fsal.OpContext, name string, value []byte, create bool) error {
	if err := h.checkLive(); err != nil {
		return err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	id, exists := x.names[name]
	if exists && create {
		return fsal.Errorf(fsal.ErrExists, "attribute %s already exists", name)
	}
	if !exists {
		id = x.nextID
		x.nextID++
		x.names[name] = id
		x.nameOf[id] = name
	}
	x.byID[id] = value

	h.bumpChange()
	return nil
}

func (h *Handle) SetXattrByID(ctx *fsal.OpContext, id uint32, value []byte) error {
	if err := h.checkLive(); err != nil {
		return err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	if _, ok := x.byID[id]; !ok {
		return fsal.Errorf(fsal.ErrNoData, "no attribute with id %d", id)
	}
	x.byID[id] = value

	h.bumpChange()
	return nil
}

func (h *Handle) RemoveXattrByID(ctx *fsal.OpContext, id uint32) error {
	if err := h.checkLive(); err != nil {
		return err
	}

	x := &h.xattrs
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initLocked()

	name, ok := x.nameOf[id]
	if !ok {
		return fsal.Errorf(fsal.ErrNoData, "no attribute with id %d", id)
	}
	delete(x.byID, id)
	delete(x.nameOf, id)
	delete(x.names, name)

	h.bumpChange()
	return nil
}

func (h *Handle) RemoveXattrByName(ctx *fsal.OpContext, name string) error {
	id, err := h.GetXattrIDByName(ctx, name)
	if err != nil {
		return err
	}
	return h.RemoveXattrByID(ctx, id)
}
