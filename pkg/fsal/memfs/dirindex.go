package memfs

import (
	"sync"

	"github.com/google/btree"
)

// firstSlot is the slot assigned to the first entry ever inserted into a
// directory. Cookies below it are reserved for the enumeration start and
// the "." / ".." positions, which are never materialized in the index.
const firstSlot = 3

const btreeDegree = 8

// dirent is one directory entry. The same dirent value lives in both
// index trees, so name and slot views always agree.
type dirent struct {
	name  string
	slot  uint64
	child *Handle
}

func byName(a, b *dirent) bool { return a.name < b.name }
func bySlot(a, b *dirent) bool { return a.slot < b.slot }

// dirPayload is the directory part of a handle: the same entries indexed
// by name for lookup and by insertion slot for enumeration. Slots are
// handed out from a strictly increasing counter and never reused, so a
// cookie taken from any enumeration stays a valid resume point across
// arbitrary concurrent mutation.
type dirPayload struct {
	mu sync.RWMutex

	names    *btree.BTreeG[*dirent]
	slots    *btree.BTreeG[*dirent]
	nextSlot uint64
}

func newDirPayload() *dirPayload {
	return &dirPayload{
		names:    btree.NewG(btreeDegree, byName),
		slots:    btree.NewG(btreeDegree, bySlot),
		nextSlot: firstSlot,
	}
}

// get returns the entry for name, or nil.
func (d *dirPayload) get(name string) *dirent {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ent, ok := d.names.Get(&dirent{name: name})
	if !ok {
		return nil
	}
	return ent
}

// insert adds a new entry under name. On a name collision neither tree is
// touched and ok is false. The entry does not take a reference; the caller
// transfers one.
func (d *dirPayload) insert(name string, child *Handle) (ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.names.Get(&dirent{name: name}); exists {
		return false
	}

	ent := &dirent{name: name, slot: d.nextSlot, child: child}
	d.nextSlot++
	d.names.ReplaceOrInsert(ent)
	d.slots.ReplaceOrInsert(ent)
	return true
}

// remove detaches the entry for name from both trees and returns it. The
// entry's reference on the child transfers to the caller.
func (d *dirPayload) remove(name string) *dirent {
	d.mu.Lock()
	defer d.mu.Unlock()

	ent, ok := d.names.Delete(&dirent{name: name})
	if !ok {
		return nil
	}
	d.slots.Delete(ent)
	return ent
}

// count returns the number of entries.
func (d *dirPayload) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names.Len()
}

// ascend visits entries with slot >= whence in slot order under the read
// lock, stopping when fn returns false. The visit sees a consistent
// snapshot; mutation from inside fn deadlocks.
func (d *dirPayload) ascend(whence uint64, fn func(ent *dirent) bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.slots.AscendGreaterOrEqual(&dirent{slot: whence}, func(ent *dirent) bool {
		return fn(ent)
	})
}
