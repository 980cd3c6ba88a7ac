package tfs

import "fmt"

// openFileEntry is one open-file table slot: the "open_file[i]"
// lockable object of §5.
type openFileEntry struct {
	lock dualLock

	allocated bool
	inumber   int32
	offset    int64
}

// OpenFileTable is the fixed-size open-file table of §4.E, grounded on
// fuse.portableHandleMap's first-fit free/taken scan over a fixed
// array, adapted from a map-backed handle registry to the flat-array,
// sentinel-handle shape the spec calls for.
type OpenFileTable struct {
	alloc   *allocMap
	entries [MaxOpenFiles]*openFileEntry
	delay   *delayInjector
}

func newOpenFileTable(delay *delayInjector) *OpenFileTable {
	t := &OpenFileTable{
		alloc: newAllocMap(MaxOpenFiles),
		delay: delay,
	}
	for i := range t.entries {
		t.entries[i] = &openFileEntry{}
	}
	return t
}

// add performs a first-fit scan with NO internal locking: this is a
// known race in the original (§4.E), preserved here behind the
// contract that the caller already holds the table's lock in Mutex
// mode (see FS.allocHandle, which holds lock() in Mutex mode around
// add, matching §9 open question 4).
func (t *OpenFileTable) add(inumber int32, offset int64) (int32, error) {
	for i := 0; i < MaxOpenFiles; i++ {
		if !t.alloc.bits.Get(i) {
			t.alloc.bits.Set(i, true)
			e := t.entries[i]
			e.allocated = true
			e.inumber = inumber
			e.offset = offset
			return int32(i), nil
		}
	}
	return NoHandle, newError("openfile.add", KindExhausted, "open-file table full")
}

// remove frees the entry under the table mutex. Fails if handle is
// invalid or already free.
func (t *OpenFileTable) remove(handle int32) error {
	t.alloc.entityLock.Lock(Mutex)
	defer t.alloc.entityLock.Unlock(Mutex)

	if handle < 0 || int(handle) >= MaxOpenFiles {
		return newError("openfile.remove", KindInvalidInput, fmt.Sprintf("handle %d out of range", handle))
	}
	if !t.alloc.bits.Get(int(handle)) {
		return newError("openfile.remove", KindNotFound, "handle already free")
	}
	t.alloc.bits.Set(int(handle), false)
	t.entries[handle].allocated = false
	return nil
}

// get returns the entry for handle with no locking: the caller must
// take the entry's own lock for field access.
func (t *OpenFileTable) get(handle int32) (*openFileEntry, error) {
	if handle < 0 || int(handle) >= MaxOpenFiles {
		return nil, newError("openfile.get", KindInvalidInput, fmt.Sprintf("handle %d out of range", handle))
	}
	return t.entries[handle], nil
}

// lock exposes the table's entityLock as the "file_map" lock of §5's
// inventory: FS.allocHandle holds it in Mutex mode around add,
// FS.fetchEntry in Read mode, and the root directory uses its mutex as
// its state lock.
func (t *OpenFileTable) lock() *dualLock {
	return &t.alloc.entityLock
}
