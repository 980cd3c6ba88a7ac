package tfs

import (
	"fmt"

	"github.com/boljen/go-bitmap"
)

// allocMap is a first-fit free/taken bitmap guarded by a dualLock, the
// shape shared by the inode table's, the data-block pool's, and the
// open-file table's allocation maps (§3 "Allocation map"). It is
// grounded on dargueta/disko's Allocator
// (drivers/common/allocatormap.go), which wraps the same
// github.com/boljen/go-bitmap type for an identical first-fit
// scan-and-flip.
type allocMap struct {
	entityLock dualLock
	bits       bitmap.Bitmap
	total      int
}

func newAllocMap(total int) *allocMap {
	return &allocMap{
		bits:  bitmap.New(total),
		total: total,
	}
}

// allocUnderLock scans for the first Free slot and flips it to Taken,
// holding the map's mutex for the whole scan (§4.C's open question 5:
// holding the lock across the scan, rather than re-acquiring it per
// iteration, trades a little contention for never re-examining a slot
// another creator just raced us to).
func (m *allocMap) allocUnderLock(delay *delayInjector, op string) (int32, error) {
	m.entityLock.Lock(Mutex)
	defer m.entityLock.Unlock(Mutex)

	delay.touchBitmapScan(m.total)
	for i := 0; i < m.total; i++ {
		if !m.bits.Get(i) {
			m.bits.Set(i, true)
			return int32(i), nil
		}
	}
	return -1, newError(op, KindExhausted, "allocation map full")
}

func (m *allocMap) freeUnderLock(index int32, op string) error {
	m.entityLock.Lock(Mutex)
	defer m.entityLock.Unlock(Mutex)

	if index < 0 || int(index) >= m.total {
		return newError(op, KindInvalidInput, fmt.Sprintf("index %d out of range [0, %d)", index, m.total))
	}
	m.bits.Set(int(index), false)
	return nil
}

func (m *allocMap) isTaken(index int32) bool {
	if index < 0 || int(index) >= m.total {
		return false
	}
	return m.bits.Get(int(index))
}
