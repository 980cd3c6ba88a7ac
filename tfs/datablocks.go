package tfs

import (
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// Pool is the data-block pool of §4.B: a contiguous byte region of
// BlockSize*DataBlocks bytes plus a free bitmap. Blocks are referenced
// by index. The "data_blocks" lock in §5's inventory is the map's
// entityLock, acquired in Mutex mode only — unlike the inode and
// open-file tables, the pool has no reader-writer side, since nothing
// ever needs shared read access to the allocation state itself (block
// *contents* are deliberately unsynchronized per §5's shared-resource
// policy).
type Pool struct {
	alloc *allocMap
	data  []byte
	delay *delayInjector
}

func newPool(delay *delayInjector) *Pool {
	return &Pool{
		alloc: newAllocMap(DataBlocks),
		data:  make([]byte, BlockSize*DataBlocks),
		delay: delay,
	}
}

// Alloc performs a first-fit scan under the pool's mutex, flipping the
// first Free slot to Taken.
func (p *Pool) Alloc() (int32, error) {
	return p.alloc.allocUnderLock(p.delay, "pool.alloc")
}

// Free sets the slot to Free. Fails if index is out of range.
func (p *Pool) Free(index int32) error {
	return p.alloc.freeUnderLock(index, "pool.free")
}

// Get returns a view into the shared block region for index. The view
// is unsynchronized: callers must hold an appropriate inode or
// directory lock before reading or writing through it.
func (p *Pool) Get(index int32) []byte {
	p.delay.touch(touchBlockFetch)
	start := int(index) * BlockSize
	return p.data[start : start+BlockSize]
}

// Stream wraps a block's content as a seekable byte stream, for callers
// that want io.ReadWriteSeeker semantics instead of raw slice
// indexing. Nothing in this module calls it; the copy-out helper reads
// through FS.Read.
func (p *Pool) Stream(index int32) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(p.Get(index))
}

// zero clears a block's contents. Used when a block is freshly
// allocated for a direct or indirect slot (§4.H direct/indirect
// sub-procedures).
func (p *Pool) zero(index int32) {
	b := p.Get(index)
	for i := range b {
		b[i] = 0
	}
}

func (p *Pool) isTaken(index int32) bool {
	return p.alloc.isTaken(index)
}
