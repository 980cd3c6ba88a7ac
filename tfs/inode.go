package tfs

import "fmt"

// inodeEntry is one inode table slot: the "inode[i]" lockable object of
// §5. blockRefs holds the 10 direct slots followed by the single
// indirect-block slot (index directBlockRefs); a value of noBlock means
// unassigned. workingBlock records the most recently allocated block,
// the append path's shortcut to avoid re-walking the whole layout
// (§3 "Inode").
type inodeEntry struct {
	lock dualLock

	allocated    bool
	kind         Kind
	size         int64
	blockRefs    [MaxDirectBlocks + 1]int32
	workingBlock int32
}

const directBlockRefs = MaxDirectBlocks

// InodeTable is the fixed-size inode table of §4.C.
type InodeTable struct {
	alloc   *allocMap
	entries [InodeTableSize]*inodeEntry
	blocks  *Pool
	delay   *delayInjector
	log     *logger
}

func newInodeTable(blocks *Pool, delay *delayInjector, log *logger) *InodeTable {
	t := &InodeTable{
		alloc:  newAllocMap(InodeTableSize),
		blocks: blocks,
		delay:  delay,
		log:    log,
	}
	for i := range t.entries {
		t.entries[i] = &inodeEntry{}
	}
	return t
}

// create performs a first-fit scan under the table's mutex. A
// Directory also gets one data block, filled with empty entries, and
// size set to BlockSize. A File gets size 0 and every block slot
// cleared.
func (t *InodeTable) create(kind Kind) (int32, error) {
	inumber, err := t.alloc.allocUnderLock(t.delay, "inode.create")
	if err != nil {
		return NoInumber, err
	}

	e := t.entries[inumber]
	e.lock.Lock(Mutex)
	defer e.lock.Unlock(Mutex)

	e.allocated = true
	e.kind = kind
	e.workingBlock = noBlock
	for i := range e.blockRefs {
		e.blockRefs[i] = noBlock
	}

	if kind == KindDirectory {
		blockIdx, err := t.blocks.Alloc()
		if err != nil {
			rel := &releaser{}
			rel.add(t.alloc.freeUnderLock(inumber, "inode.create"))
			rel.report(t.log, "inode.create: rollback inode slot after block-alloc failure")
			e.allocated = false
			return NoInumber, err
		}
		t.blocks.zero(blockIdx)
		initDirBlock(t.blocks.Get(blockIdx))
		e.blockRefs[0] = blockIdx
		e.workingBlock = blockIdx
		e.size = BlockSize
	} else {
		e.size = 0
	}
	return inumber, nil
}

// delete marks the slot Free and, if the inode's size is greater than
// zero, frees its working data block. It does not walk the rest of the
// direct and indirect references: see SPEC_FULL.md §4 and §9 open
// question 2. This is a known, preserved gap, not an oversight to fix
// here.
func (t *InodeTable) delete(inumber int32) error {
	t.delay.touch(touchInodeDelete)
	t.delay.touch(touchInodeDelete)

	e, err := t.get(inumber)
	if err != nil {
		return err
	}

	t.alloc.entityLock.Lock(Mutex)
	defer t.alloc.entityLock.Unlock(Mutex)

	e.lock.Lock(Mutex)
	defer e.lock.Unlock(Mutex)

	if !e.allocated {
		return newError("inode.delete", KindNotFound, "slot already free")
	}
	if e.size > 0 && e.workingBlock != noBlock {
		t.blocks.Free(e.workingBlock)
	}
	t.alloc.bits.Set(int(inumber), false)
	e.allocated = false
	return nil
}

// get returns the entry for inumber with no locking: the caller must
// take the entry's own lock before touching its fields.
func (t *InodeTable) get(inumber int32) (*inodeEntry, error) {
	if inumber < 0 || int(inumber) >= InodeTableSize {
		return nil, newError("inode.get", KindInvalidInput, fmt.Sprintf("inumber %d out of range", inumber))
	}
	t.delay.touch(touchInodeFetch)
	return t.entries[inumber], nil
}
