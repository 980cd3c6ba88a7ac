package tfs

import "github.com/noxer/bytewriter"

// This file is the read/write engine of §4.H: range splitting across
// the direct/indirect boundary, lazy block allocation on append, and
// the memory copies themselves.

// readAt reads up to len(dest) bytes starting at entry's current
// offset, returning the number of bytes actually copied. It does not
// acquire any locks; callers (FS.Read) hold inode[i] in Read mode and
// the entry's own mutex for the duration.
func readAt(blocks *Pool, inode *inodeEntry, entry *openFileEntry, dest []byte) (int, error) {
	if len(dest) == 0 {
		return 0, newError("read", KindInvalidInput, "destination buffer is empty")
	}

	remaining := inode.size - entry.offset
	if remaining <= 0 {
		return 0, nil
	}
	toRead := int64(len(dest))
	if toRead > remaining {
		toRead = remaining
	}

	off := entry.offset
	end := off + toRead
	var total int

	switch {
	case inDirectRegion(end - 1):
		n, err := directRead(blocks, inode, off, dest[:toRead])
		total += n
		if err != nil {
			return total, err
		}
	case !inDirectRegion(off):
		n, err := indirectRead(blocks, inode, off, dest[:toRead])
		total += n
		if err != nil {
			return total, err
		}
	default:
		directBytes := MaxBytesDirect - off
		n, err := directRead(blocks, inode, off, dest[:directBytes])
		total += n
		if err != nil {
			return total, err
		}
		n, err = indirectRead(blocks, inode, off+directBytes, dest[directBytes:toRead])
		total += n
		if err != nil {
			return total, err
		}
	}

	entry.offset += int64(total)
	return total, nil
}

func directRead(blocks *Pool, inode *inodeEntry, off int64, dest []byte) (int, error) {
	read := 0
	for read < len(dest) {
		slot := directSlot(off)
		if slot >= MaxDirectBlocks {
			break
		}
		blockIdx := inode.blockRefs[slot]
		if blockIdx == noBlock {
			break
		}
		block := blocks.Get(blockIdx)
		intra := intraBlockOffset(off)
		count := BlockSize - intra
		if remaining := len(dest) - read; count > remaining {
			count = remaining
		}
		copy(dest[read:read+count], block[intra:intra+count])
		off += int64(count)
		read += count
	}
	return read, nil
}

func indirectRead(blocks *Pool, inode *inodeEntry, off int64, dest []byte) (int, error) {
	indirectIdx := inode.blockRefs[directBlockRefs]
	if indirectIdx == noBlock {
		return 0, nil
	}
	indirectBlock := blocks.Get(indirectIdx)

	read := 0
	for read < len(dest) {
		slot := indirectSlot(off)
		if slot >= IndirectRefs {
			break
		}
		blockIdx := readIndirectRef(indirectBlock, slot)
		if blockIdx == noBlock {
			break
		}
		block := blocks.Get(blockIdx)
		intra := intraBlockOffset(off)
		count := BlockSize - intra
		if remaining := len(dest) - read; count > remaining {
			count = remaining
		}
		copy(dest[read:read+count], block[intra:intra+count])
		off += int64(count)
		read += count
	}
	return read, nil
}

// writeAt appends up to len(src) bytes to inode, clamped to MaxBytes,
// and advances both inode.size and entry.offset. Like readAt, it holds
// no locks of its own.
func writeAt(blocks *Pool, inode *inodeEntry, entry *openFileEntry, src []byte) (int, error) {
	toWrite := len(src)
	if toWrite == 0 {
		return 0, newError("write", KindInvalidInput, "nothing to write")
	}
	if inode.size >= MaxBytes {
		return 0, nil
	}
	if int64(toWrite) > MaxBytes-inode.size {
		toWrite = int(MaxBytes - inode.size)
	}
	src = src[:toWrite]

	postSize := inode.size + int64(toWrite)
	var written int
	var err error

	switch {
	case inDirectRegion(postSize - 1):
		written, err = directWrite(blocks, inode, src)
	case !inDirectRegion(inode.size):
		if err := ensureIndirectBlock(blocks, inode); err != nil {
			return 0, err
		}
		written, err = indirectWrite(blocks, inode, src)
	default:
		directSize := MaxBytesDirect - inode.size
		n, derr := directWrite(blocks, inode, src[:directSize])
		written += n
		if derr != nil || n < int(directSize) {
			entry.offset = inode.size
			return written, derr
		}
		if err := ensureIndirectBlock(blocks, inode); err != nil {
			entry.offset = inode.size
			return written, err
		}
		n, ierr := indirectWrite(blocks, inode, src[directSize:])
		written += n
		err = ierr
	}

	entry.offset = inode.size
	return written, err
}

func ensureIndirectBlock(blocks *Pool, inode *inodeEntry) error {
	if inode.blockRefs[directBlockRefs] != noBlock {
		return nil
	}
	idx, err := blocks.Alloc()
	if err != nil {
		return err
	}
	blocks.zero(idx)
	inode.blockRefs[directBlockRefs] = idx
	return nil
}

// directWrite copies the bytes of src into inode's direct
// blocks, allocating a new block whenever inode.size lands on a block
// boundary, and registering it in the next direct slot.
func directWrite(blocks *Pool, inode *inodeEntry, src []byte) (int, error) {
	written := 0
	for written < len(src) {
		slot := directSlot(inode.size)
		if slot >= MaxDirectBlocks {
			break
		}
		if inode.size%BlockSize == 0 {
			idx, err := blocks.Alloc()
			if err != nil {
				return written, err
			}
			blocks.zero(idx)
			inode.blockRefs[slot] = idx
			inode.workingBlock = idx
		}

		blockIdx := inode.blockRefs[slot]
		block := blocks.Get(blockIdx)
		intra := intraBlockOffset(inode.size)
		count := BlockSize - intra
		if remaining := len(src) - written; count > remaining {
			count = remaining
		}

		w := bytewriter.New(block[intra : intra+count])
		n, err := w.Write(src[written : written+count])
		if err != nil {
			return written, newError("write.direct", KindLockFailure, err.Error())
		}

		inode.size += int64(n)
		written += n
	}
	return written, nil
}

// indirectWrite is directWrite's counterpart for the indirect region:
// newly allocated blocks are recorded in the indirect block's dense
// reference array rather than in inode.blockRefs.
func indirectWrite(blocks *Pool, inode *inodeEntry, src []byte) (int, error) {
	if remaining := MaxBytes - inode.size; int64(len(src)) > remaining {
		src = src[:remaining]
	}

	indirectIdx := inode.blockRefs[directBlockRefs]

	written := 0
	for written < len(src) {
		slot := indirectSlot(inode.size)
		if slot >= IndirectRefs {
			break
		}
		indirectBlock := blocks.Get(indirectIdx)
		if inode.size%BlockSize == 0 {
			idx, err := blocks.Alloc()
			if err != nil {
				return written, err
			}
			blocks.zero(idx)
			writeIndirectRef(indirectBlock, slot, idx)
			inode.workingBlock = idx
			indirectBlock = blocks.Get(indirectIdx)
		}

		blockIdx := readIndirectRef(indirectBlock, slot)
		block := blocks.Get(blockIdx)
		intra := intraBlockOffset(inode.size)
		count := BlockSize - intra
		if remaining := len(src) - written; count > remaining {
			count = remaining
		}

		w := bytewriter.New(block[intra : intra+count])
		n, err := w.Write(src[written : written+count])
		if err != nil {
			return written, newError("write.indirect", KindLockFailure, err.Error())
		}

		inode.size += int64(n)
		written += n
	}
	return written, nil
}
