package tfs

// This file is the file layout engine of §4.G: pure arithmetic mapping
// a byte offset to (block slot, intra-block offset), plus the encoding
// of the dense int32 array an indirect block stores.

// inDirectRegion reports whether byte offset off is addressed by one
// of the 10 direct block slots.
func inDirectRegion(off int64) bool {
	return off < MaxBytesDirect
}

// directSlot returns the direct-block-array index holding byte offset
// off, valid only when inDirectRegion(off).
func directSlot(off int64) int {
	return int(off / BlockSize)
}

// indirectSlot returns the index into the indirect block's dense
// reference array holding byte offset off, valid only when
// !inDirectRegion(off).
func indirectSlot(off int64) int {
	return int((off - MaxBytesDirect) / BlockSize)
}

// intraBlockOffset returns the byte offset within whichever block
// holds off.
func intraBlockOffset(off int64) int {
	return int(off % BlockSize)
}

// readIndirectRef and writeIndirectRef access the idx'th 4-byte block
// reference packed into an indirect block's contents.
func readIndirectRef(block []byte, idx int) int32 {
	return getInt32(block[idx*blockRefSize:])
}

func writeIndirectRef(block []byte, idx int, ref int32) {
	putInt32(block[idx*blockRefSize:], ref)
}
