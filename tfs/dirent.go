package tfs

import "fmt"

// dirEntry is one slot of a directory block: a fixed-width name buffer
// (NUL-padded, like dargueta/disko's fat/unixv1 dirent layouts) and an
// inumber, or NoInumber meaning the slot is empty.
type dirEntry struct {
	name    [MaxFileName]byte
	inumber int32
}

func (e dirEntry) nameString() string {
	n := 0
	for n < len(e.name) && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

func (e *dirEntry) setName(name string) error {
	if len(name) == 0 || len(name) >= MaxFileName {
		return newError("dirent.setName", KindInvalidInput, fmt.Sprintf("name %q empty or too long", name))
	}
	var buf [MaxFileName]byte
	copy(buf[:], name)
	e.name = buf
	return nil
}

// initDirBlock fills a freshly allocated directory block with empty
// entries, used by InodeTable.create for a new Directory inode.
func initDirBlock(block []byte) {
	for i := 0; i < MaxDirEntries; i++ {
		off := i * maxDirEntrySize
		var e dirEntry
		e.inumber = NoInumber
		encodeDirEntry(block[off:off+maxDirEntrySize], e)
	}
}

func encodeDirEntry(dst []byte, e dirEntry) {
	copy(dst, e.name[:])
	putInt32(dst[MaxFileName:], e.inumber)
}

func decodeDirEntry(src []byte) dirEntry {
	var e dirEntry
	copy(e.name[:], src[:MaxFileName])
	e.inumber = getInt32(src[MaxFileName:])
	return e
}

func putInt32(dst []byte, v int32) {
	u := uint32(v)
	dst[0] = byte(u)
	dst[1] = byte(u >> 8)
	dst[2] = byte(u >> 16)
	dst[3] = byte(u >> 24)
}

func getInt32(src []byte) int32 {
	u := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
	return int32(u)
}

// RootDirectory resolves names against the root directory block,
// reached via the root inode's first direct block reference (§4.D).
// Directory-entry mutations share the open-file table's mutex as a
// general "state" lock rather than a dedicated directory lock — an
// accidental coupling preserved from the original (§9 open question
// 3), documented rather than "fixed" here.
type RootDirectory struct {
	inodes    *InodeTable
	blocks    *Pool
	stateLock *dualLock // == OpenFileTable.alloc.entityLock
}

func newRootDirectory(inodes *InodeTable, blocks *Pool, stateLock *dualLock) *RootDirectory {
	return &RootDirectory{inodes: inodes, blocks: blocks, stateLock: stateLock}
}

// addEntry finds the first empty slot in dirInumber's directory block
// and writes subInumber/name into it. Fails if dirInumber is not a
// Directory, name is empty or too long, or no empty slot remains.
func (d *RootDirectory) addEntry(dirInumber, subInumber int32, name string) error {
	dirInode, err := d.inodes.get(dirInumber)
	if err != nil {
		return err
	}

	dirInode.lock.Lock(Read)
	defer dirInode.lock.Unlock(Read)

	if dirInode.kind != KindDirectory {
		return newError("dir.addEntry", KindInvalidInput, "inode is not a directory")
	}

	var entry dirEntry
	if err := entry.setName(name); err != nil {
		return err
	}
	entry.inumber = subInumber

	d.stateLock.Lock(Mutex)
	defer d.stateLock.Unlock(Mutex)

	block := d.blocks.Get(dirInode.blockRefs[0])
	for i := 0; i < MaxDirEntries; i++ {
		off := i * maxDirEntrySize
		e := decodeDirEntry(block[off : off+maxDirEntrySize])
		if e.inumber == NoInumber {
			encodeDirEntry(block[off:off+maxDirEntrySize], entry)
			return nil
		}
	}
	return newError("dir.addEntry", KindExhausted, "directory block full")
}

// find returns the inumber of the first entry in dirInumber's directory
// whose name matches, or NoInumber if none does.
func (d *RootDirectory) find(dirInumber int32, name string) (int32, error) {
	dirInode, err := d.inodes.get(dirInumber)
	if err != nil {
		return NoInumber, err
	}

	dirInode.lock.Lock(Read)
	defer dirInode.lock.Unlock(Read)

	if dirInode.kind != KindDirectory {
		return NoInumber, newError("dir.find", KindInvalidInput, "inode is not a directory")
	}

	if len(name) == 0 || len(name) >= MaxFileName {
		return NoInumber, newError("dir.find", KindInvalidInput, "name empty or too long")
	}

	d.stateLock.Lock(Mutex)
	defer d.stateLock.Unlock(Mutex)

	block := d.blocks.Get(dirInode.blockRefs[0])
	for i := 0; i < MaxDirEntries; i++ {
		off := i * maxDirEntrySize
		e := decodeDirEntry(block[off : off+maxDirEntrySize])
		if e.inumber != NoInumber && e.nameString() == name {
			return e.inumber, nil
		}
	}
	return NoInumber, newError("dir.find", KindNotFound, "no matching entry")
}

// DirEntryInfo is a resolved root-directory entry, exposed for the CLI
// driver's listing command. Listing directory contents is not one of
// §4.I's seven operations, but it is not excluded by any of spec.md's
// Non-goals either, and the CLI needs some way to show what `init`
// and `open(..., CREATE)` produced.
type DirEntryInfo struct {
	Name    string
	Inumber int32
}

// list returns every occupied entry of dirInumber's directory block.
func (d *RootDirectory) list(dirInumber int32) ([]DirEntryInfo, error) {
	dirInode, err := d.inodes.get(dirInumber)
	if err != nil {
		return nil, err
	}

	dirInode.lock.Lock(Read)
	defer dirInode.lock.Unlock(Read)

	if dirInode.kind != KindDirectory {
		return nil, newError("dir.list", KindInvalidInput, "inode is not a directory")
	}

	d.stateLock.Lock(Mutex)
	defer d.stateLock.Unlock(Mutex)

	var out []DirEntryInfo
	block := d.blocks.Get(dirInode.blockRefs[0])
	for i := 0; i < MaxDirEntries; i++ {
		off := i * maxDirEntrySize
		e := decodeDirEntry(block[off : off+maxDirEntrySize])
		if e.inumber != NoInumber {
			out = append(out, DirEntryInfo{Name: e.nameString(), Inumber: e.inumber})
		}
	}
	return out, nil
}
