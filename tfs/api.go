package tfs

import (
	"fmt"
	"io"
	"time"
)

// FS is the filesystem's process-wide state, parameterized as a value
// rather than a singleton (§9 "global state with init/destroy"): every
// test or caller gets its own FS instead of sharing package-level
// state, which is what makes the concurrent scenarios of §8
// independently repeatable.
//
// FS implements §4.I's seven operations. The acquisition order
// file_map -> open_file[h] -> inode_map -> inode[i] -> data_blocks
// (§5) is followed by every method below, with one exception: the
// root-directory operations behind Lookup, Open and ListRoot take the
// open-file table's mutex (the directory's state lock) while holding
// the root inode in Read mode. None re-enters.
type FS struct {
	delay     *delayInjector
	blocks    *Pool
	inodes    *InodeTable
	openFiles *OpenFileTable
	dir       *RootDirectory
	log       *logger
}

// Option configures a *FS built by New.
type Option func(*FS)

// WithTouchLatency overrides the delay injector's per-touch busy-wait
// duration. The zero duration disables injected latency entirely,
// useful for tests that only want to assert behavior, not timing.
func WithTouchLatency(d time.Duration) Option {
	return func(fs *FS) { fs.delay.perTouch = d }
}

// WithLogOutput redirects diagnostic log lines (§7 "best-effort log
// lines") to w instead of os.Stderr.
func WithLogOutput(w io.Writer) Option {
	return func(fs *FS) { fs.log = newLogger("tfs: ", w) }
}

// New zeroes all state and creates the root directory inode, which is
// guaranteed inumber RootInumber because it is the first allocation
// against an empty inode table.
func New(opts ...Option) (*FS, error) {
	fs := &FS{
		delay: newDelayInjector(defaultTouchLatency),
		log:   newLogger("tfs: ", nil),
	}
	for _, opt := range opts {
		opt(fs)
	}

	fs.blocks = newPool(fs.delay)
	fs.inodes = newInodeTable(fs.blocks, fs.delay, fs.log)
	fs.openFiles = newOpenFileTable(fs.delay)

	root, err := fs.inodes.create(KindDirectory)
	if err != nil {
		return nil, err
	}
	if root != RootInumber {
		return nil, newError("init", KindLockFailure, "root inode did not receive inumber 0")
	}
	fs.dir = newRootDirectory(fs.inodes, fs.blocks, fs.openFiles.lock())
	return fs, nil
}

// Destroy releases fs's state. There is no backing store to flush, so
// it only writes a "destroy" log line; it is idempotent and kept so
// callers have a single
// symmetric lifecycle to follow, the way §9's redesign note asks for.
func (fs *FS) Destroy() error {
	fs.log.Printf("destroy")
	return nil
}

// Lookup resolves an absolute single-component path to an inumber.
func (fs *FS) Lookup(path string) (int32, error) {
	rest, err := splitPath(path)
	if err != nil {
		return NoInumber, err
	}
	return fs.dir.find(RootInumber, rest)
}

// Open resolves path, optionally creating or truncating the target,
// and returns a fresh handle into the open-file table.
//
// If the file does not exist and flags has Create set, Open creates a
// File inode and adds a root directory entry for it; if adding the
// entry fails, the freshly created inode is deleted as Open's single
// compensating action (§7).
func (fs *FS) Open(path string, flags int) (int32, error) {
	rest, err := splitPath(path)
	if err != nil {
		return NoHandle, err
	}

	inumber, err := fs.dir.find(RootInumber, rest)
	if err != nil {
		if !IsKind(err, KindNotFound) || flags&Create == 0 {
			return NoHandle, err
		}
		return fs.createAndOpen(rest, flags)
	}
	return fs.openExisting(inumber, flags)
}

func (fs *FS) createAndOpen(name string, flags int) (int32, error) {
	inumber, err := fs.inodes.create(KindFile)
	if err != nil {
		return NoHandle, err
	}
	if err := fs.dir.addEntry(RootInumber, inumber, name); err != nil {
		rel := &releaser{}
		rel.add(fs.inodes.delete(inumber))
		rel.report(fs.log, fmt.Sprintf("open(create %q): rollback", name))
		return NoHandle, err
	}
	return fs.allocHandle(inumber, 0)
}

func (fs *FS) openExisting(inumber int32, flags int) (int32, error) {
	inode, err := fs.inodes.get(inumber)
	if err != nil {
		return NoHandle, err
	}

	if flags&Trunc != 0 {
		inode.lock.Lock(Mutex)
		if inode.size > 0 {
			if inode.workingBlock != noBlock {
				fs.blocks.Free(inode.workingBlock)
			}
			inode.size = 0
			inode.workingBlock = noBlock
		}
		inode.lock.Unlock(Mutex)
	}

	var offset int64
	if flags&Append != 0 {
		inode.lock.Lock(Read)
		offset = inode.size
		inode.lock.Unlock(Read)
	}
	return fs.allocHandle(inumber, offset)
}

func (fs *FS) allocHandle(inumber int32, offset int64) (int32, error) {
	fs.openFiles.lock().Lock(Mutex)
	defer fs.openFiles.lock().Unlock(Mutex)
	return fs.openFiles.add(inumber, offset)
}

// Close frees handle's open-file entry.
func (fs *FS) Close(handle int32) error {
	return fs.openFiles.remove(handle)
}

// Read copies up to len(buf) bytes from handle's current offset,
// advancing it by the number of bytes actually copied.
func (fs *FS) Read(handle int32, buf []byte) (int, error) {
	entry, err := fs.fetchEntry(handle)
	if err != nil {
		return 0, err
	}

	entry.lock.Lock(Mutex)
	defer entry.lock.Unlock(Mutex)
	if !entry.allocated {
		return 0, newError("read", KindNotFound, "handle not open")
	}

	inode, err := fs.inodes.get(entry.inumber)
	if err != nil {
		return 0, err
	}

	inode.lock.Lock(Read)
	defer inode.lock.Unlock(Read)

	return readAt(fs.blocks, inode, entry, buf)
}

// Write appends up to len(buf) bytes to handle's file, handling the
// direct-only, indirect-only and direct/indirect straddling cases of
// §4.H.
//
// The inode's reader-writer lock is taken in Read mode here even
// though size and the block-reference arrays are mutated — preserved
// from the original rather than "fixed" (§9 open question 1). Callers
// sharing one inode across multiple handles race on these fields;
// callers writing through a single handle at a time do not, because
// entry.lock.Lock(Mutex) above already serializes them.
func (fs *FS) Write(handle int32, buf []byte) (int, error) {
	entry, err := fs.fetchEntry(handle)
	if err != nil {
		return 0, err
	}

	entry.lock.Lock(Mutex)
	defer entry.lock.Unlock(Mutex)
	if !entry.allocated {
		return 0, newError("write", KindNotFound, "handle not open")
	}

	inode, err := fs.inodes.get(entry.inumber)
	if err != nil {
		return 0, err
	}

	inode.lock.Lock(Read)
	defer inode.lock.Unlock(Read)

	return writeAt(fs.blocks, inode, entry, buf)
}

// fetchEntry implements the read-path's file_map(read) -> fetch ->
// release shape shared by Read and Write (§5).
func (fs *FS) fetchEntry(handle int32) (*openFileEntry, error) {
	fs.openFiles.lock().Lock(Read)
	defer fs.openFiles.lock().Unlock(Read)
	return fs.openFiles.get(handle)
}

// ListRoot lists the root directory's occupied entries, for the CLI
// driver. See DirEntryInfo.
func (fs *FS) ListRoot() ([]DirEntryInfo, error) {
	return fs.dir.list(RootInumber)
}

// Size returns the inumber's current size in bytes.
func (fs *FS) Size(inumber int32) (int64, error) {
	inode, err := fs.inodes.get(inumber)
	if err != nil {
		return 0, err
	}
	inode.lock.Lock(Read)
	defer inode.lock.Unlock(Read)
	return inode.size, nil
}
