// Package tfs implements the core of a concurrent, flat, in-memory toy
// filesystem: an inode table, a data-block pool with a two-level (direct
// plus single-indirect) block layout, a root directory, and an open-file
// table, all addressable through a small set of POSIX-ish operations
// (New, Destroy, Lookup, Open, Close, Read, Write).
//
// There is no backing store. Access latency to the inode table, the
// block pool, and the allocation bitmaps is emulated with a busy-wait so
// that code exercising the filesystem behaves as though it were talking
// to slow secondary storage.
package tfs
