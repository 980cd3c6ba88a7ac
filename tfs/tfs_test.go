package tfs

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(WithTouchLatency(0))
	require.NoError(t, err)
	return fs
}

// S1: single-block round trip.
func TestRoundTripSingleBlock(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)

	n, err := fs.Write(fh, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, fs.Close(fh))

	fh, err = fs.Open("/a", 0)
	require.NoError(t, err)
	buf := make([]byte, 512)
	n, err = fs.Read(fh, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf[:5]))
}

// S2: cross-block write.
func TestCrossBlockWrite(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)

	src := bytes.Repeat([]byte{'X'}, 1500)
	n, err := fs.Write(fh, src)
	require.NoError(t, err)
	require.Equal(t, 1500, n)

	size, err := fs.Size(1)
	require.NoError(t, err)
	require.Equal(t, int64(1500), size)
	require.NoError(t, fs.Close(fh))

	fh, err = fs.Open("/a", 0)
	require.NoError(t, err)
	buf := make([]byte, 1500)
	n, err = fs.Read(fh, buf)
	require.NoError(t, err)
	require.Equal(t, 1500, n)
	require.Equal(t, src, buf)

	// The second data block's unwritten tail must read as zero.
	inode, err := fs.inodes.get(1)
	require.NoError(t, err)
	block := fs.blocks.Get(inode.blockRefs[1])
	for i := 476; i < BlockSize; i++ {
		require.Equalf(t, byte(0), block[i], "byte %d of second block", i)
	}
}

// S3: direct->indirect straddle.
func TestDirectIndirectStraddle(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)

	n, err := fs.Write(fh, bytes.Repeat([]byte{'A'}, MaxBytesDirect))
	require.NoError(t, err)
	require.Equal(t, MaxBytesDirect, n)

	n, err = fs.Write(fh, bytes.Repeat([]byte{'B'}, 2048))
	require.NoError(t, err)
	require.Equal(t, 2048, n)
	require.NoError(t, fs.Close(fh))

	fh, err = fs.Open("/a", 0)
	require.NoError(t, err)
	buf := make([]byte, MaxBytesDirect+2048)
	n, err = fs.Read(fh, buf)
	require.NoError(t, err)
	require.Equal(t, MaxBytesDirect+2048, n)
	require.Equal(t, bytes.Repeat([]byte{'A'}, MaxBytesDirect), buf[:MaxBytesDirect])
	require.Equal(t, bytes.Repeat([]byte{'B'}, 2048), buf[MaxBytesDirect:])
}

// S4: append across two opens.
func TestAppendAcrossOpens(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)
	_, err = fs.Write(fh, bytes.Repeat([]byte{'1'}, 100))
	require.NoError(t, err)

	fh2, err := fs.Open("/a", Append)
	require.NotEqual(t, fh, fh2, "second open must get a distinct handle while the first is still open")
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))
	_, err = fs.Write(fh2, bytes.Repeat([]byte{'2'}, 50))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh2))

	fh3, err := fs.Open("/a", 0)
	require.NoError(t, err)
	buf := make([]byte, 150)
	n, err := fs.Read(fh3, buf)
	require.NoError(t, err)
	require.Equal(t, 150, n)
	require.Equal(t, bytes.Repeat([]byte{'1'}, 100), buf[:100])
	require.Equal(t, bytes.Repeat([]byte{'2'}, 50), buf[100:])
}

// Property 4: create; close; reopen without CREATE succeeds iff the
// first open succeeded.
func TestReopenWithoutCreate(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))

	fh, err = fs.Open("/a", 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))

	_, err = fs.Open("/does-not-exist", 0)
	require.Error(t, err)
	require.True(t, IsKind(err, KindNotFound))
}

// Property 5/6: writing MaxBytes then one more byte clamps to 0 new
// bytes, not an error; CREATE|TRUNC on an existing file empties it.
func TestClampAtMaxBytes(t *testing.T) {
	if testing.Short() {
		t.Skip("fills the whole 272384-byte file; slow under -short")
	}
	fs := newTestFS(t)

	fh, err := fs.Open("/big", Create)
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte{'Z'}, BlockSize)
	var total int
	for total < MaxBytes {
		n, err := fs.Write(fh, chunk)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	require.Equal(t, MaxBytes, total)

	n, err := fs.Write(fh, []byte{'!'})
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.NoError(t, fs.Close(fh))

	fh, err = fs.Open("/big", Create|Trunc)
	require.NoError(t, err)
	size, err := fs.Size(1)
	require.NoError(t, err)
	require.Equal(t, int64(0), size)

	buf := make([]byte, 10)
	n, err = fs.Read(fh, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

// S5: concurrent distinct files.
func TestConcurrentDistinctFiles(t *testing.T) {
	fs := newTestFS(t)

	const n = 16
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			path := fmt.Sprintf("/f%d", i)
			pattern := byte('a' + i%26)
			fh, err := fs.Open(path, Create)
			if err != nil {
				return err
			}
			want := bytes.Repeat([]byte{pattern}, 64)
			if _, err := fs.Write(fh, want); err != nil {
				return err
			}
			return fs.Close(fh)
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/f%d", i)
		pattern := byte('a' + i%26)
		fh, err := fs.Open(path, 0)
		require.NoError(t, err)
		buf := make([]byte, 64)
		rn, err := fs.Read(fh, buf)
		require.NoError(t, err)
		require.Equal(t, 64, rn)
		require.Equal(t, bytes.Repeat([]byte{pattern}, 64), buf)
		require.NoError(t, fs.Close(fh))
	}
}

// S6: handle uniqueness race.
func TestConcurrentOpenHandlesUnique(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/f1", Create)
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))

	const n = MaxOpenFiles
	handles := make([]int32, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			h, err := fs.Open("/f1", 0)
			handles[i] = h
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int32]bool, n)
	for _, h := range handles {
		require.False(t, seen[h], "handle %d returned more than once", h)
		seen[h] = true
	}
}

// Property 1, generalized: concurrent opens never hand out the same
// handle while both are live.
func TestOpenHandlesDistinctUnderLoad(t *testing.T) {
	fs := newTestFS(t)
	for i := 0; i < 8; i++ {
		_, err := fs.Open(fmt.Sprintf("/g%d", i), Create)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := map[int32]bool{}
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			h, err := fs.Open(fmt.Sprintf("/g%d", i), 0)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[h] {
				return fmt.Errorf("handle %d reused while still open", h)
			}
			seen[h] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

// Pins the known gap in InodeTable.delete (SPEC_FULL.md §4, §9 open
// question 2): only the inode's working block is freed, not the whole
// direct+indirect chain. If this test starts failing because more
// blocks got freed, that's a deliberate generalization, not a
// regression.
func TestDeleteOnlyFreesWorkingBlock(t *testing.T) {
	fs := newTestFS(t)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)
	_, err = fs.Write(fh, bytes.Repeat([]byte{'A'}, 3*BlockSize))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))

	inode, err := fs.inodes.get(1)
	require.NoError(t, err)
	firstBlock := inode.blockRefs[0]
	lastAllocatedBlock := inode.blockRefs[2]
	workingBlock := inode.workingBlock
	require.Equal(t, lastAllocatedBlock, workingBlock, "3*BlockSize bytes land the working block on the third direct slot")
	require.True(t, fs.blocks.isTaken(firstBlock), "first block should still be allocated before delete")

	require.NoError(t, fs.inodes.delete(1))

	require.False(t, fs.blocks.isTaken(workingBlock), "the working block is freed")
	require.True(t, fs.blocks.isTaken(firstBlock), "earlier direct blocks leak: delete never walks the chain")
}

// ListRoot must report every created entry in directory-slot order
// (creation order for sequential creates), diffed structurally rather
// than field by field.
func TestListRootReflectsCreatedEntries(t *testing.T) {
	fs := newTestFS(t)

	want := []DirEntryInfo{
		{Name: "a", Inumber: 1},
		{Name: "b", Inumber: 2},
		{Name: "c", Inumber: 3},
	}
	for _, e := range want {
		fh, err := fs.Open("/"+e.Name, Create)
		require.NoError(t, err)
		require.NoError(t, fs.Close(fh))
	}

	got, err := fs.ListRoot()
	require.NoError(t, err)
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("ListRoot mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidInputs(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Lookup("noleadingslash")
	require.True(t, IsKind(err, KindInvalidInput))

	_, err = fs.Open("/x", 0)
	require.True(t, IsKind(err, KindNotFound))

	fh, err := fs.Open("/x", Create)
	require.NoError(t, err)

	_, err = fs.Write(fh, nil)
	require.True(t, IsKind(err, KindInvalidInput))

	_, err = fs.Read(fh, nil)
	require.True(t, IsKind(err, KindInvalidInput))

	require.NoError(t, fs.Close(fh))
	require.Error(t, fs.Close(fh))
}

// WithLogOutput and WithTouchLatency(>0) are the two Options beyond
// the zero-latency default the test suite otherwise uses throughout;
// this pins that both actually take effect.
func TestOptionsLogOutputAndLatency(t *testing.T) {
	var logBuf bytes.Buffer
	fs, err := New(WithLogOutput(&logBuf), WithTouchLatency(time.Microsecond))
	require.NoError(t, err)

	fh, err := fs.Open("/a", Create)
	require.NoError(t, err)
	_, err = fs.Write(fh, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fh))

	require.NoError(t, fs.Destroy())
	require.Contains(t, logBuf.String(), "destroy")
	require.Greater(t, fs.inodes.delay.Spins(), int64(0), "touching the inode table should have spun the delay injector")
}
