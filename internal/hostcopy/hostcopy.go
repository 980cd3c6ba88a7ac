// Package hostcopy implements the "copy to host filesystem" helper
// that spec.md §6 specifies only by contract: given a TFS path, write
// its contents byte-for-byte to a real file on the host, as if by a
// sequence of tfs.FS.Read calls starting at offset 0.
package hostcopy

import (
	"os"

	"github.com/go-tfs/tfs/tfs"
)

// Copy reads path from fs in its entirety and writes it to hostPath on
// the host filesystem, creating or truncating hostPath as needed. It
// returns the number of bytes copied.
func Copy(fs *tfs.FS, path, hostPath string) (int64, error) {
	handle, err := fs.Open(path, 0)
	if err != nil {
		return 0, err
	}
	defer fs.Close(handle)

	out, err := os.Create(hostPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	buf := make([]byte, tfs.BlockSize)
	var total int64
	for {
		n, rerr := fs.Read(handle, buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if rerr != nil {
			return total, rerr
		}
		if n == 0 {
			return total, nil
		}
	}
}
