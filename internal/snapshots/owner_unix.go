//go:build !windows

package snapshots

import (
	"fmt"
	"os"
	"syscall"
)

// checkOwner rejects a backup another user could have planted or edited in
// the shared temp directory.
func checkOwner(fi os.FileInfo) error {
	if fi.Mode().Perm()&0022 != 0 {
		return fmt.Errorf("%w: mode %v is writable by others", ErrUntrustedBackup, fi.Mode().Perm())
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if uid := os.Geteuid(); int(st.Uid) != uid {
		return fmt.Errorf("%w: owned by uid %d, not %d", ErrUntrustedBackup, st.Uid, uid)
	}
	return nil
}
