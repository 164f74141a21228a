//go:build windows

package snapshots

import "os"

// checkOwner is a no-op: the temp directory is per user on Windows.
func checkOwner(os.FileInfo) error { return nil }
