//go:build windows

package hosts

import "golang.org/x/sys/windows"

// IsElevated reports whether the process token is elevated (run as administrator).
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
