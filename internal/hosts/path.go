// Package hosts reads and rewrites the operating system's hosts file.
//
// The package owns everything that touches the hosts file itself:
//   - Resolving the canonical hosts path for the running OS
//   - Rendering and recognising the marker block that holds blocked domains
//   - Staged, atomic writes through a PrivilegedWriter selected once per process
//
// Content computed here is always a full replacement of the file. Nothing in
// this package appends to or edits the live file in place.
package hosts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnsupportedPlatform is returned when the hosts path for an OS is unknown.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

const unixHostsPath = "/etc/hosts"

// ResolvePath maps a GOOS value to the canonical hosts file path.
func ResolvePath(goos string) (string, error) {
	switch goos {
	case "windows":
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts"), nil
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly":
		return unixHostsPath, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}
