package api

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// IsUnixAddr reports whether addr names a unix socket path rather than a
// host:port.
func IsUnixAddr(addr string) bool {
	return strings.HasPrefix(addr, "unix://") || strings.ContainsAny(addr, `/\`) || strings.HasSuffix(addr, ".sock")
}

func unixPath(addr string) string {
	return strings.TrimPrefix(addr, "unix://")
}

// Listen opens the daemon listener. A stale unix socket left by a crashed
// daemon is removed first; the new socket is only accessible to its owner.
func Listen(addr string) (net.Listener, error) {
	if !IsUnixAddr(addr) {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return l, nil
	}

	path := unixPath(addr)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
	}
	return l, nil
}
