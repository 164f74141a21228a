//go:build !windows

package watcher

import (
	"os"
	"syscall"
)

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true, // Create new session
	}
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}

// alive sends signal 0 to check if the process exists.
func alive(p *os.Process) bool {
	return p.Signal(syscall.Signal(0)) == nil
}
