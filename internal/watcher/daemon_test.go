//go:build !windows

package watcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsDaemonRunning(t *testing.T) {
	tests := []struct {
		name        string
		pidContent  string // empty: no PID file
		wantRunning bool
		wantRemoved bool
	}{
		{name: "no pid file"},
		{name: "this process", pidContent: "self", wantRunning: true},
		{name: "dead process", pidContent: "999999\n", wantRemoved: true},
		{name: "garbage", pidContent: "pomoblock\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidFile := filepath.Join(t.TempDir(), "daemon.pid")
			switch tt.pidContent {
			case "":
			case "self":
				if err := WritePIDFile(pidFile, os.Getpid()); err != nil {
					t.Fatalf("WritePIDFile: %v", err)
				}
			default:
				if err := os.WriteFile(pidFile, []byte(tt.pidContent), 0644); err != nil {
					t.Fatal(err)
				}
			}

			running, err := IsDaemonRunning(pidFile)
			if err != nil {
				t.Fatalf("IsDaemonRunning: %v", err)
			}
			if running != tt.wantRunning {
				t.Errorf("running = %v, want %v", running, tt.wantRunning)
			}
			if tt.wantRemoved {
				if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
					t.Error("stale PID file should be removed")
				}
			}
		})
	}
}

func TestStopDaemon_MissingPIDFile(t *testing.T) {
	if err := StopDaemon(filepath.Join(t.TempDir(), "daemon.pid")); err == nil {
		t.Error("expected an error without a PID file")
	}
}

func TestRemovePIDFile_Idempotent(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePIDFile(pidFile, 4242); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := RemovePIDFile(pidFile); err != nil {
			t.Errorf("RemovePIDFile call %d: %v", i+1, err)
		}
	}
}
