//go:build !windows

package snapshots

import (
	"errors"
	"os"
	"testing"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
)

func TestLoad_RejectsWritableByOthers(t *testing.T) {
	m, fh, backupPath := newTestManager(t, "")
	if err := os.WriteFile(backupPath, []byte("0.0.0.0 planted.example\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(backupPath, 0666); err != nil {
		t.Fatal(err)
	}

	_, err := m.Load()
	if !errors.Is(err, ErrUntrustedBackup) {
		t.Fatalf("Load() error = %v, want ErrUntrustedBackup", err)
	}
	if !errors.Is(err, ErrNoBackup) {
		t.Error("untrusted backup should count as no backup")
	}
	if m.Exists() {
		t.Error("Exists() = true for an untrusted backup")
	}

	// A blocked live file falls back to stripping instead of the planted file.
	fh.content = hosts.RenderBlocked("127.0.0.1 localhost\n", hosts.EntrySet{"example.com"}, "\n")
	snap, err := m.EnsureBackup("test")
	if err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}
	if snap.Source != SourceStripped || snap.Content != "127.0.0.1 localhost\n" {
		t.Errorf("EnsureBackup() = %+v, want stripped live content", snap)
	}
}

func TestLoad_RejectsOtherOwner(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("needs root to chown")
	}
	m, _, backupPath := newTestManager(t, "")
	if err := os.WriteFile(backupPath, []byte("127.0.0.1 localhost\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chown(backupPath, 65534, 65534); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Load(); !errors.Is(err, ErrUntrustedBackup) {
		t.Errorf("Load() error = %v, want ErrUntrustedBackup", err)
	}
}

func TestReplace_WritesPrivateFile(t *testing.T) {
	m, _, backupPath := newTestManager(t, "")
	if err := m.Replace("127.0.0.1 localhost\n", "test"); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	fi, err := os.Stat(backupPath)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0022 != 0 {
		t.Errorf("backup mode = %v", fi.Mode().Perm())
	}
	if _, err := m.Load(); err != nil {
		t.Errorf("Load() of own backup failed: %v", err)
	}
}
