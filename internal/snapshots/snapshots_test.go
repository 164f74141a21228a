package snapshots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

// fakeHosts serves fixed content as the live hosts file.
type fakeHosts struct {
	content string
	err     error
}

func (f *fakeHosts) Read() (string, error) { return f.content, f.err }

func newTestManager(t *testing.T, live string) (*Manager, *fakeHosts, string) {
	t.Helper()
	fh := &fakeHosts{content: live}
	backupPath := filepath.Join(t.TempDir(), BackupFileName)
	return New(fh, nil, backupPath), fh, backupPath
}

func TestEnsureBackup_CleanFilePersists(t *testing.T) {
	const live = "127.0.0.1 localhost\n"
	m, _, backupPath := newTestManager(t, live)

	snap, err := m.EnsureBackup("test")
	if err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}
	if snap.Content != live || snap.Source != SourceLive {
		t.Errorf("EnsureBackup() = %+v", snap)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("backup file not written: %v", err)
	}
	if string(data) != live {
		t.Errorf("backup content = %q, want %q", data, live)
	}
}

func TestEnsureBackup_CleanFileOverwritesStaleBackup(t *testing.T) {
	m, _, backupPath := newTestManager(t, "new baseline\n")
	if err := os.WriteFile(backupPath, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.EnsureBackup("test"); err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}

	data, _ := os.ReadFile(backupPath)
	if string(data) != "new baseline\n" {
		t.Errorf("backup content = %q, want overwritten baseline", data)
	}
}

func TestEnsureBackup_BlockedFilePrefersDurable(t *testing.T) {
	const original = "10.0.0.1 intranet\n"
	blocked := hosts.RenderBlocked(original, hosts.EntrySet{"example.com"}, "\n")
	m, _, backupPath := newTestManager(t, blocked)
	if err := os.WriteFile(backupPath, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := m.EnsureBackup("test")
	if err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}
	if snap.Content != original || snap.Source != SourceDurable {
		t.Errorf("EnsureBackup() = %+v, want durable original", snap)
	}

	// The durable file must not be replaced by blocked content.
	data, _ := os.ReadFile(backupPath)
	if string(data) != original {
		t.Errorf("backup overwritten with %q", data)
	}
}

func TestEnsureBackup_BlockedFileNoBackupStrips(t *testing.T) {
	const original = "127.0.0.1 localhost\n"
	blocked := hosts.RenderBlocked(original, hosts.EntrySet{"example.com"}, "\n")
	m, _, backupPath := newTestManager(t, blocked)

	snap, err := m.EnsureBackup("test")
	if err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}
	if snap.Content != original || snap.Source != SourceStripped {
		t.Errorf("EnsureBackup() = %+v, want stripped original", snap)
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Error("stripped snapshot should not be persisted")
	}
}

func TestLoad_NoBackup(t *testing.T) {
	m, _, _ := newTestManager(t, "")
	if _, err := m.Load(); err != ErrNoBackup {
		t.Errorf("Load() error = %v, want ErrNoBackup", err)
	}
	if m.Exists() {
		t.Error("Exists() = true with no backup file")
	}
}

func TestLoad_StripsCorruptBackup(t *testing.T) {
	m, _, backupPath := newTestManager(t, "")
	blocked := hosts.RenderBlocked("127.0.0.1 localhost\n", hosts.EntrySet{"example.com"}, "\n")
	if err := os.WriteFile(backupPath, []byte(blocked), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := m.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if hosts.HasBlock(snap.Content) {
		t.Error("Load() returned content with a marker block")
	}
}

func TestReplaceAndDiscard(t *testing.T) {
	m, _, backupPath := newTestManager(t, "")

	if err := m.Replace(hosts.RenderBlocked("", hosts.EntrySet{"a.com"}, "\n"), "test"); err == nil {
		t.Error("Replace() accepted blocked content")
	}

	if err := m.Replace("clean\n", "force_clean"); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}
	if !m.Exists() {
		t.Fatal("Exists() = false after Replace")
	}

	if err := m.Discard(); err != nil {
		t.Fatalf("Discard() failed: %v", err)
	}
	if _, err := os.Stat(backupPath); !os.IsNotExist(err) {
		t.Error("backup still present after Discard")
	}
	if err := m.Discard(); err != nil {
		t.Errorf("second Discard() failed: %v", err)
	}
}

func TestEnsureBackup_RecordsSnapshot(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), BackupFileName)
	m := New(&fakeHosts{content: "127.0.0.1 localhost\n"}, st, backupPath)
	if _, err := m.EnsureBackup("startup"); err != nil {
		t.Fatalf("EnsureBackup() failed: %v", err)
	}

	snap, err := st.LatestSnapshot()
	if err != nil {
		t.Fatalf("LatestSnapshot() failed: %v", err)
	}
	if snap.Reason != "startup" || snap.SnapshotPath != backupPath || snap.SizeBytes != 20 {
		t.Errorf("recorded snapshot = %+v", snap)
	}
	if len(snap.Checksum) != 64 {
		t.Errorf("checksum %q is not a sha256 hex digest", snap.Checksum)
	}
}

func TestDefaultBackupPath(t *testing.T) {
	if filepath.Base(DefaultBackupPath()) != BackupFileName {
		t.Errorf("DefaultBackupPath() = %s", DefaultBackupPath())
	}
}
