package snapshots

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/pomoblock/internal/store"
)

// BackupFileName is the durable backup name inside the OS temp directory.
// Older releases used the same name, so a leftover backup is still found.
const BackupFileName = "pomodoro_hosts_backup.txt"

// ErrNoBackup is returned when no durable backup exists.
var ErrNoBackup = errors.New("no hosts backup available")

// ErrUntrustedBackup is returned for a backup file that is not owned by the
// current user or that others may write. It counts as no backup.
var ErrUntrustedBackup = fmt.Errorf("%w: backup file is not trusted", ErrNoBackup)

// Source tells where a Snapshot's content came from.
type Source string

const (
	// SourceLive is a clean live hosts file that was just persisted.
	SourceLive Source = "live"
	// SourceDurable is the backup file left by an earlier run.
	SourceDurable Source = "durable"
	// SourceStripped is live content with the marker block cut out,
	// used when the file is blocked and no backup file survived.
	SourceStripped Source = "stripped"
)

// Snapshot is the hosts file content at a point in time.
type Snapshot struct {
	Content   string
	CreatedAt time.Time
	Source    Source
}

// HostsReader reads the live hosts file.
type HostsReader interface {
	Read() (string, error)
}

// Manager persists and loads the pre-modification hosts content.
type Manager struct {
	hosts      HostsReader
	store      *store.Store
	backupPath string
}

// New creates a new snapshot Manager. st may be nil, in which case backups
// are not recorded in the database.
func New(hosts HostsReader, st *store.Store, backupPath string) *Manager {
	if backupPath == "" {
		backupPath = DefaultBackupPath()
	}
	return &Manager{
		hosts:      hosts,
		store:      st,
		backupPath: backupPath,
	}
}

// DefaultBackupPath returns the durable backup location in the OS temp dir.
func DefaultBackupPath() string {
	return filepath.Join(os.TempDir(), BackupFileName)
}

// Path returns the durable backup path.
func (m *Manager) Path() string {
	return m.backupPath
}
