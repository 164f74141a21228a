package snapshots

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
)

// EnsureBackup returns the content to restore once blocking ends.
//
// A clean live file is persisted as the new durable backup and returned. A
// live file that already carries a marker block is never persisted: the
// existing durable backup wins, and without one the block is stripped from
// the live content as a best effort.
func (m *Manager) EnsureBackup(reason string) (*Snapshot, error) {
	live, err := m.hosts.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}

	if !hosts.HasBlock(live) {
		if err := m.write(live, reason); err != nil {
			return nil, err
		}
		return &Snapshot{Content: live, CreatedAt: time.Now(), Source: SourceLive}, nil
	}

	snap, err := m.Load()
	if err == nil {
		log.Infof("hosts file already blocked, using existing backup %s", m.backupPath)
		return snap, nil
	}
	if !errors.Is(err, ErrNoBackup) {
		return nil, err
	}

	log.Warnf("hosts file already blocked and no backup at %s, stripping block from live content", m.backupPath)
	return &Snapshot{Content: hosts.Strip(live), CreatedAt: time.Now(), Source: SourceStripped}, nil
}

// Replace persists content as the durable backup unconditionally. It is used
// after a force clean, when the freshly written default is the new baseline.
func (m *Manager) Replace(content, reason string) error {
	if hosts.HasBlock(content) {
		return fmt.Errorf("refusing to back up content that carries a marker block")
	}
	return m.write(content, reason)
}

// write stores content via a temp-file rename so a crash never leaves a
// truncated backup behind.
func (m *Manager) write(content, reason string) error {
	dir := filepath.Dir(m.backupPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pomoblock-backup-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp backup: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp backup: %w", err)
	}
	if err := os.Rename(tmpName, m.backupPath); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	log.Debugf("hosts backup written to %s (%d bytes)", m.backupPath, len(content))

	if m.store != nil {
		sum := sha256.Sum256([]byte(content))
		if _, err := m.store.InsertSnapshot(reason, int64(len(content)), hex.EncodeToString(sum[:]), m.backupPath); err != nil {
			// The file on disk is what recovery relies on; the record is informational.
			log.Warnf("failed to record snapshot: %v", err)
		}
	}

	return nil
}
