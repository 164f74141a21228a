package snapshots

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
)

// Load reads the durable backup.
func (m *Manager) Load() (*Snapshot, error) {
	fi, err := os.Stat(m.backupPath)
	if os.IsNotExist(err) {
		return nil, ErrNoBackup
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}
	if err := checkOwner(fi); err != nil {
		log.Warnf("ignoring hosts backup %s: %v", m.backupPath, err)
		return nil, err
	}

	data, err := os.ReadFile(m.backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	snap := &Snapshot{
		Content:   string(data),
		CreatedAt: fi.ModTime(),
		Source:    SourceDurable,
	}

	// A backup must never reinstate a block.
	if hosts.HasBlock(snap.Content) {
		log.Warnf("backup %s contains a marker block, stripping it", m.backupPath)
		snap.Content = hosts.Strip(snap.Content)
		snap.Source = SourceStripped
	}

	return snap, nil
}

// Exists reports whether a trusted durable backup is present.
func (m *Manager) Exists() bool {
	fi, err := os.Stat(m.backupPath)
	return err == nil && checkOwner(fi) == nil
}

// Discard removes the durable backup. A missing file is not an error.
func (m *Manager) Discard() error {
	if err := os.Remove(m.backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove backup file: %w", err)
	}
	return nil
}
