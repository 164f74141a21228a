package blocker

import (
	"context"
	"time"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

// State is the process-wide blocking state owned by a Machine.
// Active implies Backup is set and was taken before the block was written.
type State struct {
	Active  bool
	Domains []string
	Backup  *snapshots.Snapshot
	Since   time.Time
}

func (s State) clone() State {
	c := s
	if s.Domains != nil {
		c.Domains = append([]string(nil), s.Domains...)
	}
	return c
}

// Status is the read-only view returned to callers.
type Status struct {
	Active  bool      `json:"active"`
	Domains []string  `json:"domains"`
	Since   time.Time `json:"since,omitempty"`
}

// Outcome describes a completed transition.
type Outcome struct {
	Changed bool
	Message string
	Domains []string
}

// HostsMutator is the subset of *hosts.Mutator the Machine drives.
type HostsMutator interface {
	Read() (string, error)
	Install(ctx context.Context, base string, set hosts.EntrySet) error
	Restore(ctx context.Context, content string) error
	ForceClean(ctx context.Context) error
	LineEnding() string
	CheckAccess() hosts.Access
}

// BackupStore is the subset of *snapshots.Manager the Machine drives.
type BackupStore interface {
	EnsureBackup(reason string) (*snapshots.Snapshot, error)
	Load() (*snapshots.Snapshot, error)
	Replace(content, reason string) error
}

// CacheFlusher invalidates resolver caches without blocking.
type CacheFlusher interface {
	Flush()
}

// EventRecorder stores the history of transitions.
type EventRecorder interface {
	InsertEvent(ev *store.Event) error
}
