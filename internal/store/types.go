package store

import "time"

// Snapshot records a durable hosts backup written to disk.
type Snapshot struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Reason       string    `json:"reason"`
	SizeBytes    int64     `json:"size_bytes"`
	Checksum     string    `json:"checksum"`
	SnapshotPath string    `json:"snapshot_path"`
}

// Event records one blocking transition or hosts file mutation.
type Event struct {
	ID        int64     `json:"id"`
	OpID      string    `json:"op_id"`
	Kind      string    `json:"kind"` // "start", "stop", "force_clean", "recover", "repair"
	Domains   []string  `json:"domains"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
