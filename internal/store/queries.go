package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultBlocklist is returned until the user saves a list of their own.
var DefaultBlocklist = []string{
	"facebook.com",
	"twitter.com",
	"youtube.com",
	"instagram.com",
	"tiktok.com",
}

const blocklistSavedKey = "blocklist_saved"

// timeLayout is fixed-width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Blocklist operations

// GetBlocklist returns the saved domains in order, or the default list when
// nothing was ever saved. An explicitly saved empty list stays empty.
func (s *Store) GetBlocklist() ([]string, error) {
	var saved string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", blocklistSavedKey).Scan(&saved)
	if err == sql.ErrNoRows {
		defaults := DefaultBlocklist
		if len(s.defaults) > 0 {
			defaults = s.defaults
		}
		out := make([]string, len(defaults))
		copy(out, defaults)
		return out, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to read blocklist state")
	}

	rows, err := s.db.Query("SELECT domain FROM blocklist ORDER BY position")
	if err != nil {
		return nil, wrapErr(err, "failed to list blocklist")
	}
	defer rows.Close()

	domains := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist row: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocklist: %w", err)
	}

	return domains, nil
}

// SetBlocklist replaces the saved domains in a single transaction.
func (s *Store) SetBlocklist(domains []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM blocklist"); err != nil {
		return wrapErr(err, "failed to clear blocklist")
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO blocklist (domain, position) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range domains {
		if _, err := stmt.Exec(d, i); err != nil {
			return fmt.Errorf("failed to insert domain %s: %w", d, err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, '1')", blocklistSavedKey); err != nil {
		return fmt.Errorf("failed to mark blocklist saved: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit blocklist: %w", err)
	}
	return nil
}

// ResetBlocklist forgets the saved list so DefaultBlocklist applies again.
func (s *Store) ResetBlocklist() error {
	if _, err := s.db.Exec("DELETE FROM blocklist"); err != nil {
		return wrapErr(err, "failed to clear blocklist")
	}
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", blocklistSavedKey); err != nil {
		return wrapErr(err, "failed to reset blocklist state")
	}
	return nil
}

// Snapshot operations

// InsertSnapshot records a durable backup and returns its ID.
func (s *Store) InsertSnapshot(reason string, sizeBytes int64, checksum, snapshotPath string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO snapshots (created_at, reason, size_bytes, checksum, snapshot_path) VALUES (?, ?, ?, ?, ?)",
		time.Now().UTC().Format(timeLayout),
		reason,
		sizeBytes,
		checksum,
		snapshotPath,
	)
	if err != nil {
		return 0, wrapErr(err, "failed to insert snapshot")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot ID: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently recorded backup.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	snaps, err := s.ListSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots recorded")
	}
	return snaps[0], nil
}

// ListSnapshots returns up to limit snapshots, newest first. limit <= 0 means all.
func (s *Store) ListSnapshots(limit int) ([]*Snapshot, error) {
	query := "SELECT id, created_at, reason, size_bytes, checksum, snapshot_path FROM snapshots ORDER BY id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapErr(err, "failed to list snapshots")
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var snap Snapshot
		var createdAt string
		var reason, checksum sql.NullString
		if err := rows.Scan(&snap.ID, &createdAt, &reason, &snap.SizeBytes, &checksum, &snap.SnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Reason = reason.String
		snap.Checksum = checksum.String
		snap.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// Event operations

// InsertEvent appends an event to the history.
func (s *Store) InsertEvent(ev *Event) error {
	domainsJSON, err := json.Marshal(ev.Domains)
	if err != nil {
		return fmt.Errorf("failed to marshal domains: %w", err)
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(
		"INSERT INTO events (op_id, kind, domains, success, message, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		ev.OpID,
		ev.Kind,
		string(domainsJSON),
		ev.Success,
		ev.Message,
		ev.Error,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return wrapErr(err, "failed to insert event %s", ev.Kind)
	}
	return nil
}

// ListEvents returns up to limit events, newest first. limit <= 0 means all.
func (s *Store) ListEvents(limit int) ([]*Event, error) {
	query := "SELECT id, op_id, kind, domains, success, message, error, created_at FROM events ORDER BY id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapErr(err, "failed to list events")
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var domainsJSON, message, errText sql.NullString
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.OpID, &ev.Kind, &domainsJSON, &ev.Success, &message, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Message = message.String
		ev.Error = errText.String
		if domainsJSON.Valid && domainsJSON.String != "" && domainsJSON.String != "null" {
			if err := json.Unmarshal([]byte(domainsJSON.String), &ev.Domains); err != nil {
				return nil, fmt.Errorf("failed to unmarshal domains for event %d: %w", ev.ID, err)
			}
		}
		ev.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for event %d: %w", ev.ID, err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// CountEventsSince returns how many events were recorded after t.
func (s *Store) CountEventsSince(t time.Time) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events WHERE created_at >= ?", t.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, wrapErr(err, "failed to count events")
	}
	return n, nil
}
