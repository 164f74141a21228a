// Package watcher keeps an active block in place and manages the daemon
// process.
//
// The Watcher follows the hosts file through fsnotify events on its parent
// directory, so replacements by rename are seen as well as in-place writes.
// Bursts of events are debounced; when they settle the Guard is asked whether
// the live file still carries the block it installed and, if not, to put it
// back.
//
// Key features:
//   - Directory watch that survives the hosts file being replaced
//   - Debounced checks (one check per burst of writes)
//   - Repair or warn-only mode
//   - Daemon mode support with PID file management
//
// Example usage:
//
//	w, err := watcher.New("/etc/hosts", machine, true)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := w.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package watcher
