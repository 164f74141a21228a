package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the hosts file must stay quiet before a check.
const DefaultDebounce = 500 * time.Millisecond

// Guard checks and restores the block owned by the state machine.
type Guard interface {
	Intact() (bool, error)
	Repair(ctx context.Context) (bool, error)
}

// Watcher reacts to external changes of the hosts file.
type Watcher struct {
	hostsPath string
	guard     Guard
	repair    bool
	debounce  time.Duration

	mu      sync.Mutex
	checks  int
	repairs int
}

// New creates a Watcher for hostsPath. With repair false, tampering is only
// logged.
func New(hostsPath string, g Guard, repair bool) (*Watcher, error) {
	if g == nil {
		return nil, fmt.Errorf("guard cannot be nil")
	}
	if hostsPath == "" {
		return nil, fmt.Errorf("hosts path cannot be empty")
	}
	return &Watcher{
		hostsPath: filepath.Clean(hostsPath),
		guard:     g,
		repair:    repair,
		debounce:  DefaultDebounce,
	}, nil
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// Watch the directory, not the file, since writers replace it by rename.
	dir := filepath.Dir(w.hostsPath)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Infof("watching %s for external changes", w.hostsPath)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			if filepath.Clean(event.Name) != w.hostsPath {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			log.Warnf("hosts watcher error: %v", err)
		case <-timer.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	w.mu.Lock()
	w.checks++
	w.mu.Unlock()

	ok, err := w.guard.Intact()
	if err != nil {
		log.Warnf("failed to inspect hosts file: %v", err)
		return
	}
	if ok {
		return
	}

	if !w.repair {
		log.Warnf("hosts file %s was changed by another program; block is incomplete", w.hostsPath)
		return
	}

	repaired, err := w.guard.Repair(ctx)
	if err != nil {
		log.Errorf("failed to repair hosts block: %v", err)
		return
	}
	if repaired {
		w.mu.Lock()
		w.repairs++
		w.mu.Unlock()
	}
}

// Stats returns how many checks and repairs have run.
func (w *Watcher) Stats() (checks, repairs int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checks, w.repairs
}
