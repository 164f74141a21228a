// Package dnscache flushes the OS resolver cache after the hosts file changes.
// Flushing is best effort: failures are logged and never reported to callers.
package dnscache

import (
	"context"
	"os/exec"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const flushTimeout = 10 * time.Second

// flushFunc performs one platform flush attempt.
type flushFunc func(ctx context.Context) error

// Flusher invalidates resolver caches in the background.
type Flusher struct {
	enabled bool
	flush   flushFunc
	wg      sync.WaitGroup
}

// New returns a Flusher for the running OS. A disabled Flusher does nothing.
func New(enabled bool) *Flusher {
	return &Flusher{
		enabled: enabled,
		flush:   platformFlush,
	}
}

// Flush starts a cache flush and returns immediately.
func (f *Flusher) Flush() {
	if f == nil || !f.enabled || f.flush == nil {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()

		if err := f.flush(ctx); err != nil {
			log.Debugf("dns cache flush failed: %v", err)
			return
		}
		log.Debugf("dns cache flushed")
	}()
}

// Wait blocks until in-flight flushes finish.
func (f *Flusher) Wait() {
	if f == nil {
		return
	}
	f.wg.Wait()
}

// runQuiet runs a command and discards its output.
func runQuiet(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
