package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/config"
	"github.com/blackwell-systems/pomoblock/internal/dnscache"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
	"github.com/blackwell-systems/pomoblock/internal/store"
	"github.com/blackwell-systems/pomoblock/internal/watcher"
)

// engine wires the blocking stack for one process. Only the daemon, the
// session command and a local force clean build one; other commands talk to
// the daemon. An engine holds the lock file for its whole life.
type engine struct {
	lock    *watcher.Lock
	store   *store.Store
	mutator *hosts.Mutator
	backups *snapshots.Manager
	flusher *dnscache.Flusher
	machine *blocker.Machine
	service *blocker.Service
}

// newEngine builds the stack described by c. History is optional: if the
// database cannot be opened the engine still works without it.
func newEngine(c *config.Config) (*engine, error) {
	if c.HostsPath == "" {
		return nil, fmt.Errorf("%w: %s", hosts.ErrUnsupportedPlatform, runtime.GOOS)
	}
	if c.LockPath == "" {
		return nil, errors.New("no lock file path configured")
	}

	lock, err := watcher.AcquireLock(c.LockPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(c.DBPath)
	if err != nil {
		log.Warnf("history disabled: %v", err)
		st = nil
	}
	if st != nil {
		st.SetDefaultBlocklist(c.DefaultDomains)
	}

	writer := hosts.NewWriter(runtime.GOOS, c.HostsPath)
	mut := hosts.NewMutator(c.HostsPath, writer)
	log.Debugf("hosts file %s, writer %s", c.HostsPath, writer.Name())

	e := &engine{
		lock:    lock,
		store:   st,
		mutator: mut,
		backups: snapshots.New(mut, st, c.BackupPath),
		flusher: dnscache.New(c.FlushDNS),
	}

	opts := []blocker.Option{
		blocker.WithFlusher(e.flusher),
		blocker.WithHardenStop(c.HardenStop),
	}
	if st != nil {
		opts = append(opts, blocker.WithRecorder(st))
	}
	e.machine = blocker.New(mut, e.backups, opts...)
	e.service = blocker.NewService(e.machine)
	return e, nil
}

// Close waits for pending DNS flushes, closes the database and releases the
// lock file.
func (e *engine) Close() error {
	e.flusher.Wait()
	var err error
	if e.store != nil {
		err = e.store.Close()
	}
	if lerr := e.lock.Release(); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

// lockedError explains a lock held by another pomoblock process.
func lockedError(err error) error {
	if errors.Is(err, watcher.ErrLocked) {
		return fmt.Errorf("%w\n  Another 'pomoblock session' or daemon is running; stop it first or use 'pomoblock start' and 'pomoblock stop'", err)
	}
	return err
}

// reportRecovery prints what startup recovery did, if anything.
func reportRecovery(w io.Writer, rep blocker.RecoveryReport) {
	switch rep.Action {
	case blocker.RecoveryRestored:
		fmt.Fprintf(w, "✓ Removed a block left by an earlier run (%d sites, from %s)\n", len(rep.Domains), rep.Source)
	case blocker.RecoveryFailed:
		fmt.Fprintf(w, "⚠ Could not check the hosts file for a leftover block: %v\n", rep.Err)
		fmt.Fprintln(w, "  Action: run 'pomoblock force-clean'")
	}
}

// resultError prints a successful result or turns a failed one into an
// error with a hint for the common causes.
func resultError(w io.Writer, res blocker.Result) error {
	if res.Success {
		if res.Message != "" {
			fmt.Fprintf(w, "✓ %s\n", capitalize(res.Message))
		}
		return nil
	}

	switch res.Code {
	case blocker.CodePermissionDenied:
		return fmt.Errorf("%s\n  The administrator prompt was dismissed or refused; nothing was changed", res.Error)
	case blocker.CodeNoBackup:
		return fmt.Errorf("%s\n  Action: run 'pomoblock force-clean' to reset the hosts file", res.Error)
	case blocker.CodeEmptyDomainList:
		return fmt.Errorf("%s\n  Action: pass sites as arguments or add them with 'pomoblock list add'", res.Error)
	}
	return errors.New(res.Error)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// confirm asks a yes/no question on stdin.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

var stdin io.Reader = os.Stdin
