// Package blocker owns the blocking state and serializes every change to the
// hosts file. A Machine is the only writer: callers reach it through Service,
// the API server, the tamper watcher or the session command.
package blocker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

// Event kinds recorded for each committed or failed transition.
const (
	KindStart      = "start"
	KindStop       = "stop"
	KindForceClean = "force_clean"
	KindRecover    = "recover"
	KindRepair     = "repair"
)

// Option configures a Machine.
type Option func(*Machine)

// WithFlusher sets the DNS cache invalidator called after each write.
func WithFlusher(f CacheFlusher) Option {
	return func(m *Machine) { m.flusher = f }
}

// WithRecorder sets where transition events are stored.
func WithRecorder(r EventRecorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// WithHardenStop makes Stop clean up a marker block left by another process
// even when this Machine is idle.
func WithHardenStop(enabled bool) Option {
	return func(m *Machine) { m.hardenStop = enabled }
}

// Machine is the blocking state machine.
type Machine struct {
	// opSem is a one-slot semaphore held for the whole read-modify-write of
	// every mutation. Waiting for it honours ctx.
	opSem chan struct{}

	stateMu sync.RWMutex
	state   State

	hosts      HostsMutator
	backups    BackupStore
	flusher    CacheFlusher
	recorder   EventRecorder
	hardenStop bool
	now        func() time.Time
}

// New creates an idle Machine.
func New(h HostsMutator, b BackupStore, opts ...Option) *Machine {
	m := &Machine{
		opSem:      make(chan struct{}, 1),
		hosts:      h,
		backups:    b,
		hardenStop: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status returns a copy of the current state.
func (m *Machine) Status() Status {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	s := m.state.clone()
	return Status{Active: s.Active, Domains: s.Domains, Since: s.Since}
}

func (m *Machine) snapshot() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state.clone()
}

func (m *Machine) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

func (m *Machine) setIdle() {
	m.setState(State{})
}

// Start installs a marker block for domains. While already blocking it is a
// no-op that reports the domains in effect.
func (m *Machine) Start(ctx context.Context, domains []string) (Outcome, error) {
	if len(domains) == 0 {
		return Outcome{}, ErrEmptyDomainList
	}
	set, err := hosts.NewEntrySet(domains)
	if err != nil {
		return Outcome{}, err
	}
	if len(set) == 0 {
		return Outcome{}, ErrEmptyDomainList
	}

	if err := m.lock(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.unlock()

	if cur := m.snapshot(); cur.Active {
		log.Infof("start requested while already blocking %d domains, ignoring", len(cur.Domains))
		return Outcome{
			Message: "already blocking",
			Domains: cur.Domains,
		}, nil
	}

	snap, err := m.backups.EnsureBackup(KindStart)
	if err != nil {
		err = fmt.Errorf("failed to back up hosts file: %w", err)
		m.record(KindStart, set, "", err)
		return Outcome{}, err
	}

	if err := m.hosts.Install(ctx, snap.Content, set); err != nil {
		m.record(KindStart, set, "", err)
		return Outcome{}, err
	}

	m.setState(State{
		Active:  true,
		Domains: append([]string(nil), set...),
		Backup:  snap,
		Since:   m.now(),
	})
	m.flush()

	msg := fmt.Sprintf("blocking %d sites", len(set))
	m.record(KindStart, set, msg, nil)
	return Outcome{Changed: true, Message: msg, Domains: append([]string(nil), set...)}, nil
}

// Stop restores the backed-up hosts content. A failed restore leaves the
// Machine blocking so the caller can retry.
func (m *Machine) Stop(ctx context.Context) (Outcome, error) {
	if err := m.lock(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.unlock()

	cur := m.snapshot()
	if !cur.Active {
		if m.hardenStop {
			return m.cleanStray(ctx)
		}
		return Outcome{Message: "nothing to do"}, nil
	}

	snap := cur.Backup
	if snap == nil {
		var err error
		snap, err = m.backups.Load()
		if err != nil {
			m.record(KindStop, cur.Domains, "", err)
			return Outcome{}, err
		}
	}

	if err := m.hosts.Restore(ctx, snap.Content); err != nil {
		m.record(KindStop, cur.Domains, "", err)
		return Outcome{}, err
	}

	m.setIdle()
	m.flush()

	msg := fmt.Sprintf("unblocked %d sites", len(cur.Domains))
	m.record(KindStop, cur.Domains, msg, nil)
	return Outcome{Changed: true, Message: msg, Domains: cur.Domains}, nil
}

// cleanStray removes a marker block this Machine did not install. Caller
// holds the operation slot.
func (m *Machine) cleanStray(ctx context.Context) (Outcome, error) {
	live, err := m.hosts.Read()
	if err != nil || !hosts.HasBlock(live) {
		return Outcome{Message: "nothing to do"}, nil
	}

	stray := hosts.BlockedDomains(live)
	content, source := m.restoreContent(live)
	if err := m.hosts.Restore(ctx, content); err != nil {
		m.record(KindStop, stray, "", err)
		return Outcome{}, err
	}
	m.flush()

	msg := fmt.Sprintf("removed a leftover block (%s)", source)
	log.Warnf("stop: %s for %d domains", msg, len(stray))
	m.record(KindStop, stray, msg, nil)
	return Outcome{Changed: true, Message: msg, Domains: stray}, nil
}

// restoreContent picks what to write over a blocked live file: the durable
// backup when there is one, otherwise live with its blocks stripped.
func (m *Machine) restoreContent(live string) (string, snapshots.Source) {
	snap, err := m.backups.Load()
	if err == nil {
		return snap.Content, snap.Source
	}
	if !errors.Is(err, snapshots.ErrNoBackup) {
		log.Warnf("failed to load hosts backup, stripping block instead: %v", err)
	}
	return hosts.Strip(live), snapshots.SourceStripped
}

// ForceClean overwrites the hosts file with default content whatever the
// current state. On success the Machine is idle and the default content is
// the new backup baseline.
func (m *Machine) ForceClean(ctx context.Context) (Outcome, error) {
	if err := m.lock(ctx); err != nil {
		return Outcome{}, err
	}
	defer m.unlock()

	cur := m.snapshot()
	if err := m.hosts.ForceClean(ctx); err != nil {
		m.record(KindForceClean, cur.Domains, "", err)
		return Outcome{}, err
	}

	m.setIdle()
	m.flush()

	if err := m.backups.Replace(hosts.DefaultContent(m.hosts.LineEnding()), KindForceClean); err != nil {
		log.Warnf("hosts reset but backup not updated: %v", err)
	}

	msg := "hosts file reset to defaults"
	m.record(KindForceClean, cur.Domains, msg, nil)
	return Outcome{Changed: true, Message: msg}, nil
}

// RecoveryAction says what Recover did.
type RecoveryAction string

const (
	RecoveryNone     RecoveryAction = "none"
	RecoveryRestored RecoveryAction = "restored"
	RecoveryBaseline RecoveryAction = "baseline"
	RecoveryFailed   RecoveryAction = "failed"
)

// RecoveryReport summarizes a Recover run for display.
type RecoveryReport struct {
	Action  RecoveryAction
	Source  snapshots.Source
	Domains []string
	Err     error
}

// Recover undoes a block left by a process that exited while blocking, or
// records the clean live file as the backup baseline. Failures are logged
// and reported, never returned.
func (m *Machine) Recover(ctx context.Context) RecoveryReport {
	if err := m.lock(ctx); err != nil {
		log.Errorf("startup recovery: %v", err)
		return RecoveryReport{Action: RecoveryFailed, Err: err}
	}
	defer m.unlock()

	if m.snapshot().Active {
		log.Debugf("recover skipped, blocking is active in this process")
		return RecoveryReport{Action: RecoveryNone}
	}

	live, err := m.hosts.Read()
	if err != nil {
		log.Errorf("startup recovery: %v", err)
		return RecoveryReport{Action: RecoveryFailed, Err: err}
	}

	if !hosts.HasBlock(live) {
		snap, err := m.backups.EnsureBackup(KindRecover)
		if err != nil {
			log.Errorf("startup recovery: failed to record hosts baseline: %v", err)
			return RecoveryReport{Action: RecoveryFailed, Err: err}
		}
		m.setIdle()
		return RecoveryReport{Action: RecoveryBaseline, Source: snap.Source}
	}

	stale := hosts.BlockedDomains(live)
	content, source := m.restoreContent(live)
	if err := m.hosts.Restore(ctx, content); err != nil {
		log.Errorf("startup recovery: failed to remove leftover block: %v", err)
		m.record(KindRecover, stale, "", err)
		return RecoveryReport{Action: RecoveryFailed, Source: source, Domains: stale, Err: err}
	}

	m.setIdle()
	m.flush()

	msg := fmt.Sprintf("removed leftover block from %s", source)
	log.Warnf("startup recovery: %s (%d domains)", msg, len(stale))
	m.record(KindRecover, stale, msg, nil)
	return RecoveryReport{Action: RecoveryRestored, Source: source, Domains: stale}
}

// Repair reinstalls the recorded block when it was removed or damaged by
// another program while blocking. It reports whether a write happened.
func (m *Machine) Repair(ctx context.Context) (bool, error) {
	if err := m.lock(ctx); err != nil {
		return false, err
	}
	defer m.unlock()

	cur := m.snapshot()
	if !cur.Active {
		return false, nil
	}

	live, err := m.hosts.Read()
	if err != nil {
		return false, err
	}
	if intact(live, cur) {
		return false, nil
	}

	// A clean live file is the new baseline; a damaged one keeps the old backup.
	backup := cur.Backup
	if !hosts.HasBlock(live) {
		snap, err := m.backups.EnsureBackup(KindRepair)
		if err != nil {
			m.record(KindRepair, cur.Domains, "", err)
			return false, err
		}
		backup = snap
	}

	if err := m.hosts.Install(ctx, backup.Content, hosts.EntrySet(cur.Domains)); err != nil {
		m.record(KindRepair, cur.Domains, "", err)
		return false, err
	}

	cur.Backup = backup
	m.setState(cur)
	m.flush()

	msg := "reinstalled block after external change"
	log.Warnf("repair: %s", msg)
	m.record(KindRepair, cur.Domains, msg, nil)
	return true, nil
}

// Intact reports whether the live hosts file matches the state: one block
// with the recorded domains while blocking, anything while idle. While a
// mutation is in flight the file is reported intact; that mutation's own
// write triggers the next check.
func (m *Machine) Intact() (bool, error) {
	if !m.tryLock() {
		return true, nil
	}
	defer m.unlock()

	cur := m.snapshot()
	if !cur.Active {
		return true, nil
	}
	live, err := m.hosts.Read()
	if err != nil {
		return false, err
	}
	return intact(live, cur), nil
}

// lock takes the operation slot or gives up when ctx is done.
func (m *Machine) lock(ctx context.Context) error {
	if m.tryLock() {
		return nil
	}
	select {
	case m.opSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (m *Machine) tryLock() bool {
	select {
	case m.opSem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Machine) unlock() {
	<-m.opSem
}

func intact(live string, s State) bool {
	return hosts.CountBlocks(live) == 1 && sameDomains(hosts.BlockedDomains(live), s.Domains)
}

func sameDomains(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Machine) flush() {
	if m.flusher != nil {
		m.flusher.Flush()
	}
}

func (m *Machine) record(kind string, domains []string, msg string, opErr error) {
	if m.recorder == nil {
		return
	}

	ev := &store.Event{
		OpID:    uuid.NewString(),
		Kind:    kind,
		Domains: append([]string(nil), domains...),
		Success: opErr == nil,
		Message: msg,
	}
	if opErr != nil {
		ev.Error = opErr.Error()
	}

	if err := m.recorder.InsertEvent(ev); err != nil {
		log.Debugf("failed to record %s event: %v", kind, err)
	}
}
