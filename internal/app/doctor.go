package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/output"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

var (
	doctorResetBackup bool

	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check that blocking can work on this system",
		Long: `Run a series of checks: the hosts file location, read and write access, a
leftover block, the backup file, the daemon and the database.

Exits non-zero when a check fails.

--reset-backup deletes the hosts backup file so the next start takes a fresh
one. It is refused while the hosts file carries a block.`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorResetBackup, "reset-backup", false, "delete the hosts backup file")
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if doctorResetBackup {
		return resetBackup()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	checks := doctorChecks(ctx)
	fmt.Print(output.RenderChecks(checks))

	failed := 0
	for _, c := range checks {
		if c.Status == output.CheckFail {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

func doctorChecks(ctx context.Context) []output.Check {
	var checks []output.Check
	add := func(name string, status output.CheckStatus, format string, args ...any) {
		checks = append(checks, output.Check{Name: name, Status: status, Detail: fmt.Sprintf(format, args...)})
	}

	if cfg.HostsPath == "" {
		add("Platform", output.CheckFail, "%s is not supported", runtime.GOOS)
		return checks
	}
	add("Platform", output.CheckOK, "%s, hosts file %s", runtime.GOOS, cfg.HostsPath)

	m := hosts.NewMutator(cfg.HostsPath, hosts.NewWriter(runtime.GOOS, cfg.HostsPath))
	content, err := m.Read()
	if err != nil {
		add("Hosts file", output.CheckFail, "%v", err)
	} else {
		add("Hosts file", output.CheckOK, "readable, %d bytes", len(content))
	}

	access := m.CheckAccess()
	switch {
	case !access.CanWrite:
		add("Write access", output.CheckFail, "%s", access.Reason)
	case access.NeedsAdmin:
		add("Write access", output.CheckWarn, "via %s, each change asks for approval", access.Writer)
	default:
		add("Write access", output.CheckOK, "direct")
	}

	backups := snapshots.New(m, nil, cfg.BackupPath)
	blocks := hosts.CountBlocks(content)
	switch {
	case err != nil:
	case blocks > 1:
		add("Block markers", output.CheckFail, "%d marker blocks found; run 'pomoblock force-clean'", blocks)
	case blocks == 1:
		add("Block markers", output.CheckWarn, "sites are blocked (%d)", len(hosts.BlockedDomains(content)))
	default:
		add("Block markers", output.CheckOK, "no block")
	}

	switch {
	case backups.Exists():
		add("Backup", output.CheckOK, "%s", backups.Path())
	case blocks > 0:
		add("Backup", output.CheckWarn, "missing; stopping will strip the block from the live file")
	default:
		add("Backup", output.CheckOK, "none needed")
	}

	status, err := api.NewClient(cfg.Socket).Status(ctx)
	switch {
	case errors.Is(err, api.ErrDaemonNotRunning):
		add("Daemon", output.CheckWarn, "not running ('pomoblock serve --daemon' to start it)")
	case err != nil:
		add("Daemon", output.CheckFail, "%v", err)
	case status.Active:
		add("Daemon", output.CheckOK, "running on %s, blocking %d sites", cfg.Socket, len(status.Domains))
	default:
		add("Daemon", output.CheckOK, "running on %s, idle", cfg.Socket)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		add("Database", output.CheckWarn, "%v (history disabled)", err)
		return checks
	}
	defer st.Close()
	n, err := st.CountEventsSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		add("Database", output.CheckWarn, "%v", err)
	} else {
		add("Database", output.CheckOK, "%s, %d events in the last day", cfg.DBPath, n)
	}

	return checks
}

// resetBackup discards the durable backup. With a block present the backup
// is the only clean copy, so it is kept.
func resetBackup() error {
	m := hosts.NewMutator(cfg.HostsPath, &hosts.DirectWriter{})
	content, err := m.Read()
	if err != nil {
		return err
	}
	if hosts.HasBlock(content) {
		return fmt.Errorf("the hosts file is blocked; run 'pomoblock stop' or 'pomoblock force-clean' first")
	}

	backups := snapshots.New(m, nil, cfg.BackupPath)
	if !backups.Exists() {
		fmt.Println("No backup to remove.")
		return nil
	}
	if err := backups.Discard(); err != nil {
		return err
	}
	fmt.Printf("✓ Removed %s\n", backups.Path())
	return nil
}
