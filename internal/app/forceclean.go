package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/config"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
)

var (
	forceCleanYes bool

	forceCleanCmd = &cobra.Command{
		Use:   "force-clean",
		Short: "Reset the hosts file to a clean default",
		Long: `Overwrite the hosts file with a minimal default (localhost entries only),
whatever pomoblock believes is blocked. Use this when the hosts file was
damaged or a block cannot be removed any other way.

Any custom entries in the hosts file are lost. The daemon does the reset
when it is running; otherwise it is done directly.`,
		Args: cobra.NoArgs,
		RunE: runForceClean,
	}

	checkAdminCmd = &cobra.Command{
		Use:   "check-admin",
		Short: "Check whether the hosts file can be changed",
		Long: `Report whether pomoblock can write the hosts file directly or needs the OS
to elevate each write, and whether the elevation helper is installed.`,
		Args: cobra.NoArgs,
		RunE: runCheckAdmin,
	}
)

func init() {
	forceCleanCmd.Flags().BoolVar(&forceCleanYes, "yes", false, "skip the confirmation prompt")

	RootCmd.AddCommand(forceCleanCmd)
	RootCmd.AddCommand(checkAdminCmd)
}

func runForceClean(cmd *cobra.Command, args []string) error {
	if !forceCleanYes && !confirm(stdin, os.Stdout, fmt.Sprintf("Reset %s to defaults? Custom entries will be lost.", cfg.HostsPath)) {
		fmt.Println("Cancelled.")
		return nil
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := withSpinner("Resetting hosts file", func() (blocker.Result, error) {
		return newClient().ForceClean(ctx)
	})
	if errors.Is(err, api.ErrDaemonNotRunning) {
		log.Debugf("daemon not running, resetting hosts file directly")
		res, err = withSpinner("Resetting hosts file", func() (blocker.Result, error) {
			return localForceClean(ctx)
		})
	}
	if err != nil {
		return daemonError(err)
	}
	return resultError(os.Stdout, res)
}

func localForceClean(ctx context.Context) (blocker.Result, error) {
	return localForceCleanWith(ctx, cfg)
}

func localForceCleanWith(ctx context.Context, c *config.Config) (blocker.Result, error) {
	e, err := newEngine(c)
	if err != nil {
		return blocker.Result{}, lockedError(err)
	}
	defer e.Close()
	return e.service.ForceCleanHosts(ctx), nil
}

func runCheckAdmin(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := newClient().CheckAdmin(ctx)
	if errors.Is(err, api.ErrDaemonNotRunning) {
		m := hosts.NewMutator(cfg.HostsPath, hosts.NewWriter(runtime.GOOS, cfg.HostsPath))
		a := m.CheckAccess()
		res = blocker.AdminCheck{Success: a.CanWrite, NeedsAdmin: a.NeedsAdmin, Writer: a.Writer, Error: a.Reason}
		err = nil
	}
	if err != nil {
		return daemonError(err)
	}

	fmt.Printf("Hosts file:   %s\n", cfg.HostsPath)
	fmt.Printf("Write method: %s\n", res.Writer)
	if res.NeedsAdmin {
		fmt.Println("Needs admin:  yes (each change asks for approval)")
	} else {
		fmt.Println("Needs admin:  no")
	}
	if !res.Success {
		return fmt.Errorf("cannot change the hosts file: %s", res.Error)
	}
	fmt.Println("✓ Blocking can be started")
	return nil
}
