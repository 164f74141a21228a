package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/output"
)

var (
	startCmd = &cobra.Command{
		Use:   "start [site...]",
		Short: "Start blocking sites",
		Long: `Ask the daemon to block sites. Without arguments the saved blocklist is
used (see 'pomoblock list').

Each site is blocked with and without "www." for IPv4 and IPv6. If blocking is
already on, nothing changes and the sites currently blocked are reported.`,
		Example: `  # Block the saved list
  pomoblock start

  # Block two sites
  pomoblock start reddit.com news.ycombinator.com`,
		RunE: runStart,
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop blocking and restore the hosts file",
		Long: `Ask the daemon to put the original hosts file back.

If the restore fails the daemon keeps blocking so the command can be
retried. If nothing is blocked this is a no-op, except that a block left
behind by another run is cleaned up.`,
		Args: cobra.NoArgs,
		RunE: runStop,
	}
)

func init() {
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(stopCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	client := newClient()

	domains := args
	if len(domains) == 0 {
		saved, err := client.Blocklist(ctx)
		if err != nil {
			return daemonError(err)
		}
		domains = saved
	}

	res, err := withSpinner("Updating hosts file", func() (blocker.Result, error) {
		return client.Start(ctx, domains)
	})
	if err != nil {
		return daemonError(err)
	}
	if err := resultError(os.Stdout, res); err != nil {
		return err
	}
	if len(res.Domains) > 0 {
		fmt.Print(output.RenderDomainList(res.Domains))
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	res, err := withSpinner("Restoring hosts file", func() (blocker.Result, error) {
		return newClient().Stop(ctx)
	})
	if err != nil {
		return daemonError(err)
	}
	return resultError(os.Stdout, res)
}

// withSpinner runs a request that may wait on an elevation prompt.
func withSpinner(msg string, fn func() (blocker.Result, error)) (blocker.Result, error) {
	spinner := output.NewSpinner(msg).WithTimeout(timeoutFlag)
	spinner.Start()
	defer spinner.Stop()
	return fn()
}

// daemonError adds a hint to errors caused by a missing daemon or a timeout.
func daemonError(err error) error {
	switch {
	case errors.Is(err, api.ErrDaemonNotRunning):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timed out after %s waiting for the daemon (an administrator prompt may still be open)", timeoutFlag)
	}
	return err
}
