package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether sites are blocked",
	Long: `Display the daemon's blocking state: on or off, since when, and which
sites.

When the daemon is not running the hosts file is inspected directly and any
block found in it is reported.`,
	Example: `  # Check status
  pomoblock status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	st, err := newClient().Status(ctx)
	if err == nil {
		fmt.Print(output.RenderStatus(st))
		return nil
	}
	if !errors.Is(err, api.ErrDaemonNotRunning) {
		return daemonError(err)
	}

	fmt.Println("Daemon:    not running")

	m := hosts.NewMutator(cfg.HostsPath, &hosts.DirectWriter{})
	content, rerr := m.Read()
	if rerr != nil {
		return rerr
	}
	if !hosts.HasBlock(content) {
		fmt.Println("Blocking:  off")
		return nil
	}

	domains := hosts.BlockedDomains(content)
	fmt.Printf("Blocking:  leftover block in %s (%d sites)\n", cfg.HostsPath, len(domains))
	fmt.Print(output.RenderDomainList(domains))
	fmt.Println("\nStart the daemon to clean it up, or run 'pomoblock force-clean'.")
	return nil
}
