package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/output"
	"github.com/blackwell-systems/pomoblock/internal/watcher"
)

var (
	sessionLength time.Duration

	sessionCmd = &cobra.Command{
		Use:   "session [site...]",
		Short: "Block sites for one focus session in the foreground",
		Long: `Block sites for a fixed time without the daemon, then restore the hosts
file. Without arguments the saved blocklist is used.

Ctrl+C ends the session early; the block is removed either way. The command
refuses to run while the daemon is running, since only one process may own
the hosts file.`,
		Example: `  # A standard 25 minute session
  pomoblock session

  # 50 minutes, two sites
  pomoblock session --for 50m reddit.com youtube.com`,
		RunE: runSession,
	}
)

func init() {
	sessionCmd.Flags().DurationVar(&sessionLength, "for", 25*time.Minute, "session length")
	RootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	if sessionLength <= 0 {
		return fmt.Errorf("--for must be positive")
	}

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return err
	}
	running, _ := watcher.IsDaemonRunning(pidFile)
	if !running {
		_, err := newClient().Status(cmd.Context())
		running = err == nil
	}
	if running {
		return fmt.Errorf("the daemon is running; use 'pomoblock start' and 'pomoblock stop' instead")
	}

	e, err := newEngine(cfg)
	if err != nil {
		return lockedError(err)
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportRecovery(os.Stdout, e.machine.Recover(ctx))

	domains := args
	if len(domains) == 0 && e.store != nil {
		if domains, err = e.store.GetBlocklist(); err != nil {
			return err
		}
	}

	countdown := output.NewCountdown(sessionLength, "")
	done := make(chan struct{})
	defer close(done)

	go func() {
		// Wait for the block to be installed before drawing.
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var end time.Time
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !e.machine.Status().Active {
					continue
				}
				if end.IsZero() {
					end = e.machine.Status().Since.Add(sessionLength)
				}
				countdown.Update(time.Until(end))
			}
		}
	}()

	res, err := e.service.RunSession(ctx, domains, sessionLength, cfg.ShutdownGrace)
	if !res.Success {
		return resultError(os.Stdout, res)
	}
	if err != nil {
		countdown.Finish("⚠ Session ended but the block could not be removed")
		return fmt.Errorf("%w\n  Action: run 'pomoblock force-clean'", err)
	}

	msg := fmt.Sprintf("✓ Session over after %s, %d sites unblocked", output.FormatDuration(sessionLength), len(res.Domains))
	if ctx.Err() != nil {
		msg = "✓ Session stopped early, sites unblocked"
	}
	countdown.Finish(msg)
	return nil
}
