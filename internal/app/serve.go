package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/config"
	"github.com/blackwell-systems/pomoblock/internal/logging"
	"github.com/blackwell-systems/pomoblock/internal/output"
	"github.com/blackwell-systems/pomoblock/internal/watcher"
)

var (
	serveDaemon      bool
	serveDaemonChild bool
	servePIDFile     string
	serveLogFile     string
	serveStop        bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon that owns the block",
		Long: `Run the pomoblock daemon. It holds the blocking state and answers start,
stop and status requests on a local socket.

On startup the daemon removes any block left by a run that did not exit
cleanly. While blocking it watches the hosts file and puts the block back if
another program removes it. On SIGINT/SIGTERM it removes the block before
exiting, retrying for up to shutdown_grace (default 10s).

Serve modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  pomoblock serve

  # Run as background daemon
  pomoblock serve --daemon

  # Stop running daemon
  pomoblock serve --stop`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "run as background daemon")
	serveCmd.Flags().BoolVar(&serveDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file path (default: ~/.pomoblock/daemon.pid)")
	serveCmd.Flags().StringVar(&serveLogFile, "daemon-out", "", "daemon stdout/stderr file (default: ~/.pomoblock/daemon.out)")
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "stop running daemon")

	// Hide the internal daemon-child flag from help
	serveCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePIDFile == "" {
		p, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		servePIDFile = p
	}
	if serveLogFile == "" {
		p, err := getDefaultOutFile()
		if err != nil {
			return fmt.Errorf("failed to get default output file path: %w", err)
		}
		serveLogFile = p
	}

	switch {
	case serveStop:
		return stopServeDaemon(cmd.Context())
	case serveDaemon:
		return startServeDaemon()
	}

	running, err := watcher.IsDaemonRunning(servePIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	// The child finds its own PID already written by the parent.
	if running && !serveDaemonChild {
		return fmt.Errorf("daemon already running (PID file: %s)", servePIDFile)
	}
	if err := watcher.WritePIDFile(servePIDFile, os.Getpid()); err != nil {
		return err
	}
	defer func() {
		if err := watcher.RemovePIDFile(servePIDFile); err != nil {
			log.Warn(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := io.Writer(os.Stdout)
	if serveDaemonChild {
		out = io.Discard
	} else {
		fmt.Println("Starting pomoblock daemon (press Ctrl+C to stop)...")
	}
	return serve(ctx, cfg, out)
}

// serve runs the daemon until ctx is done or a client asks it to exit.
func serve(ctx context.Context, c *config.Config, out io.Writer) error {
	e, err := newEngine(c)
	if err != nil {
		return lockedError(err)
	}
	defer e.Close()

	reportRecovery(out, e.machine.Recover(ctx))

	l, err := api.Listen(c.Socket)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Requests inherit gctx so a shutdown cancels one stuck on a prompt and
	// frees the machine for the final stop.
	srv := api.NewServer(e.service, e.store, cancel).WithBaseContext(gctx)

	w, err := watcher.New(c.HostsPath, e.machine, c.RepairOnTamper)
	if err != nil {
		l.Close()
		return err
	}

	fmt.Fprintf(out, "✓ Listening on %s\n", c.Socket)
	fmt.Fprintf(out, "  Hosts file: %s (%s)\n", c.HostsPath, e.mutator.Writer().Name())

	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("shutting down")

		shutdownErr := e.machine.Shutdown(context.Background(), c.ShutdownGrace)
		if shutdownErr != nil {
			log.Errorf("hosts file may still be blocked: %v", shutdownErr)
		}

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("api shutdown: %v", err)
		}
		return shutdownErr
	})

	err = g.Wait()
	if err != nil {
		fmt.Fprintf(out, "⚠ Daemon stopped with errors: %v\n", err)
		fmt.Fprintln(out, "  Action: run 'pomoblock force-clean' if sites are still blocked")
		return err
	}
	fmt.Fprintln(out, "✓ Daemon stopped")
	return nil
}

func stopServeDaemon(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	spinner := output.NewSpinner("Stopping daemon")
	spinner.Start()

	// Ask over the API first so the daemon can remove the block itself.
	actx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := newClient().Shutdown(actx)
	if err == nil {
		spinner.StopWithMessage("✓ Daemon stopping")
		return nil
	}
	if errors.Is(err, api.ErrDaemonNotRunning) {
		running, rerr := watcher.IsDaemonRunning(servePIDFile)
		if rerr != nil || !running {
			spinner.StopWithMessage("Daemon is not running")
			return nil
		}
	}

	log.Debugf("api shutdown failed, signalling process: %v", err)
	if err := watcher.StopDaemon(servePIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")
	return nil
}

func startServeDaemon() error {
	spinner := output.NewSpinner("Starting daemon")
	spinner.Start()

	args := []string{"serve", "--daemon-child", "--pid-file", servePIDFile}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	args = append(args,
		"--hosts", cfg.HostsPath,
		"--db", cfg.DBPath,
		"--socket", cfg.Socket,
		"--log-level", cfg.LogLevel,
	)
	if cfg.BackupPath != "" {
		args = append(args, "--backup", cfg.BackupPath)
	}

	logPath, err := daemonLogPath()
	if err != nil {
		spinner.Stop()
		return err
	}
	args = append(args, "--log-file", logPath)

	pid, err := watcher.StartDaemon(servePIDFile, serveLogFile, args...)
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\npomoblock daemon running (PID %d)\n", pid)
	fmt.Printf("  PID file: %s\n", servePIDFile)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Printf("\nTo stop: pomoblock serve --stop\n")
	return nil
}

// daemonLogPath is the configured log file, or ~/.pomoblock/daemon.log when
// logs would otherwise go to the console.
func daemonLogPath() (string, error) {
	if cfg.LogFile != "" && cfg.LogFile != logging.Console {
		return cfg.LogFile, nil
	}
	return getDefaultLogFile()
}
