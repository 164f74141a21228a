package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/config"
	"github.com/blackwell-systems/pomoblock/internal/logging"
)

var (
	cfgFile     string
	dbPath      string
	hostsPath   string
	backupPath  string
	socketAddr  string
	logLevel    string
	logFile     string
	timeoutFlag time.Duration

	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	// RootCmd is the root command for pomoblock
	RootCmd = &cobra.Command{
		Use:   "pomoblock",
		Short: "Block distracting sites during focus sessions",
		Long: `pomoblock blocks a list of sites for the length of a focus session by
adding entries to the system hosts file, and puts the original file back
afterwards.

A small daemon owns the block. Start it once, then use start and stop from
the command line or from a timer:

Quick Start:
  1. pomoblock serve --daemon
  2. pomoblock start            # blocks your saved list
  3. pomoblock stop

Or run a single session without the daemon:
  pomoblock session --for 25m

Writing the hosts file needs administrator rights. When pomoblock is not
running as root/Administrator it asks the OS to elevate each write (pkexec,
an administrator prompt on macOS, UAC on Windows).

If anything ever goes wrong, 'pomoblock force-clean' resets the hosts file
to a clean default.`,
		Example: `  # Block the saved list
  pomoblock start

  # Block specific sites
  pomoblock start reddit.com news.ycombinator.com

  # Check what is blocked
  pomoblock status

  # Edit the saved list
  pomoblock list add lobste.rs

  # One 50 minute session in the foreground
  pomoblock session --for 50m`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	// Global flags
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/pomoblock/config.yaml)")
	pf.StringVar(&dbPath, "db", "", "database path (default: ~/.pomoblock/pomoblock.db)")
	pf.StringVar(&hostsPath, "hosts", "", "hosts file to manage (default: the system hosts file)")
	pf.StringVar(&backupPath, "backup", "", "hosts backup file (default: <tempdir>/pomodoro_hosts_backup.txt)")
	pf.StringVar(&socketAddr, "socket", "", "daemon socket path or host:port")
	pf.StringVar(&logLevel, "log-level", "", "log level: panic, fatal, error, warn, info, debug, trace")
	pf.StringVar(&logFile, "log-file", "", "log file path, or 'console'")
	pf.DurationVar(&timeoutFlag, "timeout", 0, "give up on a request after this long (0 waits for the elevation prompt indefinitely)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads the config file, applies flag overrides and sets up
// logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	var (
		c    *config.Config
		path string
		err  error
	)
	if cfgFile != "" {
		path = cfgFile
		c, err = config.Load(path)
	} else {
		c, path, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	overrides := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"db", dbPath, &c.DBPath},
		{"hosts", hostsPath, &c.HostsPath},
		{"backup", backupPath, &c.BackupPath},
		{"socket", socketAddr, &c.Socket},
		{"log-level", logLevel, &c.LogLevel},
		{"log-file", logFile, &c.LogFile},
	}
	for _, o := range overrides {
		if f := cmd.Flags().Lookup(o.flag); f != nil && f.Changed {
			*o.dst = o.value
		}
	}

	if err := c.Resolve(); err != nil {
		return err
	}
	if err := logging.InitLog(c.LogLevel, c.LogFile); err != nil {
		return fmt.Errorf("invalid logging settings in %s: %w", path, err)
	}

	cfg = c
	return nil
}

// requestContext applies --timeout to ctx.
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeoutFlag > 0 {
		return context.WithTimeout(ctx, timeoutFlag)
	}
	return context.WithCancel(ctx)
}

func newClient() *api.Client {
	return api.NewClient(cfg.Socket)
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// getDefaultOutFile returns the file that receives the daemon's stdout and
// stderr
func getDefaultOutFile() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.out"), nil
}

// getDefaultLogFile returns the default daemon log file path
func getDefaultLogFile() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}
