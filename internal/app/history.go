package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/output"
)

var (
	historyLimit   int
	historyBackups bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent blocking events",
		Long: `List recent start, stop, force-clean, recovery and repair events, newest
first. With --backups, list the recorded hosts file backups instead.`,
		Example: `  pomoblock history
  pomoblock history --limit 50
  pomoblock history --backups`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of rows")
	historyCmd.Flags().BoolVar(&historyBackups, "backups", false, "list hosts file backups")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if historyBackups {
		snaps, err := st.ListSnapshots(historyLimit)
		if err != nil {
			return err
		}
		fmt.Print(output.RenderSnapshotTable(snaps))
		return nil
	}

	events, err := st.ListEvents(historyLimit)
	if err != nil {
		return err
	}
	fmt.Print(output.RenderEventTable(events))
	return nil
}
