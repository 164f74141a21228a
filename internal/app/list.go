package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/output"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Show or edit the saved blocklist",
		Long: `Show the sites that 'pomoblock start' blocks when no sites are given.

Until the list is edited the default list applies (default_domains in the
config file, or a built-in list of common distractions).`,
		Args: cobra.NoArgs,
		RunE: runListShow,
	}

	listShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the blocklist",
		Args:  cobra.NoArgs,
		RunE:  runListShow,
	}

	listAddCmd = &cobra.Command{
		Use:     "add <site>...",
		Short:   "Add sites to the blocklist",
		Example: `  pomoblock list add reddit.com https://news.ycombinator.com/`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runListAdd,
	}

	listRemoveCmd = &cobra.Command{
		Use:     "remove <site>...",
		Aliases: []string{"rm"},
		Short:   "Remove sites from the blocklist",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runListRemove,
	}

	listResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Go back to the default blocklist",
		Args:  cobra.NoArgs,
		RunE:  runListReset,
	}
)

func init() {
	listCmd.AddCommand(listShowCmd)
	listCmd.AddCommand(listAddCmd)
	listCmd.AddCommand(listRemoveCmd)
	listCmd.AddCommand(listResetCmd)
	RootCmd.AddCommand(listCmd)
}

func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	st.SetDefaultBlocklist(cfg.DefaultDomains)
	return st, nil
}

func runListShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	domains, err := st.GetBlocklist()
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Println("The blocklist is empty. Add sites with 'pomoblock list add'.")
		return nil
	}
	fmt.Print(output.RenderDomainList(domains))
	return nil
}

func runListAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	current, err := st.GetBlocklist()
	if err != nil {
		return err
	}
	added, err := hosts.NewEntrySet(args)
	if err != nil {
		return err
	}

	merged, err := hosts.NewEntrySet(append(current, added...))
	if err != nil {
		return err
	}
	if err := st.SetBlocklist(merged); err != nil {
		return err
	}

	fmt.Printf("✓ Blocklist has %d sites\n", len(merged))
	if status, err := newClient().Status(cmd.Context()); err == nil && status.Active {
		fmt.Println("  Blocking is on; changes apply to the next 'pomoblock start'.")
	}
	return nil
}

func runListRemove(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	current, err := st.GetBlocklist()
	if err != nil {
		return err
	}
	remove, err := hosts.NewEntrySet(args)
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(remove))
	for _, d := range remove {
		drop[d] = struct{}{}
	}
	kept := make([]string, 0, len(current))
	for _, d := range current {
		if _, ok := drop[d]; ok {
			continue
		}
		kept = append(kept, d)
	}

	if len(kept) == len(current) {
		fmt.Println("None of those sites are in the blocklist.")
		return nil
	}
	if err := st.SetBlocklist(kept); err != nil {
		return err
	}
	fmt.Printf("✓ Removed %d sites, %d left\n", len(current)-len(kept), len(kept))
	return nil
}

func runListReset(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ResetBlocklist(); err != nil {
		return err
	}
	domains, err := st.GetBlocklist()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Blocklist reset to %d default sites\n", len(domains))
	return nil
}
