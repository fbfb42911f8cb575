package main

import (
	"fmt"

	"github.com/agentuity/storefront-cache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newClearCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry from both tiers",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if !yes {
				if !tui.HasTTY {
					return errors.New("refusing to clear without a terminal, pass --yes")
				}
				ok, err := tui.Ask("Remove every cached entry?", false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), tui.Muted("nothing removed"))
					return nil
				}
			}
			n := a.store.Clear(cmd.Context())
			tui.ShowSuccess(cmd.OutOrStdout(), "removed %d entries", n)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newClearTenantCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-tenant <tenant-id>",
		Short: "Remove every tenant scoped entry of one tenant",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			n := a.store.ClearTenant(cmd.Context(), args[0])
			tui.ShowSuccess(cmd.OutOrStdout(), "removed %d entries for tenant %s", n, args[0])
			return nil
		}),
	}
}

func newInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <tenant-id> [products|orders|chat_messages]",
		Short: "Drop the cached data a tenant write makes stale",
		Long: "Without a data kind the whole tenant is cleared. With one, the tenant " +
			"bootstrap is dropped together with the key for that kind.",
		Args: cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var kind string
			if len(args) == 2 {
				kind = args[1]
			}
			a.store.InvalidateData(cmd.Context(), args[0], kind)
			if kind == "" {
				kind = "all data"
			}
			tui.ShowSuccess(cmd.OutOrStdout(), "invalidated %s for tenant %s", kind, args[0])
			return nil
		}),
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired and undecodable entries now",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			res := a.store.Sweep(cmd.Context())
			tui.ShowSuccess(cmd.OutOrStdout(), "removed %d from memory and %d from storage", res.MemoryRemoved, res.StorageRemoved)
			return nil
		}),
	}
}
