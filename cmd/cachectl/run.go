package main

import (
	"github.com/agentuity/storefront-cache/sys"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var sweepNow bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep expired entries on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if a.cfg.Cache.SweepSchedule == "" {
				a.log.Warn("cache.sweep_schedule is empty, nothing will be swept")
			}
			if sweepNow {
				res := a.store.Sweep(cmd.Context())
				a.log.Info("initial sweep removed %d from memory and %d from storage", res.MemoryRemoved, res.StorageRemoved)
			}
			if err := a.store.Start(); err != nil {
				return err
			}
			a.log.Info("sweeping on schedule %q, interrupt to stop", a.cfg.Cache.SweepSchedule)
			select {
			case <-sys.CreateShutdownChannel():
			case <-cmd.Context().Done():
			}
			a.log.Info("shutting down")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&sweepNow, "sweep-now", false, "sweep once before waiting for the schedule")
	return cmd
}
