package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/alert"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deliver queued alerts now",
}

func sweepCommand(use, short string, run func(r *alert.Router, ctx context.Context) (int, error), what string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			p, err := newPipeline(ctx, st)
			if err != nil {
				return err
			}
			n, err := run(p.router, ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d change(s) sent in the %s\n", n, what)
			return nil
		},
	}
}

func init() {
	sweepCmd.AddCommand(sweepCommand("daily", "Send the daily digest of medium-priority changes",
		(*alert.Router).SweepDaily, "daily digest"))
	sweepCmd.AddCommand(sweepCommand("weekly", "Send the weekly summary of low-priority changes",
		(*alert.Router).SweepWeekly, "weekly summary"))
	sweepCmd.AddCommand(sweepCommand("pending", "Retry immediate delivery of unsent high-priority changes",
		(*alert.Router).DeliverPending, "immediate channel"))
}
