package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/schedule"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run detection and alert sweeps on their schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if doSync, _ := cmd.Flags().GetBool("sync"); doSync {
			if err := syncCompetitors(ctx, st); err != nil {
				return err
			}
		}

		p, err := newPipeline(ctx, st)
		if err != nil {
			return err
		}

		scfg := appConfig.Schedule
		scfg.Logger = logger
		if err := schedule.New(p.detector, p.router, scfg).Run(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("sync", false, "Sync the competitor file into the database before starting")
}
