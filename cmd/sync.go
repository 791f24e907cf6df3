package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/config"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Validate the competitor file and sync it into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if check, _ := cmd.Flags().GetBool("check"); check {
			cf, err := config.LoadCompetitors(appConfig.CompetitorsFile)
			if err != nil {
				return err
			}
			assets := 0
			for _, c := range cf.Competitors {
				assets += len(c.Assets)
			}
			fmt.Printf("%s: %d competitors, %d assets OK\n", appConfig.CompetitorsFile, len(cf.Competitors), assets)
			return nil
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return syncCompetitors(cmd.Context(), st)
	},
}

func syncCompetitors(ctx context.Context, st *store.Store) error {
	cf, err := config.LoadCompetitors(appConfig.CompetitorsFile)
	if err != nil {
		return err
	}
	rep, err := config.Sync(ctx, st, cf)
	if err != nil {
		return err
	}
	logger.Info("competitors synced",
		zap.String("file", appConfig.CompetitorsFile),
		zap.Int("competitors_created", rep.CompetitorsCreated),
		zap.Int("assets_created", rep.AssetsCreated),
		zap.Int("assets_updated", rep.AssetsUpdated),
		zap.Int("assets_deactivated", rep.AssetsDeactivated),
	)
	return nil
}

func init() {
	syncCmd.Flags().Bool("check", false, "Only validate the competitor file")
}
