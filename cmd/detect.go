package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/detect"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/ui/theme"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection cycle over all active assets, or one asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		assetID, _ := cmd.Flags().GetInt64("asset")

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

		if assetID != 0 {
			out, err := p.detector.DetectAsset(ctx, assetID)
			if err != nil {
				return err
			}
			printOutcomes([]detect.Outcome{*out})
			return nil
		}

		if n, err := p.detector.ClassifyPending(ctx); err != nil {
			return err
		} else if n > 0 {
			fmt.Printf("classified %d pending change(s)\n", n)
		}
		rep, err := p.detector.DetectAll(ctx)
		if err != nil {
			return err
		}
		printOutcomes(rep.Outcomes)
		fmt.Printf("\n%d assets, %d changes created, %d failed\n", rep.Assets, rep.Created, rep.Failed)
		return nil
	},
}

func printOutcomes(outcomes []detect.Outcome) {
	if len(outcomes) == 0 {
		fmt.Println("No active assets.")
		return
	}
	fmt.Println(theme.Title.Render(fmt.Sprintf("%-6s  %-22s  %-8s  %-7s  %-13s  %s",
		"Asset", "Status", "Change", "Pct", "Decision", "Summary")))
	fmt.Println(theme.Rule.Render(strings.Repeat("─", 100)))
	for _, o := range outcomes {
		change, pct, summary := "-", "-", ""
		if o.Change != nil {
			change = fmt.Sprintf("%d", o.Change.ID)
			pct = fmt.Sprintf("%.1f%%", o.Change.ChangePercentage)
			summary = truncate(o.Change.Summary, 40)
			if o.Degraded {
				summary += " " + theme.Hint.Render("(fallback)")
			}
		}
		decision := string(o.Decision)
		if decision == "" {
			decision = "-"
		}
		fmt.Printf("%-6d  %-22s  %-8s  %-7s  %-13s  %s\n",
			o.AssetID, o.Status, change, pct, decision, summary)
	}
}

func init() {
	detectCmd.Flags().Int64("asset", 0, "Only detect changes for this asset ID")
}
