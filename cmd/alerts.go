package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/ui/theme"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List delivered alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		changeID, _ := cmd.Flags().GetInt64("change")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		alerts, err := st.Repo().ListAlerts(cmd.Context(), changeID, limit)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts sent yet.")
			return nil
		}
		printAlerts(alerts)
		return nil
	},
}

func printAlerts(alerts []store.Alert) {
	fmt.Println(theme.Title.Render(fmt.Sprintf("%-5s  %-6s  %-8s  %-14s  %-19s  %s",
		"ID", "Change", "Priority", "Channel", "Sent", "Batch")))
	fmt.Println(theme.Rule.Render(strings.Repeat("─", 96)))
	for _, a := range alerts {
		fmt.Printf("%-5d  %-6d  %s  %-14s  %-19s  %s\n",
			a.ID,
			a.ChangeID,
			theme.Priority(a.Priority, 8),
			a.DeliveryType,
			a.SentAt.Local().Format("2006-01-02 15:04:05"),
			a.BatchID,
		)
	}
}

func init() {
	alertsCmd.Flags().IntP("limit", "n", 20, "Number of alerts to show")
	alertsCmd.Flags().Int64("change", 0, "Only show alerts for this change ID")
}
