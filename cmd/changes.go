package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/ui/theme"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Inspect and reclassify detected changes",
}

var changesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		assetID, _ := cmd.Flags().GetInt64("asset")
		priority, _ := cmd.Flags().GetString("priority")
		unsent, _ := cmd.Flags().GetBool("unsent")
		since, _ := cmd.Flags().GetDuration("since")

		f := store.ChangeFilter{
			AssetID:  assetID,
			Priority: store.Priority(strings.ToLower(priority)),
			Unsent:   unsent,
			Limit:    limit,
		}
		if f.Priority != "" && !f.Priority.Valid() {
			return fmt.Errorf("invalid --priority %q", priority)
		}
		if since > 0 {
			f.Since = time.Now().Add(-since)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		changes, err := st.Repo().ListChanges(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Println("No changes found.")
			return nil
		}

		fmt.Println(theme.Title.Render(fmt.Sprintf("%-5s  %-16s  %-16s  %-11s  %-8s  %-6s  %s",
			"ID", "Detected", "Company", "Category", "Priority", "State", "Summary")))
		fmt.Println(theme.Rule.Render(strings.Repeat("─", 110)))
		for _, c := range changes {
			fmt.Printf("%-5d  %-16s  %-16s  %-11s  %s  %s  %s\n",
				c.ID,
				c.DetectedAt.Local().Format("2006-01-02 15:04"),
				truncate(c.Company, 16),
				c.Category,
				theme.Priority(c.Priority, 8),
				state(c.Change, 6),
				truncate(c.Summary, 50),
			)
		}
		return nil
	},
}

func state(c store.Change, width int) string {
	switch {
	case c.Sent:
		return theme.Sent.Width(width).Render("sent")
	case c.SuppressedReason != "":
		return theme.Suppressed.Width(width).Render("supp")
	default:
		return theme.Body.Width(width).Render("queued")
	}
}

var changesViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View a change with its excerpts and diff metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		c, err := st.Repo().GetChange(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("change %d not found", id)
		}
		if err != nil {
			return err
		}

		row := func(label, value string) {
			fmt.Println(theme.Label.Render(label) + theme.Body.Render(value))
		}
		row("ID", strconv.FormatInt(c.ID, 10))
		row("Company", c.Company)
		row("Asset", fmt.Sprintf("%s %s", c.AssetType, c.AssetURL))
		row("Detected", c.DetectedAt.Local().Format("2006-01-02 15:04:05"))
		row("Category", string(c.Category))
		fmt.Println(theme.Label.Render("Priority") + theme.Priority(c.Priority, 8))
		row("Confidence", fmt.Sprintf("%.2f", c.Confidence))
		row("Changed", fmt.Sprintf("%.2f%%", c.ChangePercentage))
		row("Snapshots", fmt.Sprintf("%d -> %d", c.SnapshotBeforeID, c.SnapshotAfterID))
		row("Summary", c.Summary)
		row("Rationale", c.Rationale)
		if c.SuppressedReason != "" {
			row("Suppressed", c.SuppressedReason)
		}
		if c.Sent {
			row("Sent", c.SentAt.Local().Format("2006-01-02 15:04:05"))
		}

		sep := theme.Rule.Render(strings.Repeat("─", 60))
		section := func(title, body string) {
			fmt.Println()
			fmt.Println(sep)
			fmt.Println(theme.Title.Render(title))
			fmt.Println(sep)
			if body == "" {
				body = "(empty)"
			}
			fmt.Println(body)
		}
		section("BEFORE", c.BeforeExcerpt)
		section("AFTER", c.AfterExcerpt)
		section("DIFF METADATA", string(c.DiffMetadata))

		alerts, err := st.Repo().ListAlerts(ctx, c.ID, 0)
		if err != nil {
			return err
		}
		if len(alerts) > 0 {
			fmt.Println()
			printAlerts(alerts)
		}
		return nil
	},
}

var changesReclassifyCmd = &cobra.Command{
	Use:   "reclassify <id>",
	Short: "Classify a change again and route it unless it was already sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

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
		out, err := p.detector.Reclassify(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("change %d: %s", id, theme.Priority(out.Change.Priority, 0))
		if out.Decision != "" {
			fmt.Printf(" (%s)", out.Decision)
		}
		fmt.Printf("\n  %s\n", out.Change.Summary)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

func init() {
	changesListCmd.Flags().IntP("limit", "n", 20, "Number of changes to show")
	changesListCmd.Flags().Int64("asset", 0, "Filter by asset ID")
	changesListCmd.Flags().StringP("priority", "p", "", "Filter by priority (high, medium, low)")
	changesListCmd.Flags().Bool("unsent", false, "Only show changes not yet delivered")
	changesListCmd.Flags().Duration("since", 0, "Only show changes detected within this window (e.g. 24h)")

	changesCmd.AddCommand(changesListCmd)
	changesCmd.AddCommand(changesViewCmd)
	changesCmd.AddCommand(changesReclassifyCmd)
}
