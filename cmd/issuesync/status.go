package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trailhead-labs/issuesync/internal/types"
	"github.com/trailhead-labs/issuesync/internal/ui"
)

var statusEventLimit int

var statusCmd = &cobra.Command{
	Use:   "status <issue-id>",
	Short: "Show an issue's canonical status, recent syncs, and conflicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		issueID := args[0]

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.GetRecord(ctx, issueID)
		if err != nil {
			return err
		}
		events, err := store.ListEvents(ctx, issueID, statusEventLimit)
		if err != nil {
			return err
		}
		conflicts, err := store.ListConflicts(ctx, issueID)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"record":    rec,
				"events":    events,
				"conflicts": conflicts,
			})
			return nil
		}

		fmt.Printf("%s %s\n", ui.RenderCategory(rec.IssueID), ui.RenderState(rec.Status))
		fmt.Printf("  source: %s\n", rec.StatusSource)
		if rec.ExternalRef != "" {
			fmt.Printf("  external: %s", ui.RenderAccent(rec.ExternalRef))
			if rec.ExternalStatusRaw != nil {
				fmt.Printf(" (%s, seen %s)", *rec.ExternalStatusRaw,
					rec.ExternalStatusUpdatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Println()
		}

		if len(conflicts) > 0 {
			fmt.Println(ui.RenderCategory("open conflicts"))
			for _, c := range conflicts {
				fmt.Printf("  %s %s: %s -> %s: %s\n",
					ui.RenderWarn(ui.IconWarn), c.ID,
					ui.RenderState(c.FromState), ui.RenderState(c.ToState),
					c.Description)
			}
		}

		if len(events) > 0 {
			fmt.Println(ui.RenderCategory("recent syncs"))
			for _, e := range events {
				fmt.Printf("  %s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), describeEvent(e))
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusEventLimit, "limit", 10, "Maximum audit events to show")
	rootCmd.AddCommand(statusCmd)
}

func describeEvent(e *types.SyncAuditEvent) string {
	var parts []string
	switch {
	case e.ConflictDetected:
		parts = append(parts, ui.RenderWarn("conflict"), e.ConflictReason)
	case e.StatusChanged:
		parts = append(parts, fmt.Sprintf("%s -> %s",
			ui.RenderState(e.OldStatus), ui.RenderState(e.NewStatus)))
	default:
		parts = append(parts, ui.RenderMuted("no change"))
	}
	if e.Actor != "" {
		parts = append(parts, ui.RenderMuted("by "+e.Actor))
	}
	return strings.Join(parts, " ")
}
