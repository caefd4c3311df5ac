package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailhead-labs/issuesync/internal/types"
	"github.com/trailhead-labs/issuesync/internal/ui"
)

var trackStatus string

var trackCmd = &cobra.Command{
	Use:   "track <issue-id> <owner/repo#number>",
	Short: "Start tracking an issue against a pull request",
	Long: `Track creates the canonical record that pull and push operate on. The
record starts in the lifecycle's initial state unless --status is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		issueID := args[0]

		ref, err := resolveRef(args[1])
		if err != nil {
			return err
		}

		spec, err := loadSpec()
		if err != nil {
			return err
		}

		status := spec.Initial()
		source := types.SourceGitHubLabel
		if trackStatus != "" {
			status = types.LifecycleState(trackStatus)
			if _, ok := spec.State(status); !ok {
				return fmt.Errorf("unknown lifecycle state %q", trackStatus)
			}
			// An operator-chosen starting status is a manual placement and
			// gets manual-protection until the first override.
			source = types.SourceManual
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now().UTC()
		rec := &types.CanonicalRecord{
			IssueID:      issueID,
			Status:       status,
			StatusSource: source,
			ExternalRef:  ref.String(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.CreateRecord(ctx, rec); err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(rec)
			return nil
		}
		fmt.Printf("%s tracking %s as %s (%s)\n",
			ui.RenderPass(ui.IconPass), issueID, ui.RenderState(status), ref)
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackStatus, "status", "", "Starting lifecycle state (default: the lifecycle's initial state)")
	rootCmd.AddCommand(trackCmd)
}
