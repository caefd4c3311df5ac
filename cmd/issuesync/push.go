package main

import (
	"github.com/spf13/cobra"

	"github.com/trailhead-labs/issuesync/internal/types"
)

var (
	pushDryRun bool
	pushRunID  string
)

var pushCmd = &cobra.Command{
	Use:   "push [issue-id...]",
	Short: "Project canonical statuses onto GitHub as labels",
	Long: `Push replaces each pull request's label set with the labels mapped to
the issue's canonical status. The external labels become a pure function
of canonical state; labels others added are removed.

With no arguments, every record with an external reference is pushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), args, types.DirectionCanonicalToExternal)
	},
}

func init() {
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Report label changes without applying them")
	pushCmd.Flags().StringVar(&pushRunID, "run-id", "", "Run identifier recorded on audit events")
	rootCmd.AddCommand(pushCmd)
}
