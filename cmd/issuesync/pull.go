package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/issuelock"
	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/types"
	"github.com/trailhead-labs/issuesync/internal/ui"
)

var (
	pullDryRun        bool
	pullAllowOverride bool
	pullReason        string
	pullRunID         string
)

var pullCmd = &cobra.Command{
	Use:   "pull [issue-id...]",
	Short: "Reconcile GitHub state into the canonical status",
	Long: `Pull fetches each issue's pull request snapshot, derives evidence from
it, and advances the canonical status where the lifecycle rules allow.

With no arguments, every record with an external reference is synced.
Transitions the rules reject are recorded as conflicts and reported;
they never fail the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), args, types.DirectionExternalToCanonical)
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullDryRun, "dry-run", false, "Report decisions without persisting anything")
	pullCmd.Flags().BoolVar(&pullAllowOverride, "allow-manual-override", false, "Let external evidence overwrite a manually-set status")
	pullCmd.Flags().StringVar(&pullReason, "reason", "", "Operator reason, satisfies reason-gated transitions")
	pullCmd.Flags().StringVar(&pullRunID, "run-id", "", "Run identifier recorded on audit events")
	rootCmd.AddCommand(pullCmd)
}

// syncTarget pairs an issue with its parsed external reference.
type syncTarget struct {
	issueID string
	ref     github.Ref
}

// resolveTargets maps issue IDs (or all records, when none are given) to
// sync targets. Records without an external ref are skipped with a note.
func resolveTargets(ctx context.Context, store storage.Store, args []string) ([]syncTarget, error) {
	var records []*types.CanonicalRecord
	if len(args) == 0 {
		all, err := store.ListRecords(ctx)
		if err != nil {
			return nil, err
		}
		records = all
	} else {
		for _, id := range args {
			rec, err := store.GetRecord(ctx, id)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	var targets []syncTarget
	for _, rec := range records {
		if rec.ExternalRef == "" {
			if !jsonOutput {
				fmt.Printf("%s %s: no external ref, skipped\n", ui.IconSkip, rec.IssueID)
			}
			continue
		}
		ref, err := resolveRef(rec.ExternalRef)
		if err != nil {
			return nil, fmt.Errorf("issue %s: %w", rec.IssueID, err)
		}
		targets = append(targets, syncTarget{issueID: rec.IssueID, ref: ref})
	}
	return targets, nil
}

// runSync drives one sync pass per target, bounded-parallel across
// issues with per-issue locking.
func runSync(ctx context.Context, args []string, direction types.SyncDirection) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	syncer, err := newSyncer(store)
	if err != nil {
		return err
	}

	targets, err := resolveTargets(ctx, store, args)
	if err != nil {
		return err
	}

	opts := types.SyncOptions{
		DryRun:              pullDryRun,
		AllowManualOverride: pullAllowOverride,
		Reason:              pullReason,
		RunID:               pullRunID,
		Actor:               cfg.Actor,
	}
	if direction == types.DirectionCanonicalToExternal {
		opts = types.SyncOptions{
			DryRun: pushDryRun,
			RunID:  pushRunID,
			Actor:  cfg.Actor,
		}
	}

	results := make([]*types.SyncResult, len(targets))
	locks := issuelock.NewSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, target := range targets {
		g.Go(func() error {
			locks.Lock(target.issueID)
			defer locks.Unlock(target.issueID)

			var result *types.SyncResult
			var err error
			if direction == types.DirectionExternalToCanonical {
				result, err = syncer.SyncExternalToCanonical(gctx, target.issueID, target.ref, opts)
			} else {
				result, err = syncer.SyncCanonicalToExternal(gctx, target.issueID, target.ref, opts)
			}
			if err != nil {
				return fmt.Errorf("issue %s: %w", target.issueID, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(results)
		return nil
	}
	renderResults(results)
	return nil
}

func renderResults(results []*types.SyncResult) {
	if len(results) == 0 {
		fmt.Println(ui.RenderMuted("nothing to sync"))
		return
	}

	changed, conflicts := 0, 0
	for _, r := range results {
		switch {
		case r.ConflictDetected:
			conflicts++
			fmt.Printf("%s %s: %s (conflict %s)\n",
				ui.RenderWarn(ui.IconWarn), r.IssueID, r.ConflictReason, r.ConflictID)
		case r.StatusChanged:
			changed++
			fmt.Printf("%s %s: %s -> %s\n",
				ui.RenderPass(ui.IconPass), r.IssueID,
				ui.RenderState(r.OldStatus), ui.RenderState(r.NewStatus))
		case r.Direction == types.DirectionCanonicalToExternal:
			fmt.Printf("%s %s: labels set for %s\n",
				ui.RenderPass(ui.IconPass), r.IssueID, ui.RenderState(r.NewStatus))
		default:
			fmt.Printf("%s %s: %s\n",
				ui.RenderMuted(ui.IconSkip), r.IssueID, ui.RenderMuted("up to date"))
		}
	}

	fmt.Println(ui.RenderSeparator())
	summary := fmt.Sprintf("%d synced, %d changed, %d conflicts", len(results), changed, conflicts)
	if results[0].DryRun {
		summary += " (dry run, nothing persisted)"
	}
	fmt.Println(ui.RenderMuted(summary))
}
