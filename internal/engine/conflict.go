package engine

import (
	"context"
	"fmt"

	"github.com/trailhead-labs/issuesync/internal/types"
)

// DryRunConflictID is the sentinel conflict identifier returned when a
// dry-run pass detects a conflict but materializes nothing.
const DryRunConflictID = "dry-run"

// recordConflict persists the audit event for a blocked transition and
// then materializes the conflict row, in that order: if the conflict
// insert fails, the audit trail still shows the decision.
//
// In dry-run mode neither is persisted; only the sentinel conflict ID is
// returned so callers can tell the conflict from a committed one.
func (e *Engine) recordConflict(ctx context.Context, event *types.SyncAuditEvent, conflict *types.SyncConflict, dryRun bool) (int64, string, error) {
	if dryRun {
		return 0, DryRunConflictID, nil
	}

	auditID, err := e.deps.Audit.RecordEvent(ctx, event)
	if err != nil {
		return 0, "", fmt.Errorf("failed to record audit event: %w", err)
	}

	conflictID, err := e.deps.Conflicts.CreateConflict(ctx, conflict)
	if err != nil {
		return auditID, "", fmt.Errorf("failed to create conflict: %w", err)
	}
	return auditID, conflictID, nil
}
