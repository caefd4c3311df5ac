package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/types"
)

func newRecord(id string) *types.CanonicalRecord {
	return &types.CanonicalRecord{
		IssueID:      id,
		Status:       types.StateImplementing,
		StatusSource: types.SourceGitHubLabel,
		ExternalRef:  "acme/widgets#42",
	}
}

func TestRecordCRUD(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.CreateRecord(ctx, newRecord("is-1")))

	got, err := store.GetRecord(ctx, "is-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateImplementing, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	// Duplicate create fails.
	assert.Error(t, store.CreateRecord(ctx, newRecord("is-1")))

	// Missing record wraps ErrNotFound.
	_, err = store.GetRecord(ctx, "is-404")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRecord(ctx, newRecord("is-1")))

	raw := "merged"
	now := time.Now().UTC()
	err := store.UpdateRecord(ctx, "is-1", map[string]interface{}{
		storage.FieldStatus:                  types.StateDone,
		storage.FieldStatusSource:            types.SourceGitHubState,
		storage.FieldExternalStatusRaw:       &raw,
		storage.FieldExternalStatusUpdatedAt: now,
	})
	require.NoError(t, err)

	got, err := store.GetRecord(ctx, "is-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateDone, got.Status)
	assert.Equal(t, types.SourceGitHubState, got.StatusSource)
	require.NotNil(t, got.ExternalStatusRaw)
	assert.Equal(t, "merged", *got.ExternalStatusRaw)
	assert.Equal(t, now, got.ExternalStatusUpdatedAt)
}

func TestUpdateRecordRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRecord(ctx, newRecord("is-1")))

	err := store.UpdateRecord(ctx, "is-1", map[string]interface{}{"tittle": "typo"})
	assert.ErrorContains(t, err, "unknown record field")
}

func TestUpdateRecordNotFound(t *testing.T) {
	store := New()
	err := store.UpdateRecord(context.Background(), "is-404", map[string]interface{}{
		storage.FieldStatus: types.StateDone,
	})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestGetRecordReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateRecord(ctx, newRecord("is-1")))

	first, err := store.GetRecord(ctx, "is-1")
	require.NoError(t, err)
	first.Status = types.StateKilled

	second, err := store.GetRecord(ctx, "is-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateImplementing, second.Status, "mutating a returned record must not affect the store")
}

func TestAuditEvents(t *testing.T) {
	ctx := context.Background()
	store := New()

	id1, err := store.RecordEvent(ctx, &types.SyncAuditEvent{IssueID: "is-1", Direction: types.DirectionExternalToCanonical})
	require.NoError(t, err)
	id2, err := store.RecordEvent(ctx, &types.SyncAuditEvent{IssueID: "is-1", Direction: types.DirectionCanonicalToExternal})
	require.NoError(t, err)
	_, err = store.RecordEvent(ctx, &types.SyncAuditEvent{IssueID: "is-2"})
	require.NoError(t, err)

	assert.Greater(t, id2, id1)

	events, err := store.ListEvents(ctx, "is-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.DirectionCanonicalToExternal, events[0].Direction, "most recent first")

	limited, err := store.ListEvents(ctx, "is-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestConflicts(t *testing.T) {
	ctx := context.Background()
	store := New()

	id, err := store.CreateConflict(ctx, &types.SyncConflict{
		IssueID:   "is-1",
		Kind:      types.ConflictPreconditionFailed,
		FromState: types.StateVerified,
		ToState:   types.StateMergeReady,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	conflicts, err := store.ListConflicts(ctx, "is-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, types.ConflictPreconditionFailed, conflicts[0].Kind)

	none, err := store.ListConflicts(ctx, "is-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
