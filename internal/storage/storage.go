// Package storage provides the persistence interfaces consumed by the
// sync engine.
//
// The engine never performs SQL itself; it reads and writes canonical
// records, audit events, and conflicts exclusively through these
// interfaces. Concrete implementations live in the memory and mysql
// sub-packages. Consumers depend on the interfaces rather than on a
// concrete type so that mocks and proxies can be substituted.
package storage

import (
	"context"
	"errors"

	"github.com/trailhead-labs/issuesync/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// RecordStore reads and writes canonical lifecycle records.
type RecordStore interface {
	// GetRecord returns the canonical record for an issue, or ErrNotFound.
	GetRecord(ctx context.Context, issueID string) (*types.CanonicalRecord, error)

	// CreateRecord inserts a new canonical record.
	CreateRecord(ctx context.Context, record *types.CanonicalRecord) error

	// UpdateRecord applies a partial field update to an existing record.
	// Recognized keys: status, status_source, external_status_raw,
	// external_status_updated_at. Unknown keys are an error, not ignored.
	UpdateRecord(ctx context.Context, issueID string, updates map[string]interface{}) error

	// ListRecords returns all records, for reporting commands.
	ListRecords(ctx context.Context) ([]*types.CanonicalRecord, error)
}

// AuditSink appends immutable reconciliation decisions. Events are never
// updated or deleted once written.
type AuditSink interface {
	RecordEvent(ctx context.Context, event *types.SyncAuditEvent) (int64, error)
	ListEvents(ctx context.Context, issueID string, limit int) ([]*types.SyncAuditEvent, error)
}

// ConflictStore materializes detected sync conflicts for operator review.
type ConflictStore interface {
	CreateConflict(ctx context.Context, conflict *types.SyncConflict) (string, error)
	ListConflicts(ctx context.Context, issueID string) ([]*types.SyncConflict, error)
}

// Store is the combined interface satisfied by full backends.
type Store interface {
	RecordStore
	AuditSink
	ConflictStore

	Close() error
}

// Recognized UpdateRecord field keys.
const (
	FieldStatus                  = "status"
	FieldStatusSource            = "status_source"
	FieldExternalStatusRaw       = "external_status_raw"
	FieldExternalStatusUpdatedAt = "external_status_updated_at"
)
