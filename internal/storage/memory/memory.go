// Package memory provides an in-memory storage backend, used by tests and
// by deployments that keep canonical state elsewhere and only want the
// reconciliation decision.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*types.CanonicalRecord
	events    []*types.SyncAuditEvent
	conflicts []*types.SyncConflict
	nextEvent int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records:   make(map[string]*types.CanonicalRecord),
		nextEvent: 1,
	}
}

// GetRecord returns a copy of the canonical record for an issue.
func (s *Store) GetRecord(_ context.Context, issueID string) (*types.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[issueID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", issueID, storage.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// CreateRecord inserts a new canonical record.
func (s *Store) CreateRecord(_ context.Context, record *types.CanonicalRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.IssueID]; exists {
		return fmt.Errorf("record %s already exists", record.IssueID)
	}
	cp := *record
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.records[record.IssueID] = &cp
	return nil
}

// UpdateRecord applies a partial field update to an existing record.
func (s *Store) UpdateRecord(_ context.Context, issueID string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[issueID]
	if !ok {
		return fmt.Errorf("record %s: %w", issueID, storage.ErrNotFound)
	}

	for key, value := range updates {
		switch key {
		case storage.FieldStatus:
			switch v := value.(type) {
			case types.LifecycleState:
				rec.Status = v
			case string:
				rec.Status = types.LifecycleState(v)
			default:
				return fmt.Errorf("field %s: unsupported value type %T", key, value)
			}
		case storage.FieldStatusSource:
			switch v := value.(type) {
			case types.StatusSource:
				rec.StatusSource = v
			case string:
				rec.StatusSource = types.StatusSource(v)
			default:
				return fmt.Errorf("field %s: unsupported value type %T", key, value)
			}
		case storage.FieldExternalStatusRaw:
			switch v := value.(type) {
			case *string:
				rec.ExternalStatusRaw = v
			case string:
				rec.ExternalStatusRaw = &v
			default:
				return fmt.Errorf("field %s: unsupported value type %T", key, value)
			}
		case storage.FieldExternalStatusUpdatedAt:
			ts, ok := value.(time.Time)
			if !ok {
				return fmt.Errorf("field %s: unsupported value type %T", key, value)
			}
			rec.ExternalStatusUpdatedAt = ts
		default:
			return fmt.Errorf("unknown record field %q", key)
		}
	}

	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// ListRecords returns all records sorted by issue ID.
func (s *Store) ListRecords(_ context.Context) ([]*types.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.CanonicalRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueID < out[j].IssueID })
	return out, nil
}

// RecordEvent appends an audit event and returns its assigned ID.
func (s *Store) RecordEvent(_ context.Context, event *types.SyncAuditEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	cp.ID = s.nextEvent
	s.nextEvent++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, &cp)
	return cp.ID, nil
}

// ListEvents returns audit events for an issue, most recent first.
func (s *Store) ListEvents(_ context.Context, issueID string, limit int) ([]*types.SyncAuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.SyncAuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].IssueID != issueID {
			continue
		}
		cp := *s.events[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CreateConflict materializes a conflict row and returns its ID.
func (s *Store) CreateConflict(_ context.Context, conflict *types.SyncConflict) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *conflict
	cp.ID = fmt.Sprintf("conflict-%d", len(s.conflicts)+1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.conflicts = append(s.conflicts, &cp)
	return cp.ID, nil
}

// ListConflicts returns conflicts for an issue in creation order.
// An empty issueID returns all conflicts.
func (s *Store) ListConflicts(_ context.Context, issueID string) ([]*types.SyncConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.SyncConflict
	for _, c := range s.conflicts {
		if issueID != "" && c.IssueID != issueID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
