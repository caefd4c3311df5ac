// Package mysql provides a MySQL-backed storage backend for canonical
// records, audit events, and conflicts.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver

	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// schema is applied idempotently on Open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS canonical_records (
		issue_id                   VARCHAR(128) PRIMARY KEY,
		status                     VARCHAR(64)  NOT NULL,
		status_source              VARCHAR(32)  NOT NULL,
		external_ref               VARCHAR(255) NOT NULL DEFAULT '',
		external_status_raw        VARCHAR(255) NULL,
		external_status_updated_at DATETIME(6)  NULL,
		created_at                 DATETIME(6)  NOT NULL,
		updated_at                 DATETIME(6)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_audit_events (
		id                 BIGINT AUTO_INCREMENT PRIMARY KEY,
		issue_id           VARCHAR(128) NOT NULL,
		direction          VARCHAR(32)  NOT NULL,
		old_status         VARCHAR(64)  NOT NULL,
		new_status         VARCHAR(64)  NOT NULL,
		status_changed     BOOLEAN      NOT NULL,
		transition_allowed BOOLEAN      NOT NULL,
		evidence           TEXT         NULL,
		conflict_detected  BOOLEAN      NOT NULL,
		conflict_reason    TEXT         NULL,
		dry_run            BOOLEAN      NOT NULL,
		run_id             VARCHAR(128) NOT NULL DEFAULT '',
		actor              VARCHAR(128) NOT NULL DEFAULT '',
		created_at         DATETIME(6)  NOT NULL,
		INDEX idx_audit_issue (issue_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_conflicts (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		issue_id    VARCHAR(128) NOT NULL,
		kind        VARCHAR(64)  NOT NULL,
		from_state  VARCHAR(64)  NOT NULL,
		to_state    VARCHAR(64)  NOT NULL,
		description TEXT         NOT NULL,
		created_at  DATETIME(6)  NOT NULL,
		INDEX idx_conflict_issue (issue_id)
	)`,
}

// Store is a MySQL implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// Open connects to MySQL with the given DSN and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// GetRecord returns the canonical record for an issue, or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, issueID string) (*types.CanonicalRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT issue_id, status, status_source, external_ref,
		       external_status_raw, external_status_updated_at,
		       created_at, updated_at
		FROM canonical_records WHERE issue_id = ?`, issueID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s: %w", issueID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", issueID, err)
	}
	return rec, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*types.CanonicalRecord, error) {
	var rec types.CanonicalRecord
	var raw sql.NullString
	var extUpdated sql.NullTime
	err := row.Scan(&rec.IssueID, &rec.Status, &rec.StatusSource, &rec.ExternalRef,
		&raw, &extUpdated, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if raw.Valid {
		v := raw.String
		rec.ExternalStatusRaw = &v
	}
	if extUpdated.Valid {
		rec.ExternalStatusUpdatedAt = extUpdated.Time
	}
	return &rec, nil
}

// CreateRecord inserts a new canonical record.
func (s *Store) CreateRecord(ctx context.Context, record *types.CanonicalRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	created := record.CreatedAt
	if created.IsZero() {
		created = now
	}

	var raw interface{}
	if record.ExternalStatusRaw != nil {
		raw = *record.ExternalStatusRaw
	}
	var extUpdated interface{}
	if !record.ExternalStatusUpdatedAt.IsZero() {
		extUpdated = record.ExternalStatusUpdatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_records
			(issue_id, status, status_source, external_ref,
			 external_status_raw, external_status_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.IssueID, record.Status, record.StatusSource, record.ExternalRef,
		raw, extUpdated, created, now)
	if err != nil {
		return fmt.Errorf("failed to create record %s: %w", record.IssueID, err)
	}
	return nil
}

// UpdateRecord applies a partial field update to an existing record.
func (s *Store) UpdateRecord(ctx context.Context, issueID string, updates map[string]interface{}) error {
	setClause := ""
	args := make([]interface{}, 0, len(updates)+2)

	for key, value := range updates {
		var column string
		switch key {
		case storage.FieldStatus, storage.FieldStatusSource,
			storage.FieldExternalStatusRaw, storage.FieldExternalStatusUpdatedAt:
			column = key
		default:
			return fmt.Errorf("unknown record field %q", key)
		}
		if setClause != "" {
			setClause += ", "
		}
		setClause += column + " = ?"
		if p, ok := value.(*string); ok && p != nil {
			value = *p
		}
		args = append(args, value)
	}
	if setClause == "" {
		return nil
	}

	setClause += ", updated_at = ?"
	args = append(args, time.Now().UTC(), issueID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE canonical_records SET "+setClause+" WHERE issue_id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", issueID, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		// Either the record is missing or the update was a no-op; tell the
		// two cases apart so callers get ErrNotFound semantics.
		if _, getErr := s.GetRecord(ctx, issueID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// ListRecords returns all canonical records ordered by issue ID.
func (s *Store) ListRecords(ctx context.Context) ([]*types.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id, status, status_source, external_ref,
		       external_status_raw, external_status_updated_at,
		       created_at, updated_at
		FROM canonical_records ORDER BY issue_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.CanonicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordEvent appends an audit event and returns its assigned ID.
func (s *Store) RecordEvent(ctx context.Context, event *types.SyncAuditEvent) (int64, error) {
	created := event.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_audit_events
			(issue_id, direction, old_status, new_status, status_changed,
			 transition_allowed, evidence, conflict_detected, conflict_reason,
			 dry_run, run_id, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.IssueID, event.Direction, event.OldStatus, event.NewStatus,
		event.StatusChanged, event.TransitionAllowed, encodeEvidence(event.Evidence),
		event.ConflictDetected, event.ConflictReason, event.DryRun,
		event.RunID, event.Actor, created)
	if err != nil {
		return 0, fmt.Errorf("failed to record audit event: %w", err)
	}
	return res.LastInsertId()
}

// encodeEvidence renders the evidence map as stable "k=v" pairs.
func encodeEvidence(ev map[string]bool) string {
	if len(ev) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	// Stable order so identical evidence always serializes identically.
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		if out != "" {
			out += ","
		}
		out += fmt.Sprintf("%s=%t", k, ev[k])
	}
	return out
}

// ListEvents returns audit events for an issue, most recent first.
func (s *Store) ListEvents(ctx context.Context, issueID string, limit int) ([]*types.SyncAuditEvent, error) {
	query := `
		SELECT id, issue_id, direction, old_status, new_status, status_changed,
		       transition_allowed, conflict_detected, conflict_reason,
		       dry_run, run_id, actor, created_at
		FROM sync_audit_events WHERE issue_id = ? ORDER BY id DESC`
	args := []interface{}{issueID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.SyncAuditEvent
	for rows.Next() {
		var ev types.SyncAuditEvent
		var reason sql.NullString
		if err := rows.Scan(&ev.ID, &ev.IssueID, &ev.Direction, &ev.OldStatus,
			&ev.NewStatus, &ev.StatusChanged, &ev.TransitionAllowed,
			&ev.ConflictDetected, &reason, &ev.DryRun, &ev.RunID, &ev.Actor,
			&ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.ConflictReason = reason.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// CreateConflict materializes a conflict row and returns its ID.
func (s *Store) CreateConflict(ctx context.Context, conflict *types.SyncConflict) (string, error) {
	created := conflict.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_conflicts (issue_id, kind, from_state, to_state, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conflict.IssueID, conflict.Kind, conflict.FromState, conflict.ToState,
		conflict.Description, created)
	if err != nil {
		return "", fmt.Errorf("failed to create conflict: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read conflict id: %w", err)
	}
	return fmt.Sprintf("conflict-%d", id), nil
}

// ListConflicts returns conflicts for an issue in creation order.
func (s *Store) ListConflicts(ctx context.Context, issueID string) ([]*types.SyncConflict, error) {
	query := `SELECT id, issue_id, kind, from_state, to_state, description, created_at
		FROM sync_conflicts`
	var args []interface{}
	if issueID != "" {
		query += " WHERE issue_id = ?"
		args = append(args, issueID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.SyncConflict
	for rows.Next() {
		var c types.SyncConflict
		var id int64
		if err := rows.Scan(&id, &c.IssueID, &c.Kind, &c.FromState, &c.ToState,
			&c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.ID = fmt.Sprintf("conflict-%d", id)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
