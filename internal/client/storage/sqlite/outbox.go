package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/models"
)

const outboxColumns = `id, operation_type, entity_type, local_entity_id,
	server_entity_id, parent_local_id, parent_server_id, endpoint, http_method,
	payload, priority, retry_count, max_retries, last_error, last_attempt_at,
	created_at`

func scanOperation(row rowScanner) (*models.PendingOperation, error) {
	var (
		op             models.PendingOperation
		serverEntityID sql.NullInt64
		parentServerID sql.NullInt64
		payload        sql.NullString
		lastAttemptAt  sql.NullInt64
		createdAt      int64
	)

	err := row.Scan(
		&op.ID, &op.Type, &op.EntityType, &op.LocalEntityID,
		&serverEntityID, &op.ParentLocalID, &parentServerID, &op.Endpoint,
		&op.Method, &payload, &op.Priority, &op.RetryCount, &op.MaxRetries,
		&op.LastError, &lastAttemptAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	if serverEntityID.Valid {
		op.ServerEntityID = &serverEntityID.Int64
	}
	if parentServerID.Valid {
		op.ParentServerID = &parentServerID.Int64
	}
	if payload.Valid {
		op.Payload = []byte(payload.String)
	}
	if lastAttemptAt.Valid {
		t := time.Unix(lastAttemptAt.Int64, 0).UTC()
		op.LastAttemptAt = &t
	}
	op.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &op, nil
}

// Enqueue inserts the operation after removing any pending operation for
// the same entity, so only the latest intent is ever replayed. The removal
// and the insert commit atomically: a mutation is either durably queued in
// full or not accepted at all.
func (s *Storage) Enqueue(ctx context.Context, op *models.PendingOperation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM outbox WHERE local_entity_id = ?`, op.LocalEntityID,
	); err != nil {
		return fmt.Errorf("failed to dedup outbox: %w", err)
	}

	op.Priority = op.Type.Priority()
	if op.MaxRetries == 0 {
		op.MaxRetries = models.DefaultMaxRetries
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	insert := `
		INSERT INTO outbox (
			operation_type, entity_type, local_entity_id, server_entity_id,
			parent_local_id, parent_server_id, endpoint, http_method,
			payload, priority, retry_count, max_retries, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	res, err := tx.ExecContext(ctx, insert,
		op.Type,
		op.EntityType,
		op.LocalEntityID,
		nullInt(op.ServerEntityID),
		op.ParentLocalID,
		nullInt(op.ParentServerID),
		op.Endpoint,
		op.Method,
		nullRaw(op.Payload),
		op.Priority,
		op.MaxRetries,
		op.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read operation id: %w", err)
	}
	op.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return nil
}

// NextBatch returns all pending operations in replay order: toggles first,
// creates/updates next, deletes last; creation order within a class.
func (s *Storage) NextBatch(ctx context.Context) ([]*models.PendingOperation, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox ORDER BY priority ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var ops []*models.PendingOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox: %w", err)
	}

	return ops, nil
}

// RecordFailure increments the retry counter and stores the error.
func (s *Storage) RecordFailure(ctx context.Context, id int64, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, last_attempt_at = ? WHERE id = ?`,
		message, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return requireOperationAffected(res)
}

// RemoveOperation drops the operation.
func (s *Storage) RemoveOperation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove operation: %w", err)
	}
	return requireOperationAffected(res)
}

// RemoveForEntity drops every pending operation for the entity.
func (s *Storage) RemoveForEntity(ctx context.Context, localEntityID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE local_entity_id = ?`, localEntityID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

// PendingCount reports the total number of queued operations.
func (s *Storage) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return count, nil
}

// CountForEntity reports queued operations for one entity.
func (s *Storage) CountForEntity(ctx context.Context, localEntityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE local_entity_id = ?`, localEntityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

// HasPending reports whether the entity has a queued operation.
func (s *Storage) HasPending(ctx context.Context, localEntityID string) (bool, error) {
	count, err := s.CountForEntity(ctx, localEntityID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func requireOperationAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrOperationNotFound
	}
	return nil
}
