package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/models"
)

const entityColumns = `local_id, entity_type, server_id, version, sync_status,
	parent_local_id, parent_server_id, payload, conflict_snapshot,
	conflict_version, conflict_note, local_updated_at, last_synced_at,
	server_updated_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		e               models.Entity
		serverID        sql.NullInt64
		parentServerID  sql.NullInt64
		payload         string
		conflictSnap    sql.NullString
		conflictVersion sql.NullInt64
		localUpdatedAt  int64
		lastSyncedAt    sql.NullInt64
		serverUpdatedAt sql.NullInt64
		createdAt       int64
	)

	// payload and conflict_snapshot are TEXT; database/sql will not scan
	// into json.RawMessage directly, so they go through string.
	err := row.Scan(
		&e.LocalID, &e.Type, &serverID, &e.Version, &e.Status,
		&e.ParentLocalID, &parentServerID, &payload, &conflictSnap,
		&conflictVersion, &e.ConflictNote, &localUpdatedAt, &lastSyncedAt,
		&serverUpdatedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	e.Payload = json.RawMessage(payload)
	if serverID.Valid {
		e.ServerID = &serverID.Int64
	}
	if parentServerID.Valid {
		e.ParentServerID = &parentServerID.Int64
	}
	if conflictSnap.Valid {
		e.ConflictSnapshot = json.RawMessage(conflictSnap.String)
	}
	if conflictVersion.Valid {
		e.ConflictVersion = &conflictVersion.Int64
	}
	e.LocalUpdatedAt = time.Unix(localUpdatedAt, 0).UTC()
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastSyncedAt.Valid {
		t := time.Unix(lastSyncedAt.Int64, 0).UTC()
		e.LastSyncedAt = &t
	}
	if serverUpdatedAt.Valid {
		t := time.Unix(serverUpdatedAt.Int64, 0).UTC()
		e.ServerUpdatedAt = &t
	}

	return &e, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func nullRaw(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// CreateLocal inserts a locally created entity as PendingCreate, version 1.
func (s *Storage) CreateLocal(ctx context.Context, entity *models.Entity) error {
	now := time.Now().UTC()
	entity.Status = models.StatusPendingCreate
	entity.Version = 1
	entity.LocalUpdatedAt = now
	entity.CreatedAt = now

	query := `
		INSERT INTO entities (
			local_id, entity_type, server_id, version, sync_status,
			parent_local_id, parent_server_id, payload,
			local_updated_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entity.LocalID,
		entity.Type,
		nullInt(entity.ServerID),
		entity.Version,
		entity.Status,
		entity.ParentLocalID,
		nullInt(entity.ParentServerID),
		string(entity.Payload),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	return nil
}

// Get retrieves an entity by local id.
func (s *Storage) Get(ctx context.Context, localID string) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE local_id = ?`
	return scanEntity(s.db.QueryRowContext(ctx, query, localID))
}

// GetByServerID retrieves an entity by its server identity.
func (s *Storage) GetByServerID(ctx context.Context, entityType models.EntityType, serverID int64) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE entity_type = ? AND server_id = ?`
	return scanEntity(s.db.QueryRowContext(ctx, query, entityType, serverID))
}

func (s *Storage) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return entities, nil
}

// ListActive returns entities of the given type, excluding PendingDelete.
func (s *Storage) ListActive(ctx context.Context, entityType models.EntityType) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + `
		FROM entities
		WHERE entity_type = ? AND sync_status != ?
		ORDER BY created_at, local_id`
	return s.queryEntities(ctx, query, entityType, models.StatusPendingDelete)
}

// ListByStatus returns all entities in the given sync status.
func (s *Storage) ListByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + `
		FROM entities
		WHERE sync_status = ?
		ORDER BY created_at, local_id`
	return s.queryEntities(ctx, query, status)
}

// ListChildren returns active entities owned by the given parent.
func (s *Storage) ListChildren(ctx context.Context, parentLocalID string) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + `
		FROM entities
		WHERE parent_local_id = ? AND sync_status != ?
		ORDER BY created_at, local_id`
	return s.queryEntities(ctx, query, parentLocalID, models.StatusPendingDelete)
}

// StageChange replaces the payload and marks the entity pending.
func (s *Storage) StageChange(ctx context.Context, localID string, payload json.RawMessage) (*models.Entity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + entityColumns + ` FROM entities WHERE local_id = ?`
	entity, err := scanEntity(tx.QueryRowContext(ctx, query, localID))
	if err != nil {
		return nil, err
	}

	// An entity without a server identity stays PendingCreate no matter
	// how many times it is edited before the first push.
	status := models.StatusPendingUpdate
	if entity.ServerID == nil {
		status = models.StatusPendingCreate
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE entities SET payload = ?, sync_status = ?, local_updated_at = ? WHERE local_id = ?`,
		string(payload), status, now.Unix(), localID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to stage change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stage change: %w", err)
	}

	entity.Payload = payload
	entity.Status = status
	entity.LocalUpdatedAt = now
	return entity, nil
}

// StageDelete marks the entity PendingDelete; the record is retained until
// the server confirms the deletion so a retry still has something to push.
func (s *Storage) StageDelete(ctx context.Context, localID string) (*models.Entity, error) {
	entity, err := s.Get(ctx, localID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE entities SET sync_status = ?, local_updated_at = ? WHERE local_id = ?`,
		models.StatusPendingDelete, now.Unix(), localID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to stage delete: %w", err)
	}

	entity.Status = models.StatusPendingDelete
	entity.LocalUpdatedAt = now
	return entity, nil
}

// UpsertFromServer applies one pulled server record under the non-clobber
// rule: a pending local edit always wins until it has been pushed.
func (s *Storage) UpsertFromServer(ctx context.Context, incoming *models.Entity) (bool, error) {
	if incoming.ServerID == nil {
		return false, fmt.Errorf("server record for %s has no server id", incoming.Type)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + entityColumns + ` FROM entities WHERE entity_type = ? AND server_id = ?`
	existing, err := scanEntity(tx.QueryRowContext(ctx, query, incoming.Type, *incoming.ServerID))
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return false, err
	}

	now := time.Now().UTC()

	if existing == nil {
		insert := `
			INSERT INTO entities (
				local_id, entity_type, server_id, version, sync_status,
				parent_local_id, parent_server_id, payload,
				local_updated_at, last_synced_at, server_updated_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, insert,
			incoming.LocalID,
			incoming.Type,
			*incoming.ServerID,
			incoming.Version,
			models.StatusSynced,
			incoming.ParentLocalID,
			nullInt(incoming.ParentServerID),
			string(incoming.Payload),
			now.Unix(),
			now.Unix(),
			nullUnix(incoming.ServerUpdatedAt),
			now.Unix(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert server record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit upsert: %w", err)
		}
		return true, nil
	}

	switch {
	case existing.Status == models.StatusSynced:
		// Version only ever increases; a stale delta must not roll back.
		if incoming.Version < existing.Version {
			return false, nil
		}
		update := `
			UPDATE entities SET
				version = ?, payload = ?, parent_server_id = ?,
				last_synced_at = ?, server_updated_at = ?
			WHERE local_id = ?
		`
		_, err = tx.ExecContext(ctx, update,
			incoming.Version,
			string(incoming.Payload),
			nullInt(incoming.ParentServerID),
			now.Unix(),
			nullUnix(incoming.ServerUpdatedAt),
			existing.LocalID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to apply server record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit upsert: %w", err)
		}
		return true, nil

	case existing.Status == models.StatusConflicted:
		// Refresh the retained server snapshot; the local payload stays
		// untouched until the conflict is resolved.
		update := `
			UPDATE entities SET
				conflict_snapshot = ?, conflict_version = ?, server_updated_at = ?
			WHERE local_id = ?
		`
		_, err = tx.ExecContext(ctx, update,
			nullRaw(incoming.Payload),
			incoming.Version,
			nullUnix(incoming.ServerUpdatedAt),
			existing.LocalID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to refresh conflict snapshot: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit upsert: %w", err)
		}
		return false, nil

	default:
		// Pending local edit: the incoming server state is not applied.
		return false, nil
	}
}

// MarkSynced records a confirmed push or pull for the entity.
func (s *Storage) MarkSynced(ctx context.Context, localID string, serverID, version int64, serverUpdatedAt *time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE entities SET
			server_id = ?, version = ?, sync_status = ?,
			last_synced_at = ?, server_updated_at = ?,
			conflict_snapshot = NULL, conflict_version = NULL, conflict_note = ''
		WHERE local_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		serverID, version, models.StatusSynced,
		now.Unix(), nullUnix(serverUpdatedAt), localID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark synced: %w", err)
	}
	return requireAffected(res)
}

// MarkConflicted parks the entity in the Conflicted state.
func (s *Storage) MarkConflicted(ctx context.Context, localID string, snapshot json.RawMessage, serverVersion *int64, note string) error {
	query := `
		UPDATE entities SET
			sync_status = ?, conflict_snapshot = ?, conflict_version = ?, conflict_note = ?
		WHERE local_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		models.StatusConflicted, nullRaw(snapshot), nullInt(serverVersion), note, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conflicted: %w", err)
	}
	return requireAffected(res)
}

// AdoptParent fans a freshly assigned parent server id out to children.
func (s *Storage) AdoptParent(ctx context.Context, parentLocalID string, parentServerID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entities SET parent_server_id = ? WHERE parent_local_id = ?`,
		parentServerID, parentLocalID,
	)
	if err != nil {
		return fmt.Errorf("failed to adopt parent server id: %w", err)
	}
	return nil
}

// ResetToLocal strips the entity's server identity and re-stages it as a
// fresh PendingCreate.
func (s *Storage) ResetToLocal(ctx context.Context, localID string) error {
	now := time.Now().UTC()
	query := `
		UPDATE entities SET
			server_id = NULL, version = 1, sync_status = ?,
			conflict_snapshot = NULL, conflict_version = NULL, conflict_note = '',
			last_synced_at = NULL, server_updated_at = NULL, local_updated_at = ?
		WHERE local_id = ?
	`
	res, err := s.db.ExecContext(ctx, query, models.StatusPendingCreate, now.Unix(), localID)
	if err != nil {
		return fmt.Errorf("failed to reset entity: %w", err)
	}
	return requireAffected(res)
}

// Remove deletes the local record outright.
func (s *Storage) Remove(ctx context.Context, localID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to remove entity: %w", err)
	}
	return requireAffected(res)
}

// CountByStatus reports how many entities sit in the given status.
func (s *Storage) CountByStatus(ctx context.Context, status models.SyncStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE sync_status = ?`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrEntityNotFound
	}
	return nil
}
