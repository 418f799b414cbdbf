package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/models"
)

// Service is the mutation API the presentation layer calls. Every mutation
// is one local store write plus one durable outbox enqueue; nothing here
// ever touches the network. A mutation that cannot be durably queued is
// not accepted as saved.
type Service interface {
	CreateShoppingList(ctx context.Context, list models.ShoppingList) (*models.Entity, error)
	UpdateShoppingList(ctx context.Context, localID string, list models.ShoppingList) error
	DeleteShoppingList(ctx context.Context, localID string) error
	ShoppingLists(ctx context.Context) ([]ShoppingListEntry, error)

	AddShoppingItem(ctx context.Context, listLocalID string, item models.ShoppingItem) (*models.Entity, error)
	UpdateShoppingItem(ctx context.Context, localID string, item models.ShoppingItem) error
	ToggleShoppingItem(ctx context.Context, localID string) error
	DeleteShoppingItem(ctx context.Context, localID string) error
	ShoppingItems(ctx context.Context, listLocalID string) ([]ShoppingItemEntry, error)

	CreateGoal(ctx context.Context, goal models.Goal) (*models.Entity, error)
	UpdateGoal(ctx context.Context, localID string, goal models.Goal) error
	DeleteGoal(ctx context.Context, localID string) error
	Goals(ctx context.Context) ([]GoalEntry, error)

	AddGoalTask(ctx context.Context, goalLocalID string, task models.GoalTask) (*models.Entity, error)
	ToggleGoalTask(ctx context.Context, localID string) error
	DeleteGoalTask(ctx context.Context, localID string) error
	GoalTasks(ctx context.Context, goalLocalID string) ([]GoalTaskEntry, error)

	CreateAsset(ctx context.Context, asset models.Asset) (*models.Entity, error)
	UpdateAsset(ctx context.Context, localID string, asset models.Asset) error
	DeleteAsset(ctx context.Context, localID string) error
	Assets(ctx context.Context) ([]AssetEntry, error)

	// HasPendingSync reports whether the entity still has a queued
	// operation, for "pending" indicators next to list rows.
	HasPendingSync(ctx context.Context, localID string) (bool, error)
}

type service struct {
	entities storage.EntityStorage
	outbox   storage.OutboxStorage
	logger   *slog.Logger
}

// NewService creates a new data service.
func NewService(entities storage.EntityStorage, outbox storage.OutboxStorage, logger *slog.Logger) Service {
	return &service{
		entities: entities,
		outbox:   outbox,
		logger:   logger,
	}
}

func (s *service) HasPendingSync(ctx context.Context, localID string) (bool, error) {
	return s.outbox.HasPending(ctx, localID)
}

// create inserts a new local entity and queues its create operation.
func (s *service) create(ctx context.Context, t models.EntityType, payload any, parent *models.Entity) (*models.Entity, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	entity := &models.Entity{
		LocalID: uuid.New().String(),
		Type:    t,
		Payload: data,
	}
	if parent != nil {
		entity.ParentLocalID = parent.LocalID
		entity.ParentServerID = parent.ServerID
	}

	if err := s.entities.CreateLocal(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", t, err)
	}

	if err := s.enqueue(ctx, entity, models.OpCreate); err != nil {
		return nil, err
	}

	s.logger.Debug("created entity", "type", t, "local_id", entity.LocalID)
	return entity, nil
}

// update stages the new payload and queues the matching operation: a
// create while the entity has no server identity, an update afterwards.
func (s *service) update(ctx context.Context, localID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	entity, err := s.entities.StageChange(ctx, localID, data)
	if err != nil {
		return fmt.Errorf("failed to stage change: %w", err)
	}

	opType := models.OpUpdate
	if entity.ServerID == nil {
		opType = models.OpCreate
	}
	return s.enqueue(ctx, entity, opType)
}

// delete stages a server deletion, or discards the entity outright when it
// never reached the server (nothing remote to delete).
func (s *service) delete(ctx context.Context, localID string) error {
	entity, err := s.entities.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to load entity: %w", err)
	}

	if entity.ServerID == nil {
		if _, err := s.outbox.RemoveForEntity(ctx, localID); err != nil {
			return fmt.Errorf("failed to drop queued operations: %w", err)
		}
		if err := s.entities.Remove(ctx, localID); err != nil {
			return fmt.Errorf("failed to remove entity: %w", err)
		}
		s.logger.Debug("discarded never-pushed entity", "local_id", localID)
		return nil
	}

	entity, err = s.entities.StageDelete(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to stage delete: %w", err)
	}
	return s.enqueue(ctx, entity, models.OpDelete)
}

// toggle flips a boolean payload field and queues a toggle operation
// carrying the absolute resulting state. For an entity that has not been
// created server-side yet, the full payload rides on its create instead.
func (s *service) toggle(ctx context.Context, localID string, flip func(*models.Entity) (any, error)) error {
	entity, err := s.entities.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to load entity: %w", err)
	}

	payload, err := flip(entity)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	entity, err = s.entities.StageChange(ctx, localID, data)
	if err != nil {
		return fmt.Errorf("failed to stage toggle: %w", err)
	}

	opType := models.OpToggle
	if entity.ServerID == nil {
		opType = models.OpCreate
	}
	return s.enqueue(ctx, entity, opType)
}

func (s *service) enqueue(ctx context.Context, entity *models.Entity, opType models.OperationType) error {
	method, endpoint := models.RouteFor(entity.Type, opType, entity.ServerID, entity.ParentServerID)

	var payload json.RawMessage
	if opType != models.OpDelete {
		payload = entity.Payload
	}

	op := &models.PendingOperation{
		Type:           opType,
		EntityType:     entity.Type,
		LocalEntityID:  entity.LocalID,
		ServerEntityID: entity.ServerID,
		ParentLocalID:  entity.ParentLocalID,
		ParentServerID: entity.ParentServerID,
		Endpoint:       endpoint,
		Method:         method,
		Payload:        payload,
	}

	if err := s.outbox.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", opType, err)
	}
	return nil
}

// parent loads and checks the owning entity for a sub-entity mutation.
func (s *service) parent(ctx context.Context, localID string, want models.EntityType) (*models.Entity, error) {
	entity, err := s.entities.Get(ctx, localID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, fmt.Errorf("%s %s not found", want, localID)
		}
		return nil, fmt.Errorf("failed to load %s: %w", want, err)
	}
	if entity.Type != want {
		return nil, fmt.Errorf("entity %s is a %s, not a %s", localID, entity.Type, want)
	}
	return entity, nil
}
