package data

import (
	"context"
	"fmt"

	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/internal/validation"
)

// ShoppingListEntry pairs a shopping list payload with its sync state.
type ShoppingListEntry struct {
	Entity *models.Entity
	List   models.ShoppingList
}

// ShoppingItemEntry pairs a shopping item payload with its sync state.
type ShoppingItemEntry struct {
	Entity *models.Entity
	Item   models.ShoppingItem
}

func (s *service) CreateShoppingList(ctx context.Context, list models.ShoppingList) (*models.Entity, error) {
	if err := validation.ValidateName(list.Name); err != nil {
		return nil, err
	}
	return s.create(ctx, models.EntityShoppingList, list, nil)
}

func (s *service) UpdateShoppingList(ctx context.Context, localID string, list models.ShoppingList) error {
	if err := validation.ValidateName(list.Name); err != nil {
		return err
	}
	return s.update(ctx, localID, list)
}

// DeleteShoppingList removes the list and every item in it. Each item is
// deleted as its own operation so partial server acknowledgement leaves a
// consistent queue.
func (s *service) DeleteShoppingList(ctx context.Context, localID string) error {
	items, err := s.entities.ListChildren(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}
	for _, item := range items {
		if err := s.delete(ctx, item.LocalID); err != nil {
			return fmt.Errorf("failed to delete item %s: %w", item.LocalID, err)
		}
	}
	return s.delete(ctx, localID)
}

func (s *service) ShoppingLists(ctx context.Context) ([]ShoppingListEntry, error) {
	entities, err := s.entities.ListActive(ctx, models.EntityShoppingList)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping lists: %w", err)
	}

	entries := make([]ShoppingListEntry, 0, len(entities))
	for _, entity := range entities {
		var list models.ShoppingList
		if err := entity.DecodePayload(&list); err != nil {
			return nil, fmt.Errorf("failed to decode list %s: %w", entity.LocalID, err)
		}
		entries = append(entries, ShoppingListEntry{Entity: entity, List: list})
	}
	return entries, nil
}

func (s *service) AddShoppingItem(ctx context.Context, listLocalID string, item models.ShoppingItem) (*models.Entity, error) {
	if err := validation.ValidateName(item.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(item.Price); err != nil {
		return nil, err
	}

	list, err := s.parent(ctx, listLocalID, models.EntityShoppingList)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, models.EntityShoppingItem, item, list)
}

func (s *service) UpdateShoppingItem(ctx context.Context, localID string, item models.ShoppingItem) error {
	if err := validation.ValidateName(item.Name); err != nil {
		return err
	}
	if err := validation.ValidateAmount(item.Price); err != nil {
		return err
	}
	return s.update(ctx, localID, item)
}

func (s *service) ToggleShoppingItem(ctx context.Context, localID string) error {
	return s.toggle(ctx, localID, func(entity *models.Entity) (any, error) {
		var item models.ShoppingItem
		if err := entity.DecodePayload(&item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		item.Purchased = !item.Purchased
		return item, nil
	})
}

func (s *service) DeleteShoppingItem(ctx context.Context, localID string) error {
	return s.delete(ctx, localID)
}

func (s *service) ShoppingItems(ctx context.Context, listLocalID string) ([]ShoppingItemEntry, error) {
	entities, err := s.entities.ListChildren(ctx, listLocalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	entries := make([]ShoppingItemEntry, 0, len(entities))
	for _, entity := range entities {
		var item models.ShoppingItem
		if err := entity.DecodePayload(&item); err != nil {
			return nil, fmt.Errorf("failed to decode item %s: %w", entity.LocalID, err)
		}
		entries = append(entries, ShoppingItemEntry{Entity: entity, Item: item})
	}
	return entries, nil
}
