package data

import (
	"context"
	"fmt"

	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/internal/validation"
)

// AssetEntry pairs an asset payload with its sync state.
type AssetEntry struct {
	Entity *models.Entity
	Asset  models.Asset
}

func (s *service) CreateAsset(ctx context.Context, asset models.Asset) (*models.Entity, error) {
	if err := validation.ValidateName(asset.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(asset.Value); err != nil {
		return nil, err
	}
	return s.create(ctx, models.EntityAsset, asset, nil)
}

func (s *service) UpdateAsset(ctx context.Context, localID string, asset models.Asset) error {
	if err := validation.ValidateName(asset.Name); err != nil {
		return err
	}
	if err := validation.ValidateAmount(asset.Value); err != nil {
		return err
	}
	return s.update(ctx, localID, asset)
}

func (s *service) DeleteAsset(ctx context.Context, localID string) error {
	return s.delete(ctx, localID)
}

func (s *service) Assets(ctx context.Context) ([]AssetEntry, error) {
	entities, err := s.entities.ListActive(ctx, models.EntityAsset)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	entries := make([]AssetEntry, 0, len(entities))
	for _, entity := range entities {
		var asset models.Asset
		if err := entity.DecodePayload(&asset); err != nil {
			return nil, fmt.Errorf("failed to decode asset %s: %w", entity.LocalID, err)
		}
		entries = append(entries, AssetEntry{Entity: entity, Asset: asset})
	}
	return entries, nil
}
