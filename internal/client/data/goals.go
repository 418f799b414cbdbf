package data

import (
	"context"
	"fmt"

	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/internal/validation"
)

// GoalEntry pairs a goal payload with its sync state.
type GoalEntry struct {
	Entity *models.Entity
	Goal   models.Goal
}

// GoalTaskEntry pairs a goal task payload with its sync state.
type GoalTaskEntry struct {
	Entity *models.Entity
	Task   models.GoalTask
}

func (s *service) CreateGoal(ctx context.Context, goal models.Goal) (*models.Entity, error) {
	if err := validation.ValidateName(goal.Title); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(goal.TargetAmount); err != nil {
		return nil, err
	}
	if err := validation.ValidateAmount(goal.CurrentAmount); err != nil {
		return nil, err
	}
	return s.create(ctx, models.EntityGoal, goal, nil)
}

func (s *service) UpdateGoal(ctx context.Context, localID string, goal models.Goal) error {
	if err := validation.ValidateName(goal.Title); err != nil {
		return err
	}
	if err := validation.ValidateAmount(goal.TargetAmount); err != nil {
		return err
	}
	if err := validation.ValidateAmount(goal.CurrentAmount); err != nil {
		return err
	}
	return s.update(ctx, localID, goal)
}

// DeleteGoal removes the goal and its tasks, tasks first.
func (s *service) DeleteGoal(ctx context.Context, localID string) error {
	tasks, err := s.entities.ListChildren(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, task := range tasks {
		if err := s.delete(ctx, task.LocalID); err != nil {
			return fmt.Errorf("failed to delete task %s: %w", task.LocalID, err)
		}
	}
	return s.delete(ctx, localID)
}

func (s *service) Goals(ctx context.Context) ([]GoalEntry, error) {
	entities, err := s.entities.ListActive(ctx, models.EntityGoal)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	entries := make([]GoalEntry, 0, len(entities))
	for _, entity := range entities {
		var goal models.Goal
		if err := entity.DecodePayload(&goal); err != nil {
			return nil, fmt.Errorf("failed to decode goal %s: %w", entity.LocalID, err)
		}
		entries = append(entries, GoalEntry{Entity: entity, Goal: goal})
	}
	return entries, nil
}

func (s *service) AddGoalTask(ctx context.Context, goalLocalID string, task models.GoalTask) (*models.Entity, error) {
	if err := validation.ValidateName(task.Title); err != nil {
		return nil, err
	}

	goal, err := s.parent(ctx, goalLocalID, models.EntityGoal)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, models.EntityGoalTask, task, goal)
}

func (s *service) ToggleGoalTask(ctx context.Context, localID string) error {
	return s.toggle(ctx, localID, func(entity *models.Entity) (any, error) {
		var task models.GoalTask
		if err := entity.DecodePayload(&task); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		task.Done = !task.Done
		return task, nil
	})
}

func (s *service) DeleteGoalTask(ctx context.Context, localID string) error {
	return s.delete(ctx, localID)
}

func (s *service) GoalTasks(ctx context.Context, goalLocalID string) ([]GoalTaskEntry, error) {
	entities, err := s.entities.ListChildren(ctx, goalLocalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	entries := make([]GoalTaskEntry, 0, len(entities))
	for _, entity := range entities {
		var task models.GoalTask
		if err := entity.DecodePayload(&task); err != nil {
			return nil, fmt.Errorf("failed to decode task %s: %w", entity.LocalID, err)
		}
		entries = append(entries, GoalTaskEntry{Entity: entity, Task: task})
	}
	return entries, nil
}
