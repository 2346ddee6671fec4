package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateGoal persists a new goal.
func (s *Store) CreateGoal(ctx context.Context, goal *Goal) error {
	if goal.RoomID == "" {
		return fmt.Errorf("goal room id is required")
	}
	if goal.Name == "" {
		return fmt.Errorf("goal name is required")
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if goal.Status == "" {
		goal.Status = GoalInProgress
	}
	now := time.Now()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	goal.UpdatedAt = now

	return s.guard(ctx, "goal.create", func() error {
		if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
		return nil
	})
}

// GetGoal fetches a goal by id.
func (s *Store) GetGoal(ctx context.Context, id string) (*Goal, error) {
	var goal Goal
	err := s.guard(ctx, "goal.get", func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&goal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get goal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// UpdateGoal replaces a goal's stored status and objectives. Objective
// merge semantics live in the goal reconciliation evaluator; the store
// writes what it is given.
func (s *Store) UpdateGoal(ctx context.Context, goal *Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("goal id is required")
	}
	goal.UpdatedAt = time.Now()

	return s.guard(ctx, "goal.update", func() error {
		// Struct-based update so the objectives column goes through the
		// JSON serializer; Select forces zero-valued fields through too.
		res := s.db.WithContext(ctx).
			Model(goal).
			Select("name", "status", "objectives", "updated_at").
			Updates(goal)
		if res.Error != nil {
			return fmt.Errorf("failed to update goal: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GoalsByRoom lists goals in a room, optionally filtered by status.
func (s *Store) GoalsByRoom(ctx context.Context, roomID string, status GoalStatus, limit int) ([]Goal, error) {
	var goals []Goal
	err := s.guard(ctx, "goal.by_room", func() error {
		q := s.db.WithContext(ctx).Where("room_id = ?", roomID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Order("created_at DESC").Find(&goals).Error; err != nil {
			return fmt.Errorf("failed to list goals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goals, nil
}
