package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureAccount creates an account if it does not already exist.
func (s *Store) EnsureAccount(ctx context.Context, account Account) error {
	if account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	return s.guard(ctx, "account.ensure", func() error {
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&account).Error; err != nil {
			return fmt.Errorf("failed to ensure account: %w", err)
		}
		return nil
	})
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	var account Account
	err := s.guard(ctx, "account.get", func() error {
		err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureRoom creates a room if it does not already exist.
func (s *Store) EnsureRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	return s.guard(ctx, "room.ensure", func() error {
		room := Room{ID: roomID, CreatedAt: time.Now()}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&room).Error; err != nil {
			return fmt.Errorf("failed to ensure room: %w", err)
		}
		return nil
	})
}

// EnsureParticipant links a user to a room if not already linked.
func (s *Store) EnsureParticipant(ctx context.Context, roomID, userID string) error {
	if roomID == "" || userID == "" {
		return fmt.Errorf("room id and user id are required")
	}
	return s.guard(ctx, "participant.ensure", func() error {
		p := Participant{
			ID:        uuid.NewString(),
			RoomID:    roomID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&p).Error; err != nil {
			return fmt.Errorf("failed to ensure participant: %w", err)
		}
		return nil
	})
}

// ParticipantState returns the tri-state for (room, user). Empty string
// means unset.
func (s *Store) ParticipantState(ctx context.Context, roomID, userID string) (UserState, error) {
	var p Participant
	err := s.guard(ctx, "participant.state", func() error {
		err := s.db.WithContext(ctx).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get participant state: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.UserState, nil
}

// SetParticipantState sets or clears the tri-state for (room, user).
// Setting FOLLOWED clears MUTED and vice versa: the column holds exactly
// one value.
func (s *Store) SetParticipantState(ctx context.Context, roomID, userID string, state UserState) error {
	if roomID == "" || userID == "" {
		return fmt.Errorf("room id and user id are required")
	}
	if state != "" && state != StateFollowed && state != StateMuted {
		return fmt.Errorf("invalid participant state: %s", state)
	}

	if err := s.EnsureParticipant(ctx, roomID, userID); err != nil {
		return err
	}

	return s.guard(ctx, "participant.set_state", func() error {
		res := s.db.WithContext(ctx).
			Model(&Participant{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Update("user_state", state)
		if res.Error != nil {
			return fmt.Errorf("failed to set participant state: %w", res.Error)
		}
		return nil
	})
}

// EnsureRelationship records that two identities have interacted in a room.
func (s *Store) EnsureRelationship(ctx context.Context, userA, userB, roomID string) error {
	if userA == "" || userB == "" {
		return fmt.Errorf("both user ids are required")
	}
	if userB < userA {
		userA, userB = userB, userA
	}
	return s.guard(ctx, "relationship.ensure", func() error {
		rel := Relationship{
			ID:        uuid.NewString(),
			UserA:     userA,
			UserB:     userB,
			RoomID:    roomID,
			Status:    "ACTIVE",
			CreatedAt: time.Now(),
		}
		if err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rel).Error; err != nil {
			return fmt.Errorf("failed to ensure relationship: %w", err)
		}
		return nil
	})
}

// RemoveUser deletes a user's messages, goals, participations,
// relationships, and account record in one transaction. Any failure rolls
// back the whole group.
func (s *Store) RemoveUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	return s.guard(ctx, "account.remove", func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", userID).Delete(&Memory{}).Error; err != nil {
				return fmt.Errorf("failed to delete user memories: %w", err)
			}
			if err := tx.Where("user_id = ?", userID).Delete(&Goal{}).Error; err != nil {
				return fmt.Errorf("failed to delete user goals: %w", err)
			}
			if err := tx.Where("user_id = ?", userID).Delete(&Participant{}).Error; err != nil {
				return fmt.Errorf("failed to delete user participations: %w", err)
			}
			if err := tx.Where("user_a = ? OR user_b = ?", userID, userID).Delete(&Relationship{}).Error; err != nil {
				return fmt.Errorf("failed to delete user relationships: %w", err)
			}
			if err := tx.Where("id = ?", userID).Delete(&Account{}).Error; err != nil {
				return fmt.Errorf("failed to delete account: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to remove user: %w", err)
		}
		return nil
	})
}
