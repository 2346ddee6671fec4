package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// CreateMemory persists a memory record. Unique memories get a
// content-addressed id and inserting the same content again is a no-op.
func (s *Store) CreateMemory(ctx context.Context, mem *Memory) error {
	if mem.Type == "" {
		return fmt.Errorf("memory type is required")
	}
	if mem.RoomID == "" {
		return fmt.Errorf("memory room id is required")
	}

	if mem.ID == "" {
		if mem.Unique {
			mem.ID = ContentAddressedID(mem.Type, mem.RoomID, mem.UserID, mem.Content.Text)
		} else {
			mem.ID = uuid.NewString()
		}
	}
	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}

	return s.guard(ctx, "memory.create", func() error {
		tx := s.db.WithContext(ctx)
		if mem.Unique {
			tx = tx.Clauses(clause.OnConflict{DoNothing: true})
		}
		if err := tx.Create(mem).Error; err != nil {
			return fmt.Errorf("failed to create memory: %w", err)
		}
		return nil
	})
}

// GetMemory fetches one memory by logical table and id.
func (s *Store) GetMemory(ctx context.Context, typ, id string) (*Memory, error) {
	var mem Memory
	err := s.guard(ctx, "memory.get", func() error {
		err := s.db.WithContext(ctx).
			Where("type = ? AND id = ?", typ, id).
			First(&mem).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get memory: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mem, nil
}

// RecentMemories lists a room's memories most-recent-first, capped at limit.
func (s *Store) RecentMemories(ctx context.Context, typ, roomID string, limit int) ([]Memory, error) {
	var memories []Memory
	err := s.guard(ctx, "memory.recent", func() error {
		q := s.db.WithContext(ctx).
			Where("type = ? AND room_id = ?", typ, roomID).
			Order("created_at DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&memories).Error; err != nil {
			return fmt.Errorf("failed to list memories: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// MemoriesByUser lists a user's memories across all rooms,
// most-recent-first.
func (s *Store) MemoriesByUser(ctx context.Context, typ, userID string) ([]Memory, error) {
	var memories []Memory
	err := s.guard(ctx, "memory.by_user", func() error {
		if err := s.db.WithContext(ctx).
			Where("type = ? AND user_id = ?", typ, userID).
			Order("created_at DESC").
			Find(&memories).Error; err != nil {
			return fmt.Errorf("failed to list user memories: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// CountMemories returns the number of memories in a room's logical table.
func (s *Store) CountMemories(ctx context.Context, typ, roomID string) (int64, error) {
	var count int64
	err := s.guard(ctx, "memory.count", func() error {
		if err := s.db.WithContext(ctx).
			Model(&Memory{}).
			Where("type = ? AND room_id = ?", typ, roomID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count memories: %w", err)
		}
		return nil
	})
	return count, err
}

// DeleteMemory removes a single memory record.
func (s *Store) DeleteMemory(ctx context.Context, typ, id string) error {
	return s.guard(ctx, "memory.delete", func() error {
		if err := s.db.WithContext(ctx).
			Where("type = ? AND id = ?", typ, id).
			Delete(&Memory{}).Error; err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		return nil
	})
}

// DeleteMemoriesBefore removes a user's memories created before cutoff,
// across all rooms. Returns the number of rows removed.
func (s *Store) DeleteMemoriesBefore(ctx context.Context, typ, userID string, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.guard(ctx, "memory.delete_before", func() error {
		res := s.db.WithContext(ctx).
			Where("type = ? AND user_id = ? AND created_at < ?", typ, userID, cutoff).
			Delete(&Memory{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete expired memories: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// TrimMemoriesToCount removes a user's oldest memories beyond max, keeping
// the max most-recent-by-creation-time records across all rooms.
func (s *Store) TrimMemoriesToCount(ctx context.Context, typ, userID string, max int) (int64, error) {
	if max < 0 {
		return 0, fmt.Errorf("max count must not be negative")
	}

	var removed int64
	err := s.guard(ctx, "memory.trim", func() error {
		var excess []Memory
		if err := s.db.WithContext(ctx).
			Select("id").
			Where("type = ? AND user_id = ?", typ, userID).
			Order("created_at DESC").
			Offset(max).
			Limit(-1).
			Find(&excess).Error; err != nil {
			return fmt.Errorf("failed to find excess memories: %w", err)
		}
		if len(excess) == 0 {
			removed = 0
			return nil
		}

		ids := make([]string, 0, len(excess))
		for _, m := range excess {
			ids = append(ids, m.ID)
		}
		res := s.db.WithContext(ctx).
			Where("type = ? AND id IN ?", typ, ids).
			Delete(&Memory{})
		if res.Error != nil {
			return fmt.Errorf("failed to trim memories: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// CreateKnowledge stores a knowledge record, optionally linked to a parent
// document by chunk index.
func (s *Store) CreateKnowledge(ctx context.Context, roomID, agentID, text, parentID string, chunkIndex int) (*Memory, error) {
	mem := &Memory{
		Type:    TableKnowledge,
		RoomID:  roomID,
		AgentID: agentID,
		Unique:  true,
		Content: Content{
			Text:       text,
			ParentID:   parentID,
			ChunkIndex: chunkIndex,
		},
	}
	if err := s.CreateMemory(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

// KnowledgeChunks lists the chunks of a parent knowledge document in
// chunk order.
func (s *Store) KnowledgeChunks(ctx context.Context, roomID, parentID string) ([]Memory, error) {
	chunks, err := s.RecentMemories(ctx, TableKnowledge, roomID, 0)
	if err != nil {
		return nil, err
	}
	var out []Memory
	for _, m := range chunks {
		if m.Content.ParentID == parentID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Content.ChunkIndex < out[j].Content.ChunkIndex
	})
	return out, nil
}
