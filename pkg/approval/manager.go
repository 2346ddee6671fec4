package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/pkg/store"
)

// pendingKey is the cache key holding the persisted task list for one
// topic.
const pendingKey = "approval:pending"

// Manager owns the persisted pending-task list. Every mutation reads the
// full list and rewrites it under one mutex, so a task removed by one
// caller cannot be re-processed by another.
type Manager struct {
	cache   store.Cache
	surface Surface
	logger  zerolog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewManager constructs a manager over the given cache and confirmation
// surface.
func NewManager(cache store.Cache, surface Surface, logger zerolog.Logger) *Manager {
	return &Manager{
		cache:   cache,
		surface: surface,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue submits rendered content to the confirmation surface and, on
// success, appends a pending task. The returned id identifies the task to
// the caller; an error here means the content was never submitted.
func (m *Manager) Enqueue(ctx context.Context, roomID, rendered, raw string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate task id: %w", err)
	}

	messageID, channelID, err := m.surface.Submit(ctx, roomID, rendered)
	if err != nil {
		return "", fmt.Errorf("failed to submit for approval: %w", err)
	}

	task := Task{
		ID:                id,
		RoomID:            roomID,
		Rendered:          rendered,
		Raw:               raw,
		ExternalMessageID: messageID,
		ExternalChannelID: channelID,
		EnqueuedAt:        m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	tasks = append(tasks, task)
	if err := m.save(ctx, tasks); err != nil {
		return "", err
	}

	m.logger.Info().
		Str("task_id", id).
		Str("room_id", roomID).
		Msg("Approval task enqueued")
	return id, nil
}

// Pending returns a copy of the current task list.
func (m *Manager) Pending(ctx context.Context) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Remove deletes the task referenced by the external message id. Removing
// an already-removed task is a no-op and reports false, so a late
// confirmation signal has no effect.
func (m *Manager) Remove(ctx context.Context, externalMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.load(ctx)
	if err != nil {
		return false, err
	}

	kept := tasks[:0]
	removed := false
	for _, t := range tasks {
		if t.ExternalMessageID == externalMessageID {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return false, nil
	}
	if err := m.save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// load reads the full list. Callers hold m.mu.
func (m *Manager) load(ctx context.Context) ([]Task, error) {
	raw, ok, err := m.cache.Get(ctx, pendingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending approvals: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode pending approvals: %w", err)
	}
	return tasks, nil
}

// save rewrites the full list. Callers hold m.mu.
func (m *Manager) save(ctx context.Context, tasks []Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode pending approvals: %w", err)
	}
	if err := m.cache.Set(ctx, pendingKey, raw, 0); err != nil {
		return fmt.Errorf("failed to write pending approvals: %w", err)
	}
	return nil
}
