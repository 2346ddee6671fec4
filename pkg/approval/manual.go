package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ManualSurface is an in-process confirmation surface: submissions are
// logged, and a human (or test) records decisions through Approve and
// Reject. It backs deployments without an external review platform.
type ManualSurface struct {
	logger zerolog.Logger

	mu        sync.Mutex
	seq       int
	decisions map[string]Decision
}

// NewManualSurface constructs an empty manual surface.
func NewManualSurface(logger zerolog.Logger) *ManualSurface {
	return &ManualSurface{
		logger:    logger,
		decisions: make(map[string]Decision),
	}
}

// Submit records the pending content and returns a local reference.
func (s *ManualSurface) Submit(_ context.Context, roomID, rendered string) (string, string, error) {
	s.mu.Lock()
	s.seq++
	messageID := fmt.Sprintf("manual-%d", s.seq)
	s.mu.Unlock()

	s.logger.Info().
		Str("message_id", messageID).
		Str("room_id", roomID).
		Str("content", rendered).
		Msg("Content awaiting manual approval")
	return messageID, "manual", nil
}

// Approve records an approval for the given external message id.
func (s *ManualSurface) Approve(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[messageID] = DecisionApproved
}

// Reject records a rejection for the given external message id.
func (s *ManualSurface) Reject(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[messageID] = DecisionRejected
}

// Poll reports the recorded decision, defaulting to pending.
func (s *ManualSurface) Poll(_ context.Context, task Task) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decisions[task.ExternalMessageID]; ok {
		return d, nil
	}
	return DecisionPending, nil
}

// Notify logs the terminal outcome and forgets the decision.
func (s *ManualSurface) Notify(_ context.Context, task Task, outcome Outcome) error {
	s.mu.Lock()
	delete(s.decisions, task.ExternalMessageID)
	s.mu.Unlock()

	s.logger.Info().
		Str("message_id", task.ExternalMessageID).
		Str("outcome", string(outcome)).
		Msg("Approval task resolved")
	return nil
}
