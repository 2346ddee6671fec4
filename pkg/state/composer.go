// Package state assembles the conversation snapshot behaviors and
// evaluators run against. Composition is read-only: for a fixed store
// snapshot and composition time it always produces the same State.
package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/pkg/store"
)

// HiddenMarker replaces descriptive attachment fields once an attachment
// is older than the masking window. This bounds prompt size and avoids
// re-surfacing stale media.
const HiddenMarker = "[Hidden]"

// attachmentMaskAge is how old a message must be before its attachments
// are masked.
const attachmentMaskAge = time.Hour

// PersonaSource supplies the agent identity for the actor directory.
type PersonaSource interface {
	AgentID() string
	AgentName() string
}

// Composer builds States from Memory Store records.
type Composer struct {
	store              *store.Store
	persona            PersonaSource
	conversationLength int
	logger             zerolog.Logger
}

// NewComposer constructs a Composer. conversationLength caps the recent
// message window.
func NewComposer(s *store.Store, persona PersonaSource, conversationLength int, logger zerolog.Logger) *Composer {
	if conversationLength <= 0 {
		conversationLength = 32
	}
	return &Composer{
		store:              s,
		persona:            persona,
		conversationLength: conversationLength,
		logger:             logger,
	}
}

// ConversationLength returns the configured recent-window cap.
func (c *Composer) ConversationLength() int {
	return c.conversationLength
}

// Compose produces a complete State for a room at the given time.
func (c *Composer) Compose(ctx context.Context, roomID string, now time.Time) (*State, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	agentID := c.persona.AgentID()

	messages, err := c.store.RecentMemories(ctx, store.TableMessages, roomID, c.conversationLength)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	count, err := c.store.CountMemories(ctx, store.TableMessages, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	goals, err := c.store.GoalsByRoom(ctx, roomID, store.GoalInProgress, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}

	knowledge, err := c.store.RecentMemories(ctx, store.TableKnowledge, roomID, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge: %w", err)
	}

	actors, err := c.actorDirectory(ctx, messages, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build actor directory: %w", err)
	}

	st := &State{
		RoomID:         roomID,
		AgentID:        agentID,
		AgentName:      c.persona.AgentName(),
		Actors:         actors,
		ActorsText:     formatActors(actors),
		RecentMessages: messages,
		RecentText:     formatMessages(messages, actors),
		Goals:          goals,
		GoalsText:      formatGoals(goals),
		Knowledge:      formatKnowledge(knowledge),
		Attachments:    formatAttachments(messages, now),
		MessageCount:   count,
		ComposedAt:     now,
	}

	c.logger.Debug().
		Str("room_id", roomID).
		Int("messages", len(messages)).
		Int("goals", len(goals)).
		Msg("State composed")

	return st, nil
}

// actorDirectory resolves the distinct authors in the window against the
// accounts table.
func (c *Composer) actorDirectory(ctx context.Context, messages []store.Memory, agentID string) ([]Actor, error) {
	seen := map[string]bool{}
	var actors []Actor

	add := func(id string) error {
		if id == "" || seen[id] {
			return nil
		}
		seen[id] = true

		account, err := c.store.GetAccount(ctx, id)
		if err == store.ErrNotFound {
			actors = append(actors, Actor{ID: id, Name: id})
			return nil
		}
		if err != nil {
			return err
		}
		actors = append(actors, Actor{ID: account.ID, Name: account.Name, Username: account.Username})
		return nil
	}

	if err := add(agentID); err != nil {
		return nil, err
	}
	for _, m := range messages {
		if err := add(m.UserID); err != nil {
			return nil, err
		}
	}
	return actors, nil
}

func actorName(actors []Actor, id string) string {
	for _, a := range actors {
		if a.ID == id {
			if a.Name != "" {
				return a.Name
			}
			break
		}
	}
	return id
}

func formatActors(actors []Actor) string {
	var b strings.Builder
	for _, a := range actors {
		b.WriteString(a.Name)
		if a.Username != "" {
			b.WriteString(" (@")
			b.WriteString(a.Username)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMessages renders the window oldest-first for prompt readability.
func formatMessages(messages []store.Memory, actors []Actor) string {
	var b strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		b.WriteString(actorName(actors, m.UserID))
		b.WriteString(": ")
		b.WriteString(m.Content.Text)
		if m.Content.Action != "" {
			b.WriteString(" (")
			b.WriteString(m.Content.Action)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGoals(goals []store.Goal) string {
	var b strings.Builder
	for _, g := range goals {
		fmt.Fprintf(&b, "%s (%s)\n", g.Name, g.Status)
		for _, o := range g.Objectives {
			mark := " "
			if o.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "  [%s] %s\n", mark, o.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatKnowledge(knowledge []store.Memory) string {
	var b strings.Builder
	for _, k := range knowledge {
		b.WriteString("- ")
		b.WriteString(k.Content.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatAttachments renders the attachment block. Attachments on messages
// created more than attachmentMaskAge before now keep only id and title;
// descriptive fields become the hidden marker.
func formatAttachments(messages []store.Memory, now time.Time) string {
	var b strings.Builder
	for _, m := range messages {
		masked := now.Sub(m.CreatedAt) > attachmentMaskAge
		for _, a := range m.Content.Attachments {
			description := a.Description
			text := a.Text
			source := a.Source
			if masked {
				description = HiddenMarker
				text = HiddenMarker
				source = HiddenMarker
			}
			fmt.Fprintf(&b, "ID: %s\nName: %s\nSource: %s\nDescription: %s\nText: %s\n\n",
				a.ID, a.Title, source, description, text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
