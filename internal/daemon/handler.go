package daemon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hollowaylab/reverie/pkg/channels"
	"github.com/hollowaylab/reverie/pkg/store"
)

// HandleMessage processes one inbound message: persist it, compose state,
// run the action pipeline, then the evaluators. Steps run strictly in
// sequence for one message; no ordering holds across messages.
func (d *Daemon) HandleMessage(ctx context.Context, msg channels.InboundMessage) error {
	if msg.RoomID == "" || msg.UserID == "" {
		return fmt.Errorf("inbound message requires room and user ids")
	}

	d.metrics.MessagesReceivedTotal.Inc()
	started := time.Now()
	defer func() {
		d.metrics.TurnDuration.Observe(time.Since(started).Seconds())
	}()

	logger := d.logger.With().
		Str("room_id", msg.RoomID).
		Str("user_id", msg.UserID).
		Logger()

	if err := d.ensureEntities(ctx, msg); err != nil {
		return err
	}

	mem, err := d.persistInbound(ctx, msg)
	if err != nil {
		return err
	}

	// A muted room stays silent unless the agent is addressed by name;
	// the message is still recorded above.
	agentState, err := d.store.ParticipantState(ctx, msg.RoomID, d.cfg.Agent.ID)
	if err != nil {
		return fmt.Errorf("failed to read agent participant state: %w", err)
	}
	ident := identity{cfg: d.cfg.Agent, persona: d.persona}
	if agentState == store.StateMuted && !mentionsName(msg.Text, ident.AgentName()) {
		logger.Debug().Msg("Room is muted, skipping turn")
		return nil
	}

	st, err := d.composer.Compose(ctx, msg.RoomID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to compose state: %w", err)
	}

	// Behaviors emit into a buffer; emissions are published and recorded
	// after the pipeline settles so the agent message carries its action
	// tag.
	var emitted []string
	res := d.actionPipeline.Execute(ctx, mem, st, func(_ context.Context, text string) error {
		emitted = append(emitted, text)
		return nil
	})

	for _, text := range emitted {
		if err := d.publishReply(ctx, msg, mem.ID, res.Action, text); err != nil {
			logger.Error().Err(err).Msg("Failed to publish reply")
		}
	}

	d.evalPipeline.Run(ctx, mem, st)

	logger.Debug().
		Str("action", res.Action).
		Str("status", res.Status.String()).
		Msg("Turn complete")
	return nil
}

// ensureEntities upserts the account, room, participants, and the
// user/agent relationship for the message.
func (d *Daemon) ensureEntities(ctx context.Context, msg channels.InboundMessage) error {
	if err := d.store.EnsureAccount(ctx, store.Account{ID: msg.UserID, Name: msg.UserID}); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	if err := d.store.EnsureRoom(ctx, msg.RoomID); err != nil {
		return fmt.Errorf("failed to ensure room: %w", err)
	}
	if err := d.store.EnsureParticipant(ctx, msg.RoomID, msg.UserID); err != nil {
		return fmt.Errorf("failed to ensure participant: %w", err)
	}
	if err := d.store.EnsureParticipant(ctx, msg.RoomID, d.cfg.Agent.ID); err != nil {
		return fmt.Errorf("failed to ensure agent participant: %w", err)
	}
	if err := d.store.EnsureRelationship(ctx, msg.UserID, d.cfg.Agent.ID, msg.RoomID); err != nil {
		return fmt.Errorf("failed to ensure relationship: %w", err)
	}
	return nil
}

// persistInbound records the inbound message as a message memory.
func (d *Daemon) persistInbound(ctx context.Context, msg channels.InboundMessage) (*store.Memory, error) {
	createdAt := msg.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	mem := &store.Memory{
		ID:      uuid.NewString(),
		Type:    store.TableMessages,
		RoomID:  msg.RoomID,
		UserID:  msg.UserID,
		AgentID: d.cfg.Agent.ID,
		Content: store.Content{
			Text:        msg.Text,
			Source:      msg.Channel,
			InReplyTo:   msg.ReplyTo,
			Attachments: msg.Attachments,
		},
		CreatedAt: createdAt,
	}
	if err := d.store.CreateMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("failed to persist inbound message: %w", err)
	}
	return mem, nil
}

// publishReply sends one emission to the originating channel and records
// the agent-authored message with its action tag, linked to the persisted
// inbound memory.
func (d *Daemon) publishReply(ctx context.Context, msg channels.InboundMessage, inReplyTo, action, text string) error {
	channel := msg.Channel
	if channel == "" {
		channel = d.direct.Name()
	}
	messageID, err := d.channels.Publish(ctx, channel, msg.RoomID, text)
	if err != nil {
		return fmt.Errorf("failed to publish to channel: %w", err)
	}

	mem := &store.Memory{
		ID:      messageID,
		Type:    store.TableMessages,
		RoomID:  msg.RoomID,
		UserID:  d.cfg.Agent.ID,
		AgentID: d.cfg.Agent.ID,
		Content: store.Content{
			Text:      text,
			Action:    action,
			Source:    channel,
			InReplyTo: inReplyTo,
		},
	}
	if err := d.store.CreateMemory(ctx, mem); err != nil {
		return fmt.Errorf("failed to record agent reply: %w", err)
	}
	return nil
}

// mentionsName reports whether the text addresses the agent by name.
func mentionsName(text, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(name))
}
