package evaluators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// claimsSchema constrains the generator's fact-extraction output.
const claimsSchema = `{
	"type": "object",
	"properties": {
		"claims": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"claim": {"type": "string"}
				},
				"required": ["claim"]
			}
		}
	},
	"required": ["claims"]
}`

type claimList struct {
	Claims []struct {
		Claim string `json:"claim"`
	} `json:"claims"`
}

// FactStore is the slice of the Memory Store fact extraction needs.
type FactStore interface {
	CreateMemory(ctx context.Context, mem *store.Memory) error
	RecentMemories(ctx context.Context, typ, roomID string, limit int) ([]store.Memory, error)
}

// Biography answers whether a claim is already part of the agent's
// background and therefore not worth storing.
type Biography interface {
	KnowsFact(claim string) bool
}

// FactEvaluator extracts durable factual claims from the conversation and
// stores the novel ones as immutable fact memories.
type FactEvaluator struct {
	store     FactStore
	bio       Biography
	generator generation.Generator
	model     string

	// sampleEvery bounds cost: extraction runs once per this many
	// messages, typically half the conversation window.
	sampleEvery int64
}

// NewFactEvaluator constructs the fact extractor. conversationLength is
// the composer's window size; extraction samples every half window.
func NewFactEvaluator(s FactStore, bio Biography, g generation.Generator, model string, conversationLength int) *FactEvaluator {
	every := int64(conversationLength / 2)
	if every < 1 {
		every = 1
	}
	return &FactEvaluator{store: s, bio: bio, generator: g, model: model, sampleEvery: every}
}

func (e *FactEvaluator) Name() string { return "facts" }

// Validate samples: extraction runs only when the room's message count
// lands on the sampling interval.
func (e *FactEvaluator) Validate(_ context.Context, msg *store.Memory, st *state.State) (bool, error) {
	if strings.TrimSpace(msg.Content.Text) == "" {
		return false, nil
	}
	return st.MessageCount > 0 && st.MessageCount%e.sampleEvery == 0, nil
}

// Run extracts claims, drops the ones already known, and stores the rest.
func (e *FactEvaluator) Run(ctx context.Context, msg *store.Memory, st *state.State) error {
	prompt := fmt.Sprintf(
		"Conversation:\n%s\n\nExtract durable factual claims about the participants from this conversation. Respond as JSON: {\"claims\": [{\"claim\": \"...\"}]}. Only include facts likely to stay true.",
		st.RecentText,
	)

	var claims claimList
	err := generation.CompleteJSON(ctx, e.generator, generation.Request{
		Model:        e.model,
		SystemPrompt: "You extract facts from conversations.",
		Prompt:       prompt,
	}, claimsSchema, &claims)
	if err != nil {
		return fmt.Errorf("failed to extract facts: %w", err)
	}
	if len(claims.Claims) == 0 {
		return nil
	}

	known, err := e.store.RecentMemories(ctx, store.TableFacts, st.RoomID, 0)
	if err != nil {
		return fmt.Errorf("failed to load stored facts: %w", err)
	}

	for _, c := range claims.Claims {
		claim := strings.TrimSpace(c.Claim)
		if claim == "" || e.suppressed(claim, known) {
			continue
		}
		mem := &store.Memory{
			Type:    store.TableFacts,
			RoomID:  st.RoomID,
			UserID:  msg.UserID,
			AgentID: st.AgentID,
			Unique:  true,
			Content: store.Content{Text: claim, Source: "fact_extraction"},
		}
		if err := e.store.CreateMemory(ctx, mem); err != nil {
			return fmt.Errorf("failed to store fact: %w", err)
		}
	}
	return nil
}

// suppressed reports whether the claim is already stored or part of the
// agent's biography. Comparison is case-insensitive text containment.
func (e *FactEvaluator) suppressed(claim string, known []store.Memory) bool {
	lower := strings.ToLower(claim)
	for i := range known {
		stored := strings.ToLower(known[i].Content.Text)
		if stored == lower || strings.Contains(stored, lower) || strings.Contains(lower, stored) {
			return true
		}
	}
	if e.bio != nil && e.bio.KnowsFact(claim) {
		return true
	}
	return false
}
