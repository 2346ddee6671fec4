package evaluators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// goalsSchema constrains the generator's reconciliation output.
const goalsSchema = `{
	"type": "object",
	"properties": {
		"goals": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"status": {"type": "string", "enum": ["IN_PROGRESS", "DONE", "FAILED"]},
					"objectives": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"description": {"type": "string"},
								"completed": {"type": "boolean"}
							},
							"required": ["description", "completed"]
						}
					}
				},
				"required": ["name"]
			}
		}
	},
	"required": ["goals"]
}`

// GoalUpdate is one proposed change to a room's goals.
type GoalUpdate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Objectives []struct {
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
	} `json:"objectives"`
}

type goalUpdateList struct {
	Goals []GoalUpdate `json:"goals"`
}

// GoalStore is the slice of the Memory Store goal reconciliation needs.
type GoalStore interface {
	GoalsByRoom(ctx context.Context, roomID string, status store.GoalStatus, limit int) ([]store.Goal, error)
	GetGoal(ctx context.Context, id string) (*store.Goal, error)
	CreateGoal(ctx context.Context, goal *store.Goal) error
	UpdateGoal(ctx context.Context, goal *store.Goal) error
}

// GoalEvaluator reconciles the room's in-progress goals against the turn:
// objective completion flags are merged by description, and proposed
// goals with no matching id become new goals.
type GoalEvaluator struct {
	store     GoalStore
	generator generation.Generator
	model     string
}

// NewGoalEvaluator constructs the goal reconciler.
func NewGoalEvaluator(s GoalStore, g generation.Generator, model string) *GoalEvaluator {
	return &GoalEvaluator{store: s, generator: g, model: model}
}

func (e *GoalEvaluator) Name() string { return "goals" }

// Validate passes on every turn that carries text; reconciliation is not
// sampled.
func (e *GoalEvaluator) Validate(_ context.Context, msg *store.Memory, _ *state.State) (bool, error) {
	return strings.TrimSpace(msg.Content.Text) != "", nil
}

// Run proposes updates for the room's in-progress goals and applies them.
func (e *GoalEvaluator) Run(ctx context.Context, msg *store.Memory, st *state.State) error {
	current, err := e.store.GoalsByRoom(ctx, st.RoomID, store.GoalInProgress, 0)
	if err != nil {
		return fmt.Errorf("failed to list goals: %w", err)
	}

	prompt := fmt.Sprintf(
		"Conversation:\n%s\n\nCurrent goals:\n%s\nPropose goal updates as JSON: {\"goals\": [{\"id\": \"...\", \"name\": \"...\", \"status\": \"IN_PROGRESS|DONE|FAILED\", \"objectives\": [{\"description\": \"...\", \"completed\": true}]}]}. Keep ids for existing goals; omit the id for new goals.",
		st.RecentText, renderGoals(current),
	)

	var updates goalUpdateList
	err = generation.CompleteJSON(ctx, e.generator, generation.Request{
		Model:        e.model,
		SystemPrompt: "You track conversation goals.",
		Prompt:       prompt,
	}, goalsSchema, &updates)
	if err != nil {
		return fmt.Errorf("failed to reconcile goals: %w", err)
	}

	for _, u := range updates.Goals {
		if err := e.apply(ctx, st.RoomID, msg.UserID, u); err != nil {
			return err
		}
	}
	return nil
}

// apply routes one update: known id merges into the stored goal, unknown
// or absent id creates a new goal owned by the message author.
func (e *GoalEvaluator) apply(ctx context.Context, roomID, userID string, u GoalUpdate) error {
	var existing *store.Goal
	if u.ID != "" {
		var err error
		existing, err = e.store.GetGoal(ctx, u.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load goal: %w", err)
		}
	}

	if existing == nil {
		goal := &store.Goal{
			RoomID:     roomID,
			UserID:     userID,
			Name:       u.Name,
			Status:     updateStatus(u.Status, store.GoalInProgress),
			Objectives: MergeObjectives(nil, u),
		}
		if err := e.store.CreateGoal(ctx, goal); err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
		return nil
	}

	existing.Status = updateStatus(u.Status, existing.Status)
	if u.Name != "" {
		existing.Name = u.Name
	}
	existing.Objectives = MergeObjectives(existing.Objectives, u)
	if err := e.store.UpdateGoal(ctx, existing); err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return nil
}

// MergeObjectives folds proposed objective states into the existing list.
// An existing objective keeps its identity and order; a description match
// flips its completed flag, and a proposal with no match is appended as a
// new objective. Objectives are never replaced wholesale.
func MergeObjectives(existing []store.Objective, u GoalUpdate) []store.Objective {
	merged := make([]store.Objective, len(existing))
	copy(merged, existing)

	for _, p := range u.Objectives {
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			continue
		}
		found := false
		for i := range merged {
			if strings.EqualFold(merged[i].Description, desc) {
				merged[i].Completed = p.Completed
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, store.Objective{
				ID:          uuid.NewString(),
				Description: desc,
				Completed:   p.Completed,
			})
		}
	}
	return merged
}

func updateStatus(proposed string, fallback store.GoalStatus) store.GoalStatus {
	switch store.GoalStatus(proposed) {
	case store.GoalInProgress, store.GoalDone, store.GoalFailed:
		return store.GoalStatus(proposed)
	default:
		return fallback
	}
}

func renderGoals(goals []store.Goal) string {
	if len(goals) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, g := range goals {
		fmt.Fprintf(&b, "- %s (id: %s)\n", g.Name, g.ID)
		for _, o := range g.Objectives {
			mark := " "
			if o.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "  [%s] %s\n", mark, o.Description)
		}
	}
	return b.String()
}
