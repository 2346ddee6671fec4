package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimsSchema = `{
	"type": "object",
	"properties": {
		"claims": {
			"type": "array",
			"items": {"type": "string"}
		}
	},
	"required": ["claims"]
}`

func TestValidateAgainstSchema(t *testing.T) {
	require.NoError(t, ValidateAgainstSchema(claimsSchema, `{"claims": ["a", "b"]}`))

	err := ValidateAgainstSchema(claimsSchema, `{"claims": "not an array"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")

	err = ValidateAgainstSchema(claimsSchema, `{}`)
	require.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
}

type staticGenerator struct {
	out string
	err error
}

func (g *staticGenerator) Complete(context.Context, Request) (string, error) {
	return g.out, g.err
}

func (g *staticGenerator) Provider() string { return "static" }

func TestCompleteJSON_ValidatesAndDecodes(t *testing.T) {
	g := &staticGenerator{out: "```json\n{\"claims\": [\"the user likes tea\"]}\n```"}

	var parsed struct {
		Claims []string `json:"claims"`
	}
	err := CompleteJSON(context.Background(), g, Request{}, claimsSchema, &parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"the user likes tea"}, parsed.Claims)
}

func TestCompleteJSON_RejectsSchemaViolation(t *testing.T) {
	g := &staticGenerator{out: `{"claims": 42}`}

	var parsed struct {
		Claims []string `json:"claims"`
	}
	err := CompleteJSON(context.Background(), g, Request{}, claimsSchema, &parsed)
	require.Error(t, err)
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator("gemini", "key")
	require.Error(t, err)
}
