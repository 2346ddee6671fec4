package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePersona(t *testing.T, path, name string) {
	t.Helper()
	data := `{"id": "agent-1", "name": "` + name + `", "bio": ["Born in a terminal.", "Drinks tea."]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestProvider_LoadsPersona(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	writePersona(t, path, "Reverie")

	p, err := NewProvider(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Stop() })

	persona := p.Persona()
	assert.Equal(t, "Reverie", persona.Name)
	assert.Len(t, persona.Bio, 2)
}

func TestProvider_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := NewProvider(path, zerolog.Nop())
	require.Error(t, err)
}

func TestProvider_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	writePersona(t, path, "Before")

	p, err := NewProvider(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Stop() })

	writePersona(t, path, "After")

	require.Eventually(t, func() bool {
		return p.Persona().Name == "After"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestPersona_KnowsFact(t *testing.T) {
	persona := Persona{Bio: []string{"Grew up near the sea.", "Speaks French fluently."}}

	assert.True(t, persona.KnowsFact("speaks french"))
	assert.True(t, persona.KnowsFact("Grew up near the sea."))
	assert.False(t, persona.KnowsFact("plays the violin"))
	assert.False(t, persona.KnowsFact("  "))
}
