package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "configure"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigureCmd_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reverie.json")

	root := GetRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"configure", "--config", path})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agent"`)
}

func TestStatusCmd_StoppedWhenNoPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reverie.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "`+dir+`"}`), 0600))

	root := GetRootCmd()
	root.SetArgs([]string{"status", "--config", path})
	assert.NoError(t, root.Execute())
}
