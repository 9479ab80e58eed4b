package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"doctor"},
		{"devices"},
		{"avd", "list"},
		{"avd", "create"},
		{"avd", "cleanup"},
		{"start"},
		{"run"},
		{"exec"},
		{"verify"},
		{"screenshot"},
		{"snapshot", "save"},
		{"snapshot", "load"},
		{"stop"},
		{"info"},
		{"history"},
		{"history", "clear"},
		{"logs"},
		{"config", "show"},
		{"config", "init"},
		{"config", "path"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestConfigInit_WritesTemplateOnce(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configInitForce = false
	t.Cleanup(func() { configInitForce = false })

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	require.NoError(t, runConfigInit(c, nil))
	assert.Contains(t, out.String(), "Created config file")

	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "droidbench", "config.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# droidbench configuration")

	err = runConfigInit(c, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	configInitForce = true
	assert.NoError(t, runConfigInit(c, nil))
}
