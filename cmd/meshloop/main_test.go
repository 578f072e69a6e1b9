package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshloop.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
part_size = 16
diags     = 2
loop "compute_flux" {
  part_size = 8
}
`), 0o644))

	rootCmd.SetArgs([]string{"plan", "--nx", "6", "--ny", "5", "--config", path, "--workers", "2"})
	require.NoError(t, rootCmd.Execute())

	cfg, err := settings(planCmd)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.PartSize)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2, cfg.Diags)
	assert.Equal(t, 8, cfg.PartSizeFor("compute_flux"))
}

func TestRunCommand(t *testing.T) {
	rootCmd.SetArgs([]string{"run", "--nx", "8", "--ny", "8", "--steps", "3", "--part-size", "10", "--timing", "--config", ""})
	require.NoError(t, rootCmd.Execute())
}

func TestCommandErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(bad, []byte("part_size = -3\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"bad config", []string{"run", "--steps", "1", "--config", bad}},
		{"missing config", []string{"run", "--steps", "1", "--config", filepath.Join(t.TempDir(), "none.hcl")}},
		{"empty grid", []string{"plan", "--nx", "0", "--config", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			assert.Error(t, rootCmd.Execute())
		})
	}
}
