package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshloop.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
part_size = 256
workers   = num_cpus
diags     = 2

loop "flux" {
  part_size = 128
}

loop "update" {
  part_size = max(64, 2 * 16)
}
`)
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, f.PartSize)
	assert.Equal(t, runtime.NumCPU(), f.Workers)
	assert.Equal(t, 2, f.Diags)
	assert.Equal(t, []string{"flux", "update"}, f.LoopNames())

	cfg := f.RunnerConfig()
	assert.Equal(t, 256, cfg.PartSize)
	assert.Equal(t, map[string]int{"flux": 128, "update": 64}, cfg.LoopPartSize)
	assert.Equal(t, 128, cfg.PartSizeFor("flux"))
	assert.Equal(t, 256, cfg.PartSizeFor("other"))
	assert.Equal(t, log.DebugLevel, f.LogLevel())
}

func TestLoad_Empty(t *testing.T) {
	f, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Zero(t, f.PartSize)
	assert.Empty(t, f.Loops)
	assert.Nil(t, f.RunnerConfig().LoopPartSize)
	assert.Equal(t, log.WarnLevel, f.LogLevel())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"syntax", "part_size = ", "failed to parse"},
		{"unknown attribute", "block_size = 4", "failed to decode"},
		{"unknown variable", "workers = cpus", "failed to decode"},
		{"negative part size", "part_size = -1", "part_size must not be negative"},
		{"negative workers", "workers = -2", "workers must not be negative"},
		{"loop without size", `loop "flux" {}`, "failed to decode"},
		{"zero loop size", `loop "flux" { part_size = 0 }`, `loop "flux": part_size must be positive`},
		{"repeated loop", "loop \"flux\" { part_size = 8 }\nloop \"flux\" { part_size = 16 }", "declared more than once"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	f, err := Parse([]byte(`
part_size = 256
loop "Flux" {
  part_size = 128
}
`), "inline.hcl")
	require.NoError(t, err)

	require.NoError(t, f.ApplyEnv([]string{
		"HOME=/root",
		"MESHLOOP_WORKERS=3",
		"MESHLOOP_PART_SIZE=512",
		"MESHLOOP_PART_SIZE_FLUX=32",
		"MESHLOOP_PART_SIZE_UPDATE=16",
		"MESHLOOP_DIAGS=1",
	}))
	assert.Equal(t, 512, f.PartSize)
	assert.Equal(t, 3, f.Workers)
	assert.Equal(t, log.InfoLevel, f.LogLevel())

	cfg := f.RunnerConfig()
	assert.Equal(t, map[string]int{"Flux": 32, "update": 16}, cfg.LoopPartSize)
	assert.Equal(t, 32, cfg.PartSizeFor("flux"))
	assert.Equal(t, 16, cfg.PartSizeFor("Update"))

	// Loop names in code are usually camel case
	g := &File{}
	require.NoError(t, g.ApplyEnv([]string{"MESHLOOP_PART_SIZE_COMPUTEFLUXES=64"}))
	assert.Equal(t, 64, g.RunnerConfig().PartSizeFor("computeFluxes"))

	for _, env := range [][]string{
		{"MESHLOOP_WORKERS=many"},
		{"MESHLOOP_PART_SIZE_=8"},
		{"MESHLOOP_PART_SIZE_FLUX=0"},
		{"MESHLOOP_PART_SIZE=-4"},
	} {
		g := &File{}
		assert.Error(t, g.ApplyEnv(env), "%v", env)
	}
}
