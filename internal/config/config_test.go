package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2chong/Change-Detection/internal/core/common"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[matching]
cut_threshold = 0.1
workers = 4

[redis]
addr = "localhost:6379"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Matching.CutThreshold)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, 0.7, cfg.Matching.ChangeThreshold)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3600, cfg.Redis.TTLSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[matching\ncut_threshold = "))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse TOML")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CD_CUT_THRESHOLD", "0.2")
	t.Setenv("CD_WORKERS", "3")
	t.Setenv("MEMGRAPH_URI", "bolt://memgraph:7687")
	t.Setenv("PORT", "9090")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 0.2, cfg.Matching.CutThreshold)
	assert.Equal(t, 3, cfg.Matching.Workers)
	assert.Equal(t, "bolt://memgraph:7687", cfg.Memgraph.URI)
	assert.Equal(t, "9090", cfg.Server.Port)

	t.Setenv("CD_CHANGE_THRESHOLD", "high")
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"cut above one", func(c *Config) { c.Matching.CutThreshold = 1.2 }},
		{"negative change", func(c *Config) { c.Matching.ChangeThreshold = -0.1 }},
		{"inverted area window", func(c *Config) { c.Matching.MinArea, c.Matching.MaxArea = 50, 10 }},
		{"negative workers", func(c *Config) { c.Matching.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), common.ErrConfig)
		})
	}
	assert.NoError(t, Default().Validate())
}
