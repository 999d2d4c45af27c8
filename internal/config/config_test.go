package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creachadair/pipenode/pipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PIPENODE_CONFIG", "PIPENODE_DIR", "PIPENODE_NAME", "PIPENODE_CODEC",
		"PIPENODE_LOG_LEVEL", "PIPENODE_MAX_FRAME", "PIPENODE_CHAIN", "PIPENODE_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, pipe.DefaultMaxFrame, cfg.MaxFrame)
	assert.True(t, cfg.Chain)
	assert.NotEmpty(t, cfg.Dir)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "pipenode.yaml", `
dir: /tmp/sockets
name: alpha
codec: yaml
max_frame: 1024
chain: false
log_level: debug
interval: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sockets", cfg.Dir)
	assert.Equal(t, "alpha", cfg.Name)
	assert.Equal(t, "yaml", cfg.Codec)
	assert.Equal(t, 1024, cfg.MaxFrame)
	assert.False(t, cfg.Chain)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval.Std())
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "pipenode.toml", `
dir = "/tmp/sockets"
name = "beta"
max_frame = 2048
interval = "1s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "beta", cfg.Name)
	assert.Equal(t, 2048, cfg.MaxFrame)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, time.Second, cfg.Interval.Std())
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "pipenode.yaml", "name: alpha\n")
	t.Setenv("PIPENODE_CONFIG", path)
	t.Setenv("PIPENODE_NAME", "gamma")
	t.Setenv("PIPENODE_CHAIN", "false")
	t.Setenv("PIPENODE_MAX_FRAME", "99")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gamma", cfg.Name)
	assert.False(t, cfg.Chain)
	assert.Equal(t, 99, cfg.MaxFrame)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	t.Run("BadCodec", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", "codec: gob\n"))
		assert.ErrorContains(t, err, "invalid codec")
	})
	t.Run("BadFrame", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", "max_frame: 0\n"))
		assert.ErrorContains(t, err, "invalid max_frame")
	})
	t.Run("BadExtension", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.ini", "name=x\n"))
		assert.ErrorContains(t, err, "unsupported file type")
	})
	t.Run("BadEnv", func(t *testing.T) {
		t.Setenv("PIPENODE_CHAIN", "maybe")
		_, err := Load("")
		assert.ErrorContains(t, err, "PIPENODE_CHAIN")
	})
	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}
