package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/submarines"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "submarines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, submarines.DefaultPort, cfg.Port)
	assert.Equal(t, "BS1p", cfg.Magic)
	assert.Equal(t, []int{5, 4, 3, 3, 2}, cfg.Fleet)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
port: 9100
magic: BS2p
timeout: 30s
log_level: debug
board_size: 8
fleet: [4, 2]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "BS2p", cfg.Magic)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.BoardSize)
	assert.Equal(t, []submarines.SubmarineSize{submarines.Submarine4, submarines.Submarine2}, cfg.FleetSizes())
	assert.Equal(t, 1024, cfg.ChunkSize, "unset keys keep their defaults")

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "port: 9100\n")

	t.Setenv("SUBMARINES_PORT", "9200")
	t.Setenv("SUBMARINES_MAGIC", "BS3p")
	t.Setenv("SUBMARINES_TIMEOUT", "2s")
	t.Setenv("SUBMARINES_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, "BS3p", cfg.Magic)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "port: [1"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "magic: BS1\n"))
	assert.ErrorIs(t, err, submarines.ErrInvalidMagicLength)

	t.Setenv("SUBMARINES_PORT", "eighty")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"magic", func(c *Config) { c.Magic = "toolong" }},
		{"board size", func(c *Config) { c.BoardSize = 17 }},
		{"fleet", func(c *Config) { c.Fleet = []int{1} }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.Magic = "BS2p"

	opts, err := cfg.SessionOptions(slog.Default())
	require.NoError(t, err)
	assert.Len(t, opts, 5)

	s := submarines.NewSession(opts...)
	defer s.Close()
	assert.Equal(t, submarines.Idle, s.State())

	cfg.Magic = "x"
	_, err = cfg.SessionOptions(slog.Default())
	assert.ErrorIs(t, err, submarines.ErrInvalidMagicLength)
}
