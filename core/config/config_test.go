package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geotag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9000"
max_upload_bytes: 1048576
max_image_pixels: 24000000
output_prefix: "gps_"
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, int64(1048576), cfg.MaxUploadBytes)
	assert.Equal(t, int64(24000000), cfg.MaxImagePixels)
	assert.Equal(t, "gps_", cfg.OutputPrefix)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "listen: \":7000\"\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "listen: \":7000\"\n")
	t.Setenv(listenEnv, ":7100")
	t.Setenv(tempDirEnv, "/var/tmp/geotag")
	t.Setenv(logLevelEnv, "debug")
	t.Setenv(maxUploadBytesEnv, "4096")
	t.Setenv(maxImagePixelsEnv, "1000000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Listen)
	assert.Equal(t, "/var/tmp/geotag", cfg.TempDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(4096), cfg.MaxUploadBytes)
	assert.Equal(t, int64(1000000), cfg.MaxImagePixels)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "listen: [unclosed"))
		assert.Error(t, err)
	})
	t.Run("bad upload limit env", func(t *testing.T) {
		t.Setenv(configPathEnv, "")
		t.Setenv(maxUploadBytesEnv, "lots")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("negative upload limit", func(t *testing.T) {
		_, err := Load(writeConfig(t, "max_upload_bytes: -1\n"))
		assert.ErrorContains(t, err, "max_upload_bytes")
	})
	t.Run("bad pixel limit env", func(t *testing.T) {
		t.Setenv(configPathEnv, "")
		t.Setenv(maxImagePixelsEnv, "huge")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("negative pixel limit", func(t *testing.T) {
		_, err := Load(writeConfig(t, "max_image_pixels: -5\n"))
		assert.ErrorContains(t, err, "max_image_pixels")
	})
	t.Run("prefix with separator", func(t *testing.T) {
		_, err := Load(writeConfig(t, "output_prefix: \"../x\"\n"))
		assert.ErrorContains(t, err, "output_prefix")
	})
	t.Run("unknown log format", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log:\n  format: xml\n"))
		assert.ErrorContains(t, err, "log format")
	})
}

func TestLogConfigLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "WARN", Format: "json"}.Logger(&buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Str("file", "a.jpg").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"file":"a.jpg"`)

	_, err = LogConfig{Level: "loud"}.Logger(&buf)
	assert.Error(t, err)
}
