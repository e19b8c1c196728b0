package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, voiceprint.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "spectral", cfg.Embedding.Provider)
	assert.Equal(t, 0.55, cfg.Match.AcceptThreshold)
	assert.False(t, cfg.Embedding.Resample)
	assert.False(t, cfg.Transcode.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "voicedna.yaml", `
server:
  port: "9090"
  read_timeout: 5s
storage:
  backend: bolt
  path: data/enrollments.bolt
embedding:
  resample: true
match:
  accept_threshold: 0.7
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, voiceprint.BackendBolt, cfg.Storage.Backend)
	assert.Equal(t, "data/enrollments.bolt", cfg.Storage.Path)
	assert.True(t, cfg.Embedding.Resample)
	assert.Equal(t, 0.7, cfg.Match.AcceptThreshold)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "voicedna.yaml", "server:\n  port: \"9090\"\n")
	t.Setenv("VOICEPRINT_PORT", "7070")
	t.Setenv("VOICEPRINT_STORAGE", "sqlite")
	t.Setenv("VOICEPRINT_ACCEPT_THRESHOLD", "0.8")
	t.Setenv("VOICEPRINT_TRANSCODE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, voiceprint.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 0.8, cfg.Match.AcceptThreshold)
	assert.True(t, cfg.Transcode.Enabled)
}

func TestConfigPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "alt.yaml", "server:\n  host: 0.0.0.0\n")
	t.Setenv("VOICEPRINT_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "VOICEPRINT_CORS_ORIGIN=https://example.test\n")
	t.Cleanup(func() { os.Unsetenv("VOICEPRINT_CORS_ORIGIN") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.Server.CORSOrigin)
}

func TestInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := map[string]map[string]string{
		"backend":   {"VOICEPRINT_STORAGE": "redis"},
		"provider":  {"VOICEPRINT_ENCODER": "onnx"},
		"http url":  {"VOICEPRINT_ENCODER": "http"},
		"bool":      {"VOICEPRINT_RESAMPLE": "sometimes"},
		"threshold": {"VOICEPRINT_ACCEPT_THRESHOLD": "high"},
		"log level": {"VOICEPRINT_LOG_LEVEL": "loud"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "bad.yaml", "server: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestServiceOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transcode.Enabled = true

	log := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	opts, err := cfg.ServiceOptions(log)
	require.NoError(t, err)

	svc, err := voiceprint.NewService(opts...)
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.Infer(context.Background(), nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, voiceprint.ErrDecode)
}

func TestHTTPEncoderNeedsKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "http"
	cfg.Embedding.URL = "http://localhost:9000/embed"
	t.Setenv("VOICEPRINT_ENCODER_API_KEY", "")

	_, err := cfg.ServiceOptions(nil)
	assert.Error(t, err)

	t.Setenv("VOICEPRINT_ENCODER_API_KEY", "secret")
	enc, err := cfg.Encoder()
	require.NoError(t, err)
	assert.Equal(t, 16000, enc.SampleRate())
}
