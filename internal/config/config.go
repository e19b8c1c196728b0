package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/embedding"
)

const envPrefix = "VOICEPRINT_"

// Config holds all configuration for the server and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Match     MatchConfig     `yaml:"match"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	CORSOrigin    string        `yaml:"cors_origin"`
	MaxUploadMB   int64         `yaml:"max_upload_mb"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "memory", "sqlite", "bolt"
	Path    string `yaml:"path"`
}

type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "spectral" or "http"
	URL        string        `yaml:"url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	SampleRate int           `yaml:"sample_rate"`
	Dimension  int           `yaml:"dimension"`
	Timeout    time.Duration `yaml:"timeout"`
	Resample   bool          `yaml:"resample"`
}

type TranscodeConfig struct {
	Enabled    bool          `yaml:"enabled"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
	SampleRate int           `yaml:"sample_rate"`
	Timeout    time.Duration `yaml:"timeout"`
}

type MatchConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "localhost",
			Port:          "8080",
			CORSOrigin:    "*",
			MaxUploadMB:   25,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			ShutdownGrace: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: voiceprint.BackendMemory,
		},
		Embedding: EmbeddingConfig{
			Provider:   "spectral",
			APIKeyEnv:  "VOICEPRINT_ENCODER_API_KEY",
			SampleRate: 16000,
			Dimension:  192,
			Timeout:    60 * time.Second,
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "ffmpeg",
			SampleRate: 16000,
			Timeout:    30 * time.Second,
		},
		Match: MatchConfig{
			AcceptThreshold: voiceprint.DefaultAcceptThreshold,
		},
		Logging: LoggingConfig{
			Level: "info",
			Color: true,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped if empty or missing), then VOICEPRINT_* environment variables. A
// .env file in the working directory is loaded first and never overrides
// variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}
	float := func(key string, dst *float64) error {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = f
		}
		return nil
	}

	str("HOST", &c.Server.Host)
	str("PORT", &c.Server.Port)
	str("CORS_ORIGIN", &c.Server.CORSOrigin)
	str("STORAGE", &c.Storage.Backend)
	str("DB_PATH", &c.Storage.Path)
	str("ENCODER", &c.Embedding.Provider)
	str("ENCODER_URL", &c.Embedding.URL)
	str("FFMPEG_PATH", &c.Transcode.FFmpegPath)
	str("LOG_LEVEL", &c.Logging.Level)

	if err := boolean("RESAMPLE", &c.Embedding.Resample); err != nil {
		return err
	}
	if err := boolean("TRANSCODE", &c.Transcode.Enabled); err != nil {
		return err
	}
	if err := float("ACCEPT_THRESHOLD", &c.Match.AcceptThreshold); err != nil {
		return err
	}
	return nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case voiceprint.BackendMemory, voiceprint.BackendSQLite, voiceprint.BackendBolt:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	switch c.Embedding.Provider {
	case "spectral":
	case "http":
		if c.Embedding.URL == "" {
			return errors.New("embedding.url is required for the http provider")
		}
	default:
		return fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Encoder builds the configured embedding encoder.
func (c *Config) Encoder() (embedding.Encoder, error) {
	switch strings.ToLower(c.Embedding.Provider) {
	case "http":
		return embedding.NewHTTPEncoder(embedding.HTTPConfig{
			URL:        c.Embedding.URL,
			APIKeyEnv:  c.Embedding.APIKeyEnv,
			SampleRate: c.Embedding.SampleRate,
			Dimension:  c.Embedding.Dimension,
			Timeout:    c.Embedding.Timeout,
		})
	default:
		return embedding.NewSpectralEncoder(), nil
	}
}

// ServiceOptions translates the configuration into voiceprint options.
func (c *Config) ServiceOptions(log voiceprint.Logger) ([]voiceprint.Option, error) {
	enc, err := c.Encoder()
	if err != nil {
		return nil, err
	}
	opts := []voiceprint.Option{
		voiceprint.WithEncoder(enc),
		voiceprint.WithBackend(c.Storage.Backend, c.Storage.Path),
		voiceprint.WithResampling(c.Embedding.Resample),
		voiceprint.WithAcceptThreshold(c.Match.AcceptThreshold),
	}
	if log != nil {
		opts = append(opts, voiceprint.WithLogger(log))
	}
	if c.Transcode.Enabled {
		opts = append(opts, voiceprint.WithTranscoder(audio.NewTranscoder(audio.TranscodeConfig{
			FFmpegPath: c.Transcode.FFmpegPath,
			SampleRate: c.Transcode.SampleRate,
			Timeout:    c.Transcode.Timeout,
		})))
	}
	return opts, nil
}

// ConfigureLogger applies the logging section to the process-wide logger.
func (c *Config) ConfigureLogger() *logger.Logger {
	log := logger.GetLogger()
	if level, err := logger.ParseLevel(c.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	if !c.Logging.Color || os.Getenv("NO_COLOR") != "" {
		log.SetColorize(false)
	}
	return log
}
