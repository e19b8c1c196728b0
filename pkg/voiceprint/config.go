package voiceprint

import (
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/embedding"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/store"
)

// Backend names accepted by WithBackend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// DefaultAcceptThreshold is the confidence above which a match is accepted.
const DefaultAcceptThreshold = 0.55

type Config struct {
	Backend         string
	DBPath          string
	Store           *store.Store
	Encoder         embedding.Encoder
	Resample        bool
	Transcoder      *audio.Transcoder
	AcceptThreshold float64
	Features        features.Config
	Logger          Logger
}

type Option func(*Config)

// WithBackend selects where enrollments are kept. path is ignored for
// BackendMemory.
func WithBackend(kind, path string) Option {
	return func(c *Config) {
		c.Backend = kind
		c.DBPath = path
	}
}

// WithStore shares an existing store. It takes precedence over WithBackend.
func WithStore(s *store.Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

func WithEncoder(enc embedding.Encoder) Option {
	return func(c *Config) {
		c.Encoder = enc
	}
}

func WithResampling(enabled bool) Option {
	return func(c *Config) {
		c.Resample = enabled
	}
}

// WithTranscoder enables the ffmpeg fallback for non-WAV uploads.
func WithTranscoder(t *audio.Transcoder) Option {
	return func(c *Config) {
		c.Transcoder = t
	}
}

func WithAcceptThreshold(threshold float64) Option {
	return func(c *Config) {
		c.AcceptThreshold = threshold
	}
}

func WithFeatureConfig(cfg features.Config) Option {
	return func(c *Config) {
		c.Features = cfg
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		Backend:         BackendMemory,
		AcceptThreshold: DefaultAcceptThreshold,
		Features:        features.DefaultConfig(),
	}
}
