package voiceprint

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/embedding"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/matcher"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/store"
)

const maxUserIDLength = 255

// voiceService is the default implementation of the Service interface.
type voiceService struct {
	decoder   *audio.Decoder
	embedder  *embedding.Extractor
	features  *features.Extractor
	store     *store.Store
	ownsStore bool
	log       Logger
	config    *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().WithPrefix("voiceprint")
	}
	if cfg.Encoder == nil {
		cfg.Encoder = embedding.NewSpectralEncoder()
	}

	st := cfg.Store
	owns := false
	if st == nil {
		backend, err := newBackend(cfg.Backend, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		st, err = store.Open(backend)
		if err != nil {
			if backend != nil {
				backend.Close()
			}
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		owns = true
		cfg.Logger.Infof("Enrollment store ready (backend=%s, users=%d)", cfg.Backend, st.Len())
	}

	return &voiceService{
		decoder:   &audio.Decoder{Transcoder: cfg.Transcoder},
		embedder:  embedding.NewExtractor(cfg.Encoder, embedding.WithResampling(cfg.Resample)),
		features:  features.NewExtractor(cfg.Features),
		store:     st,
		ownsStore: owns,
		log:       cfg.Logger,
		config:    cfg,
	}, nil
}

// ValidateUserID rejects blank or oversized IDs, IDs with non-printable
// characters and the reserved no-match label.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if userID == matcher.UnknownLabel {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidUserID, matcher.UnknownLabel)
	}
	if len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidUserID, maxUserIDLength)
	}
	if !utf8.ValidString(userID) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidUserID)
	}
	for _, r := range userID {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: contains non-printable characters", ErrInvalidUserID)
		}
	}
	return nil
}

// Enroll decodes audio, embeds it and stores the vector under userID.
func (s *voiceService) Enroll(ctx context.Context, userID string, data []byte) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	sample, err := s.decoder.Decode(ctx, data)
	if err != nil {
		return err
	}
	s.log.Debugf("Enroll %q: %d samples at %d Hz (%s)", userID, sample.Len(), sample.SampleRate, sample.Duration())

	vec, err := s.embedder.Embed(ctx, sample)
	if err != nil {
		return err
	}

	if err := s.store.Put(userID, vec); err != nil {
		return fmt.Errorf("failed to store enrollment: %w", err)
	}

	s.log.Infof("Enrolled %q (%d dims)", userID, len(vec))
	return nil
}

// Infer decodes audio, then embeds it and measures pitch and energy
// concurrently. Embedding failures fail the request; feature failures are
// logged and reported as NaN pitch.
func (s *voiceService) Infer(ctx context.Context, data []byte) (*InferenceResult, error) {
	sample, err := s.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	var (
		vec []float64
		sum features.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vec, err = s.embedder.Embed(gctx, sample)
		return err
	})
	g.Go(func() error {
		sum = s.summarize(sample)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	match := matcher.Match(vec, s.store.Entries())
	result := &InferenceResult{
		Label:      match.Label,
		Confidence: match.Confidence,
		F0Mean:     sum.F0Mean,
		RMS:        sum.RMS,
		Accepted:   match.Label != matcher.UnknownLabel && match.Confidence > s.config.AcceptThreshold,
	}

	s.log.Infof("Inferred %q (confidence=%.4f, accepted=%t, f0=%.1f Hz, rms=%.4f)",
		result.Label, result.Confidence, result.Accepted, result.F0Mean, result.RMS)
	return result, nil
}

// Features returns the pitch and energy summary of audio. Unlike Infer, a
// feature failure is returned to the caller.
func (s *voiceService) Features(ctx context.Context, data []byte) (features.Summary, error) {
	sample, err := s.decoder.Decode(ctx, data)
	if err != nil {
		return features.Summary{F0Mean: math.NaN()}, err
	}
	return s.features.PitchEnergy(sample)
}

func (s *voiceService) summarize(sample *audio.Sample) features.Summary {
	sum, err := s.features.PitchEnergy(sample)
	if err != nil {
		s.log.Warnf("Feature extraction degraded: %v", err)
		sum.F0Mean = math.NaN()
	}
	return sum
}

func (s *voiceService) ListEnrollments() []Enrollment {
	entries := s.store.Entries()
	out := make([]Enrollment, len(entries))
	for i, e := range entries {
		out[i] = Enrollment{UserID: e.UserID, Dimension: len(e.Vector)}
	}
	return out
}

func (s *voiceService) StoredEnrollments() (int, error) {
	return s.store.Persisted()
}

// Close releases the store if the service opened it.
func (s *voiceService) Close() error {
	if !s.ownsStore {
		return nil
	}
	return s.store.Close()
}
