package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
)

var (
	// ErrEmbedding wraps every failure to produce a usable embedding.
	ErrEmbedding = errors.New("embedding extraction failed")
	// ErrSampleRateMismatch is wrapped in ErrEmbedding when the input rate
	// differs from the encoder's and resampling is disabled.
	ErrSampleRateMismatch = errors.New("sample rate does not match encoder")
)

// minNorm is the smallest raw norm treated as non-degenerate. Anything below
// is near-silent input and cannot be normalized meaningfully.
const minNorm = 1e-12

// Encoder is a pretrained speaker model: samples in, raw vector out.
// Implementations must be safe for concurrent use.
type Encoder interface {
	Encode(ctx context.Context, samples []float64, sampleRate int) ([]float64, error)
	// SampleRate is the input rate the model expects, or 0 if any rate is accepted.
	SampleRate() int
	// Dimension is the output length, or 0 if unknown.
	Dimension() int
}

type Option func(*Extractor)

// WithResampling converts input to the encoder's rate instead of rejecting
// mismatched input.
func WithResampling(enabled bool) Option {
	return func(e *Extractor) {
		e.resample = enabled
	}
}

// Extractor turns audio into unit-norm embeddings using an Encoder.
type Extractor struct {
	enc      Encoder
	resample bool
}

func NewExtractor(enc Encoder, opts ...Option) *Extractor {
	e := &Extractor{enc: enc}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns the L2-normalized embedding of s.
func (e *Extractor) Embed(ctx context.Context, s *audio.Sample) ([]float64, error) {
	if s == nil || len(s.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrEmbedding)
	}

	if want := e.enc.SampleRate(); want > 0 && s.SampleRate != want {
		if !e.resample {
			return nil, fmt.Errorf("%w: %w: got %d Hz, encoder expects %d Hz",
				ErrEmbedding, ErrSampleRateMismatch, s.SampleRate, want)
		}
		var err error
		s, err = audio.Resample(s, want)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
	}

	raw, err := e.enc.Encode(ctx, s.Samples, s.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if dim := e.enc.Dimension(); dim > 0 && len(raw) != dim {
		return nil, fmt.Errorf("%w: encoder returned %d dimensions, expected %d", ErrEmbedding, len(raw), dim)
	}

	return Normalize(raw)
}

// Normalize divides v by its Euclidean norm. It fails on empty, non-finite or
// zero-norm input rather than producing NaNs.
func Normalize(v []float64) ([]float64, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrEmbedding)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: non-finite component at %d", ErrEmbedding, i)
		}
	}

	norm := floats.Norm(v, 2)
	if norm < minNorm || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: degenerate embedding (norm %g)", ErrEmbedding, norm)
	}
	return floats.ScaleTo(make([]float64, len(v)), 1/norm, v), nil
}
