package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
)

// ErrFeatureExtraction is returned when pitch or energy cannot be computed.
var ErrFeatureExtraction = errors.New("feature extraction failed")

// Config groups the pitch and energy settings.
type Config struct {
	Pitch          PitchConfig
	RMSFrameLength int
	RMSHopLength   int
}

func DefaultConfig() Config {
	return Config{
		Pitch:          DefaultPitchConfig(),
		RMSFrameLength: DefaultRMSFrameLength,
		RMSHopLength:   DefaultRMSHopLength,
	}
}

// Summary is the utterance-level result of PitchEnergy.
type Summary struct {
	F0Mean       float64 // Hz, NaN when no frame is voiced
	RMS          float64
	Frames       int
	VoicedFrames int
}

// Extractor computes prosodic summaries with a fixed Config.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.Pitch.FMin == 0 && cfg.Pitch.FMax == 0 {
		cfg.Pitch = DefaultPitchConfig()
	}
	if cfg.RMSFrameLength <= 0 {
		cfg.RMSFrameLength = DefaultRMSFrameLength
	}
	if cfg.RMSHopLength <= 0 {
		cfg.RMSHopLength = DefaultRMSHopLength
	}
	return &Extractor{cfg: cfg}
}

// PitchEnergy returns the mean F0 over voiced frames and the mean frame RMS.
func (e *Extractor) PitchEnergy(s *audio.Sample) (Summary, error) {
	if s == nil || len(s.Samples) == 0 {
		return Summary{F0Mean: math.NaN()}, fmt.Errorf("%w: empty signal", ErrFeatureExtraction)
	}

	rms, err := FrameRMS(s.Samples, e.cfg.RMSFrameLength, e.cfg.RMSHopLength)
	if err != nil {
		return Summary{F0Mean: math.NaN()}, err
	}
	out := Summary{F0Mean: math.NaN(), RMS: stat.Mean(rms, nil)}

	track, err := TrackPitch(s.Samples, s.SampleRate, e.cfg.Pitch)
	if err != nil {
		return out, err
	}
	out.Frames = len(track.F0)
	out.VoicedFrames = track.Voiced()
	out.F0Mean = NaNMean(track.F0)
	return out, nil
}

// PitchEnergy runs the default extractor.
func PitchEnergy(s *audio.Sample) (f0Mean, rms float64, err error) {
	sum, err := NewExtractor(DefaultConfig()).PitchEnergy(s)
	return sum.F0Mean, sum.RMS, err
}

// NaNMean averages the non-NaN values of x. It is NaN if there are none.
func NaNMean(x []float64) float64 {
	valid := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}
