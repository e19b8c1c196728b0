package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts s to targetRate. The input is returned unchanged when the
// rates already match.
func Resample(s *Sample, targetRate int) (*Sample, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("invalid target rate %d", targetRate)
	}
	if s.SampleRate == targetRate {
		return s, nil
	}
	if s.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid source rate %d", s.SampleRate)
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(s.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := rs.Process(s.Samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptySignal
	}

	return &Sample{Samples: out, SampleRate: targetRate}, nil
}
