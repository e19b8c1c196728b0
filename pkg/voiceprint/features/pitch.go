package features

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	DefaultFMin         = 50.0
	DefaultFMax         = 400.0
	DefaultFrameLength  = 2048
	DefaultTroughThresh = 0.1
	defaultHopDivisor   = 4
)

// PitchConfig controls the YIN tracker.
type PitchConfig struct {
	FMin        float64
	FMax        float64
	FrameLength int     // samples per analysis frame; grown if too small for FMin
	HopLength   int     // defaults to FrameLength/4
	Threshold   float64 // cumulative-mean-normalized difference threshold
}

func DefaultPitchConfig() PitchConfig {
	return PitchConfig{
		FMin:        DefaultFMin,
		FMax:        DefaultFMax,
		FrameLength: DefaultFrameLength,
		Threshold:   DefaultTroughThresh,
	}
}

// PitchTrack holds per-frame F0 estimates in Hz. Unvoiced frames are NaN.
type PitchTrack struct {
	F0         []float64
	HopLength  int
	SampleRate int
}

// Voiced returns the number of frames with a pitch estimate.
func (p PitchTrack) Voiced() int {
	n := 0
	for _, f := range p.F0 {
		if !math.IsNaN(f) {
			n++
		}
	}
	return n
}

// TrackPitch estimates F0 per frame with the YIN algorithm. Frames are taken
// without padding; a signal shorter than one frame is analysed as a single
// frame if it still spans two periods of FMin.
func TrackPitch(samples []float64, sampleRate int, cfg PitchConfig) (PitchTrack, error) {
	if sampleRate <= 0 {
		return PitchTrack{}, fmt.Errorf("%w: invalid sample rate %d", ErrFeatureExtraction, sampleRate)
	}
	if cfg.FMin <= 0 || cfg.FMax <= cfg.FMin {
		return PitchTrack{}, fmt.Errorf("%w: invalid pitch range [%g, %g]", ErrFeatureExtraction, cfg.FMin, cfg.FMax)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultTroughThresh
	}

	tauMin := int(math.Floor(float64(sampleRate) / cfg.FMax))
	tauMax := int(math.Ceil(float64(sampleRate) / cfg.FMin))
	if tauMin < 1 {
		tauMin = 1
	}
	minFrame := 2*tauMax + 2

	frameLength := cfg.FrameLength
	if frameLength <= 0 {
		frameLength = DefaultFrameLength
	}
	for frameLength < minFrame {
		frameLength *= 2
	}
	if len(samples) < frameLength {
		if len(samples) < minFrame {
			return PitchTrack{}, fmt.Errorf("%w: %d samples is too short for pitch tracking down to %g Hz (need %d)",
				ErrFeatureExtraction, len(samples), cfg.FMin, minFrame)
		}
		frameLength = len(samples)
	}

	hop := cfg.HopLength
	if hop <= 0 {
		hop = frameLength / defaultHopDivisor
	}

	y := newYIN(frameLength, tauMin, tauMax, cfg.Threshold)
	track := PitchTrack{HopLength: hop, SampleRate: sampleRate}
	for start := 0; start+frameLength <= len(samples); start += hop {
		tau := y.period(samples[start : start+frameLength])
		f0 := math.NaN()
		if tau > 0 {
			f0 = float64(sampleRate) / tau
			if f0 < cfg.FMin || f0 > cfg.FMax {
				f0 = math.NaN()
			}
		}
		track.F0 = append(track.F0, f0)
	}
	return track, nil
}

// yin holds the per-frame scratch state for one frame length.
type yin struct {
	frameLength int
	window      int // integration window W
	tauMin      int
	tauMax      int
	threshold   float64
	fftSize     int
	diff        []float64
	cmnd        []float64
	energy      []float64 // prefix sums of x^2
}

func newYIN(frameLength, tauMin, tauMax int, threshold float64) *yin {
	w := frameLength - tauMax - 1
	size := 1
	for size < frameLength+w {
		size <<= 1
	}
	return &yin{
		frameLength: frameLength,
		window:      w,
		tauMin:      tauMin,
		tauMax:      tauMax,
		threshold:   threshold,
		fftSize:     size,
		diff:        make([]float64, tauMax+1),
		cmnd:        make([]float64, tauMax+1),
		energy:      make([]float64, frameLength+1),
	}
}

// period returns the refined period in samples, or 0 if the frame is
// unvoiced.
func (y *yin) period(frame []float64) float64 {
	for i, v := range frame {
		y.energy[i+1] = y.energy[i] + v*v
	}
	e0 := y.energy[y.window]
	if e0 <= 0 {
		return 0
	}

	// d(tau) = E[0,W) + E[tau,tau+W) - 2*r(tau), with the cross term from one
	// FFT correlation
	padded := make([]float64, y.fftSize)
	copy(padded, frame)
	head := make([]float64, y.fftSize)
	copy(head, frame[:y.window])

	a := fft.FFTReal(padded)
	b := fft.FFTReal(head)
	for i := range a {
		a[i] *= complex(real(b[i]), -imag(b[i]))
	}
	corr := fft.IFFT(a)

	// the zero-lag term must equal e0; rescale to be independent of the
	// transform's normalization convention
	zero := real(corr[0])
	if zero == 0 {
		return 0
	}
	scale := e0 / zero

	y.diff[0] = 0
	for tau := 1; tau <= y.tauMax; tau++ {
		et := y.energy[tau+y.window] - y.energy[tau]
		d := e0 + et - 2*scale*real(corr[tau])
		if d < 0 {
			d = 0
		}
		y.diff[tau] = d
	}

	y.cmnd[0] = 1
	running := 0.0
	for tau := 1; tau <= y.tauMax; tau++ {
		running += y.diff[tau]
		if running == 0 {
			y.cmnd[tau] = 1
			continue
		}
		y.cmnd[tau] = y.diff[tau] * float64(tau) / running
	}

	for tau := y.tauMin; tau <= y.tauMax; tau++ {
		if y.cmnd[tau] >= y.threshold {
			continue
		}
		for tau+1 <= y.tauMax && y.cmnd[tau+1] < y.cmnd[tau] {
			tau++
		}
		return y.refine(tau)
	}
	return 0
}

// refine applies parabolic interpolation around the trough at tau.
func (y *yin) refine(tau int) float64 {
	if tau <= 1 || tau >= y.tauMax {
		return float64(tau)
	}
	s0, s1, s2 := y.cmnd[tau-1], y.cmnd[tau], y.cmnd[tau+1]
	denom := s0 - 2*s1 + s2
	if denom == 0 {
		return float64(tau)
	}
	shift := 0.5 * (s0 - s2) / denom
	if math.Abs(shift) > 1 {
		return float64(tau)
	}
	return float64(tau) + shift
}
