package embedding

import (
	"context"
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	SpectralSampleRate = 16000
	SpectralWindowSize = 1024
	SpectralHopSize    = 256
	SpectralMelBands   = 96
	SpectralDimension  = 2 * SpectralMelBands

	melMinHz = 20.0
	// per-frame floor relative to the loudest band, keeps the log spectrum
	// invariant to input gain
	relativeFloor = 1e-6
)

// SpectralEncoder is a deterministic, model-free speaker encoder: the log-mel
// spectrum of each frame with its mean removed, pooled over time into
// mean and standard deviation per band. It captures the spectral envelope and
// harmonic placement of a voice well enough for small closed sets and tests;
// it is not a substitute for a trained speaker model.
type SpectralEncoder struct {
	sampleRate int
	window     []float64
	filters    [][]melWeight
}

type melWeight struct {
	bin    int
	weight float64
}

func NewSpectralEncoder() *SpectralEncoder {
	return &SpectralEncoder{
		sampleRate: SpectralSampleRate,
		window:     window.Hamming(SpectralWindowSize),
		filters:    melFilterBank(SpectralMelBands, SpectralWindowSize, SpectralSampleRate, melMinHz, SpectralSampleRate/2),
	}
}

func (e *SpectralEncoder) SampleRate() int { return e.sampleRate }
func (e *SpectralEncoder) Dimension() int  { return SpectralDimension }

func (e *SpectralEncoder) Encode(ctx context.Context, samples []float64, sampleRate int) ([]float64, error) {
	if sampleRate != e.sampleRate {
		return nil, ErrSampleRateMismatch
	}
	if len(samples) < SpectralWindowSize {
		return nil, errors.New("input shorter than window size")
	}

	frames := 0
	sum := make([]float64, SpectralMelBands)
	sumSq := make([]float64, SpectralMelBands)
	frame := make([]float64, SpectralWindowSize)
	logMel := make([]float64, SpectralMelBands)

	for start := 0; start+SpectralWindowSize <= len(samples); start += SpectralHopSize {
		if frames%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for i := 0; i < SpectralWindowSize; i++ {
			frame[i] = samples[start+i] * e.window[i]
		}
		power := powerSpectrum(fft.FFTReal(frame))
		e.frameLogMel(power, logMel)

		for b, v := range logMel {
			sum[b] += v
			sumSq[b] += v * v
		}
		frames++
	}

	out := make([]float64, SpectralDimension)
	n := float64(frames)
	for b := 0; b < SpectralMelBands; b++ {
		mean := sum[b] / n
		variance := sumSq[b]/n - mean*mean
		out[b] = mean
		out[SpectralMelBands+b] = math.Sqrt(math.Max(variance, 0))
	}
	return out, nil
}

// frameLogMel fills dst with the mean-removed log mel energies of one frame.
// A silent frame yields all zeros.
func (e *SpectralEncoder) frameLogMel(power []float64, dst []float64) {
	peak := 0.0
	for b, filter := range e.filters {
		var energy float64
		for _, w := range filter {
			energy += w.weight * power[w.bin]
		}
		dst[b] = energy
		peak = math.Max(peak, energy)
	}

	if peak == 0 {
		for b := range dst {
			dst[b] = 0
		}
		return
	}

	floor := peak * relativeFloor
	var mean float64
	for b, v := range dst {
		dst[b] = math.Log(math.Max(v, floor))
		mean += dst[b]
	}
	mean /= float64(len(dst))
	for b := range dst {
		dst[b] -= mean
	}
}

func powerSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	out := make([]float64, half)
	for i := 0; i < half; i++ {
		m := cmplx.Abs(spectrum[i])
		out[i] = m * m
	}
	return out
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterBank builds triangular filters evenly spaced on the mel scale over
// the rfft bins of an n-point frame.
func melFilterBank(bands, n, sampleRate int, fmin, fmax float64) [][]melWeight {
	lo, hi := hzToMel(fmin), hzToMel(fmax)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	binHz := float64(sampleRate) / float64(n)
	bins := n/2 + 1
	filters := make([][]melWeight, bands)
	for b := 0; b < bands; b++ {
		left, center, right := edges[b], edges[b+1], edges[b+2]
		for k := 0; k < bins; k++ {
			f := float64(k) * binHz
			var w float64
			switch {
			case f > left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f < right:
				w = (right - f) / (right - center)
			}
			if w > 0 {
				filters[b] = append(filters[b], melWeight{bin: k, weight: w})
			}
		}
	}
	return filters
}
