package features

import (
	"fmt"
	"math"
)

const (
	DefaultRMSFrameLength = 2048
	DefaultRMSHopLength   = 512
)

// FrameRMS returns the root-mean-square energy of centred frames. The signal
// is zero-padded by half a frame on each side, so there are 1+len/hop frames
// and the padding counts toward each frame's mean.
func FrameRMS(samples []float64, frameLength, hopLength int) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrFeatureExtraction)
	}
	if frameLength <= 0 || hopLength <= 0 {
		return nil, fmt.Errorf("%w: invalid frame %d / hop %d", ErrFeatureExtraction, frameLength, hopLength)
	}

	pad := frameLength / 2
	// prefix sums of x^2 over the unpadded signal
	prefix := make([]float64, len(samples)+1)
	for i, v := range samples {
		prefix[i+1] = prefix[i] + v*v
	}
	sumSq := func(lo, hi int) float64 {
		lo = max(lo, 0)
		hi = min(hi, len(samples))
		if hi <= lo {
			return 0
		}
		return prefix[hi] - prefix[lo]
	}

	n := 1 + len(samples)/hopLength
	out := make([]float64, n)
	for f := range out {
		start := f*hopLength - pad
		e := sumSq(start, start+frameLength) / float64(frameLength)
		out[f] = math.Sqrt(math.Max(e, 0))
	}
	return out, nil
}
