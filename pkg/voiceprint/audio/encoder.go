package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes interleaved float samples in [-1, 1] as a 16-bit PCM WAV
// file and returns its bytes. len(interleaved) must be a multiple of numChans.
func EncodeWAV(interleaved []float64, sampleRate, numChans int) ([]byte, error) {
	if numChans < 1 {
		return nil, fmt.Errorf("invalid channel count %d", numChans)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(interleaved)%numChans != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(interleaved), numChans)
	}

	data := make([]int, len(interleaved))
	for i, v := range interleaved {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * 32767))
	}

	out := &memFile{}
	enc := wav.NewEncoder(out, sampleRate, 16, numChans, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoding PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing WAV: %w", err)
	}
	return out.buf, nil
}

// EncodeSample writes a mono Sample as 16-bit PCM WAV.
func EncodeSample(s *Sample) ([]byte, error) {
	return EncodeWAV(s.Samples, s.SampleRate, 1)
}

// memFile is an in-memory io.WriteSeeker for the WAV encoder, which seeks back
// to patch chunk sizes on Close.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = m.pos + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = next
	return next, nil
}
